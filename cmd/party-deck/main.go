// party-deck is a Discord party recruitment daemon: time-boxed sign-up
// threads with an ordered roster and waitlist, one reminder before start,
// thread retirement after.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/party-deck/internal/config"
	"github.com/asheshgoplani/party-deck/internal/discord"
	"github.com/asheshgoplani/party-deck/internal/journal"
	"github.com/asheshgoplani/party-deck/internal/logging"
	"github.com/asheshgoplani/party-deck/internal/party"
)

const Version = "0.4.0"

// StoreFileName is the session snapshot under the party-deck directory.
const StoreFileName = "sessions.json"

// JournalFileName is the dispatch history database.
const JournalFileName = "journal.db"

var mainLog = logging.ForComponent(logging.CompMain)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		handleRun(os.Args[2:])
	case "sessions":
		handleSessions(os.Args[2:])
	case "history":
		handleHistory(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("party-deck v%s\n", Version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: party-deck <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Run the bot daemon (gateway + scheduler)")
	fmt.Println("  sessions   List open recruitment sessions")
	fmt.Println("  history    Show recent dispatch/lifecycle events")
	fmt.Println("  version    Print version")
}

// resolvePaths returns the data dir, config path and an error.
func resolvePaths(configFlag string) (dir, configPath string, err error) {
	dir, err = config.DefaultDir()
	if err != nil {
		return "", "", err
	}
	configPath = configFlag
	if configPath == "" {
		configPath = filepath.Join(dir, config.FileName)
	}
	return dir, configPath, nil
}

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFlag := fs.String("config", "", "Path to config.toml (default ~/.party-deck/config.toml)")
	once := fs.Bool("once", false, "Run one scheduler pass and exit (no gateway)")
	fs.Usage = func() {
		fmt.Println("Usage: party-deck run [--config path] [--once]")
		fmt.Println()
		fmt.Println("Run the recruitment daemon.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dir, configPath, err := resolvePaths(*configFlag)
	if err != nil {
		fatal(err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		fatal(fmt.Errorf("create data directory: %w", err))
	}

	logging.Init(logging.Config{
		LogDir:     dir,
		Level:      cfg.Logs.Level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
		Stderr:     cfg.Logs.Stderr,
	})
	defer logging.Shutdown()

	store := party.NewStore(filepath.Join(dir, StoreFileName))
	manager, err := party.NewManager(store, managerConfig(cfg))
	if err != nil {
		fatal(err)
	}

	jdb, err := journal.Open(filepath.Join(dir, JournalFileName))
	if err != nil {
		fatal(err)
	}
	defer jdb.Close()
	if err := jdb.Migrate(); err != nil {
		fatal(err)
	}
	manager.SetRecorder(jdb)

	bot, err := discord.New(cfg, manager)
	if err != nil {
		fatal(err)
	}

	dispatcher := party.NewDispatcher(manager, bot.Adapter(), party.DispatcherConfig{
		MessagesPerSecond: cfg.Scheduler.MessagesPerSecond,
		Burst:             cfg.Scheduler.Burst,
	})
	dispatcher.SetRecorder(jdb)

	scheduler := party.NewScheduler(manager, dispatcher, party.SchedulerConfig{
		Interval:        cfg.Scheduler.TickInterval(),
		Staleness:       cfg.Scheduler.Staleness(),
		DispatchTimeout: cfg.Scheduler.DispatchTimeout(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		scheduler.Tick(ctx, time.Now())
		return
	}

	mainLog.Info("daemon_starting", slog.String("version", Version))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Start(ctx) })
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return watchConfig(ctx, configPath, manager, bot) })

	if err := g.Wait(); err != nil {
		fatal(err)
	}
	mainLog.Info("daemon_stopped")
}

// watchConfig applies live config edits to the manager's domain constants
// and the bot's command settings. Scheduler timing stays fixed until
// restart.
func watchConfig(ctx context.Context, configPath string, manager *party.Manager, bot *discord.Bot) error {
	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		// Not fatal: the daemon just runs without live reload.
		mainLog.Warn("config_watcher_unavailable", slog.String("error", err.Error()))
		<-ctx.Done()
		return nil
	}
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-watcher.Changes():
			manager.SetConfig(managerConfig(cfg))
			bot.UpdateConfig(cfg)
		}
	}
}

func managerConfig(cfg *config.Config) party.ManagerConfig {
	return party.ManagerConfig{
		Capacity:          cfg.Session.Capacity,
		ReminderOffset:    cfg.Session.ReminderOffset(),
		CleanupOffset:     cfg.Session.CleanupOffset(),
		BackwardTolerance: cfg.Session.BackwardTolerance(),
	}
}

func handleSessions(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: party-deck sessions")
		fmt.Println()
		fmt.Println("List open recruitment sessions from the store.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dir, err := config.DefaultDir()
	if err != nil {
		fatal(err)
	}
	store := party.NewStore(filepath.Join(dir, StoreFileName))
	manager, err := party.NewManager(store, party.ManagerConfig{})
	if err != nil {
		fatal(err)
	}
	sessions := manager.Snapshot()
	if len(sessions) == 0 {
		fmt.Println("No open sessions.")
		return
	}

	fmt.Printf("%-20s %-12s %-17s %-9s %s\n", "ACTIVITY", "STARTS", "ROSTER/WAITLIST", "REMINDER", "THREAD")
	for _, sess := range sessions {
		fmt.Printf("%-20s %-12s %2d/%-14d %-9s %s\n",
			truncate(sess.Activity, 20),
			sess.StartsAt.Format("Jan 2 15:04"),
			len(sess.Roster()), len(sess.Waitlist()),
			sess.Reminder,
			sess.ID)
	}
}

func handleHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum entries to show")
	session := fs.String("session", "", "Show history for one session id")
	fs.Usage = func() {
		fmt.Println("Usage: party-deck history [--limit n] [--session id]")
		fmt.Println()
		fmt.Println("Show recent lifecycle and dispatch events from the journal.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dir, err := config.DefaultDir()
	if err != nil {
		fatal(err)
	}
	jdb, err := journal.Open(filepath.Join(dir, JournalFileName))
	if err != nil {
		fatal(err)
	}
	defer jdb.Close()
	if err := jdb.Migrate(); err != nil {
		fatal(err)
	}

	var entries []journal.Entry
	if *session != "" {
		entries, err = jdb.BySession(*session)
	} else {
		entries, err = jdb.Recent(*limit)
	}
	if err != nil {
		fatal(err)
	}
	if len(entries) == 0 {
		fmt.Println("No history.")
		return
	}

	for _, e := range entries {
		fmt.Printf("%s  %-17s %-20s %s\n",
			e.At.Format("2006-01-02 15:04:05"), e.Kind, e.SessionID, e.Detail)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "party-deck: %v\n", err)
	os.Exit(1)
}
