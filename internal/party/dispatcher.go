package party

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/party-deck/internal/logging"
)

var dispatchLog = logging.ForComponent(logging.CompDispatch)

// DispatcherConfig tunes side-effect dispatch.
type DispatcherConfig struct {
	// SendAttempts is the number of tries for a transient send failure
	// within a single FireReminder call. Default 3.
	SendAttempts uint

	// MessagesPerSecond and Burst feed the outbound rate limiter shared by
	// all dispatches.
	MessagesPerSecond float64
	Burst             int
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.SendAttempts == 0 {
		c.SendAttempts = 3
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	return c
}

// Dispatcher performs the reminder and cleanup side effects. The fired mark
// is persisted before the send, so semantics are at-least-once under crashes
// and never twice across restarts.
type Dispatcher struct {
	manager  *Manager
	platform ChatPlatform
	limiter  *rate.Limiter
	recorder EventRecorder
	cfg      DispatcherConfig
}

// NewDispatcher wires a dispatcher between the manager and the chat
// platform.
func NewDispatcher(manager *Manager, platform ChatPlatform, cfg DispatcherConfig) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		manager:  manager,
		platform: platform,
		limiter:  rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst),
		cfg:      cfg,
	}
}

// SetRecorder attaches an audit recorder. Optional.
func (d *Dispatcher) SetRecorder(r EventRecorder) {
	d.recorder = r
}

// FireReminder sends the one-shot reminder for a due session. now is the
// tick instant the due check was made against, so the lead in the message
// matches the scheduler's view of time.
//
// Ordering is mark-before-send: the fired state is persisted first, then the
// message goes out. A crash in between costs one reminder attempt but can
// never fire the same reminder twice across restarts; a rare duplicate after
// a crash mid-send is the accepted cost of never silently dropping one.
func (d *Dispatcher) FireReminder(ctx context.Context, sess *Session, now time.Time) error {
	if err := d.manager.MarkReminderFired(sess.ID); err != nil {
		// Not marked: the reminder is still pending and the next tick
		// retries the whole step.
		return fmt.Errorf("mark reminder fired: %w", err)
	}

	body := d.reminderBody(ctx, sess, now)

	if err := d.limiter.Wait(ctx); err != nil {
		dispatchLog.Error("reminder_rate_wait_cancelled",
			slog.String("session", sess.ID),
			slog.String("error", err.Error()))
		return fmt.Errorf("reminder rate wait: %w", err)
	}

	err := retry.Do(
		func() error {
			_, err := d.platform.SendMessage(ctx, sess.ID, body)
			return err
		},
		retry.Attempts(d.cfg.SendAttempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !IsTerminal(err) }),
	)
	d.record("reminder", sess.ID, err)
	if err != nil {
		dispatchLog.Error("reminder_send_failed",
			slog.String("session", sess.ID),
			slog.String("error", err.Error()))
		return fmt.Errorf("send reminder: %w", err)
	}

	dispatchLog.Info("reminder_sent",
		slog.String("session", sess.ID),
		slog.Int("participants", len(sess.Participants)))
	return nil
}

// FireCleanup archives the session's thread. A terminal platform error
// (thread already gone) is absorbed: the side effect is unrecoverable and
// must not be retried forever. Transient errors are returned so the caller
// keeps the session for the next tick.
func (d *Dispatcher) FireCleanup(ctx context.Context, sess *Session) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("cleanup rate wait: %w", err)
	}

	err := d.platform.ArchiveThread(ctx, sess.ID)
	if err != nil && !IsTerminal(err) {
		d.record("cleanup_deferred", sess.ID, err)
		return fmt.Errorf("archive thread: %w", err)
	}
	if err != nil {
		dispatchLog.Info("cleanup_target_gone",
			slog.String("session", sess.ID),
			slog.String("error", err.Error()))
	}

	d.record("cleanup", sess.ID, err)
	dispatchLog.Info("session_retired", slog.String("session", sess.ID))
	return nil
}

// DiscardThread archives a cancelled session's thread, absorbing terminal
// errors the same way cleanup does.
func (d *Dispatcher) DiscardThread(ctx context.Context, sess *Session) error {
	return d.FireCleanup(ctx, sess)
}

// reminderBody composes the reminder text: mentions for roster and waitlist,
// then what starts when. Mention resolution failures fall back to the raw
// user id rather than blocking the send.
func (d *Dispatcher) reminderBody(ctx context.Context, sess *Session, now time.Time) string {
	mentions := make([]string, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		member, err := d.platform.ResolveMember(ctx, p.UserID)
		if err != nil || member.Mention == "" {
			dispatchLog.Debug("mention_resolve_failed",
				slog.String("user", p.UserID))
			mentions = append(mentions, p.UserID)
			continue
		}
		mentions = append(mentions, member.Mention)
	}

	var b strings.Builder
	b.WriteString("⏰ **Reminder!**\n")
	if len(mentions) > 0 {
		b.WriteString(strings.Join(mentions, " "))
		b.WriteString("\n")
	}
	lead := sess.StartsAt.Sub(now).Round(time.Minute)
	if lead > 0 {
		fmt.Fprintf(&b, "`%s` starts in %s (%s %s).", sess.Activity, lead, sess.DateLabel, sess.TimeLabel)
	} else {
		fmt.Fprintf(&b, "`%s` is starting now (%s %s).", sess.Activity, sess.DateLabel, sess.TimeLabel)
	}
	return b.String()
}

func (d *Dispatcher) record(kind, sessionID string, err error) {
	if d.recorder == nil {
		return
	}
	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	d.recorder.RecordEvent(kind, sessionID, detail)
}
