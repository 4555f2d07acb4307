package config

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/party-deck/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

// Watcher reloads the config file when it changes and delivers the parsed
// result on a buffered channel. Goroutine + buffered channel + Close(),
// non-blocking sends: a slow consumer only misses intermediate revisions.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	changeCh  chan *Config
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching the directory containing path. Watching the
// directory rather than the file survives the write-temp-then-rename pattern
// editors and our own tooling use.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		watcher:  fw,
		changeCh: make(chan *Config, 1),
		closeCh:  make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				configLog.Warn("reload_failed",
					slog.String("path", w.path),
					slog.String("error", err.Error()))
				continue
			}
			configLog.Info("config_reloaded", slog.String("path", w.path))
			// Non-blocking send (drop if consumer hasn't read yet)
			select {
			case w.changeCh <- cfg:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if ok && err != nil {
				configLog.Warn("watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// Changes returns the channel that receives reloaded configs.
func (w *Watcher) Changes() <-chan *Config {
	return w.changeCh
}

// Close stops the watcher. Safe to call multiple times.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.closeCh)
		w.watcher.Close()
	})
}
