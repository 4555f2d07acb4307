package party

import (
	"context"
	"log/slog"
	"time"

	"github.com/asheshgoplani/party-deck/internal/logging"
)

var schedLog = logging.ForComponent(logging.CompSched)

// SchedulerConfig tunes the tick loop.
type SchedulerConfig struct {
	// Interval between ticks. Default one minute.
	Interval time.Duration

	// Staleness bounds late recovery: a pending reminder whose due time is
	// further than this in the past is dropped (and logged) instead of
	// being sent very late. The default matches the default reminder lead,
	// so any reminder recovered before its session starts still goes out.
	Staleness time.Duration

	// DispatchTimeout bounds each adapter call so one hung call cannot
	// stall evaluation of the remaining sessions.
	DispatchTimeout time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Staleness <= 0 {
		c.Staleness = 30 * time.Minute
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 15 * time.Second
	}
	return c
}

// Scheduler wakes on a fixed interval, scans every session, and hands due
// time-triggered actions to the dispatcher. Single goroutine: no two ticks
// ever run concurrently.
type Scheduler struct {
	manager    *Manager
	dispatcher *Dispatcher
	cfg        SchedulerConfig

	// now is swappable for tests.
	now func() time.Time
}

// NewScheduler wires a scheduler over a manager's read model.
func NewScheduler(manager *Manager, dispatcher *Dispatcher, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		manager:    manager,
		dispatcher: dispatcher,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

// Run executes the tick loop until ctx is cancelled. The first pass runs
// immediately so reminders missed during downtime are recovered without
// waiting a full interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Tick(ctx, s.now())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.Interval):
			s.Tick(ctx, s.now())
		}
	}
}

// Tick evaluates every session once at the given instant. Exported so tests
// can drive simulated clocks through it. One session's failure never stops
// the pass.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	sessions := s.manager.Snapshot()
	for _, sess := range sessions {
		if ctx.Err() != nil {
			return
		}
		s.evaluate(ctx, now, sess)
	}
	schedLog.Debug("tick_complete",
		slog.Time("now", now),
		slog.Int("sessions", len(sessions)))
}

func (s *Scheduler) evaluate(ctx context.Context, now time.Time, sess *Session) {
	if sess.CleanupDue(now) {
		dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		err := s.dispatcher.FireCleanup(dctx, sess)
		cancel()
		if err != nil {
			// Transient: keep the session, retry next tick.
			schedLog.Warn("cleanup_deferred",
				slog.String("session", sess.ID),
				slog.String("error", err.Error()))
			return
		}
		if err := s.manager.Remove(sess.ID); err != nil {
			schedLog.Error("cleanup_remove_failed",
				slog.String("session", sess.ID),
				slog.String("error", err.Error()))
		}
		return
	}

	if !sess.ReminderDue(now) {
		return
	}

	if now.Sub(sess.ReminderAt) > s.cfg.Staleness {
		// Too old to send without surprising anyone. Consume it instead.
		schedLog.Warn("reminder_dropped_stale",
			slog.String("session", sess.ID),
			slog.Time("due", sess.ReminderAt),
			slog.Duration("late_by", now.Sub(sess.ReminderAt)))
		if err := s.manager.DropReminder(sess.ID); err != nil {
			schedLog.Error("reminder_drop_failed",
				slog.String("session", sess.ID),
				slog.String("error", err.Error()))
		}
		return
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	err := s.dispatcher.FireReminder(dctx, sess, now)
	cancel()
	if err != nil {
		schedLog.Warn("reminder_dispatch_failed",
			slog.String("session", sess.ID),
			slog.String("error", err.Error()))
	}
}
