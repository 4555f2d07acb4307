package party

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/asheshgoplani/party-deck/internal/logging"
)

var managerLog = logging.ForComponent(logging.CompManager)

// ManagerConfig holds the domain constants a Manager applies to every
// session it creates.
type ManagerConfig struct {
	// Capacity is the roster size; everyone past it is waitlisted.
	Capacity int

	// ReminderOffset is how long before StartsAt the reminder is due.
	ReminderOffset time.Duration

	// CleanupOffset is how long after StartsAt the thread is retired.
	CleanupOffset time.Duration

	// BackwardTolerance is how far in the past a start time may be at
	// creation or edit before it is rejected. Absorbs clock skew and the
	// time the owner spent typing.
	BackwardTolerance time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.Capacity <= 0 {
		c.Capacity = 8
	}
	if c.ReminderOffset <= 0 {
		c.ReminderOffset = 30 * time.Minute
	}
	if c.CleanupOffset <= 0 {
		c.CleanupOffset = time.Hour
	}
	if c.BackwardTolerance <= 0 {
		c.BackwardTolerance = 5 * time.Minute
	}
	return c
}

// Manager owns the in-memory session map and is the only way to mutate it:
// load once at construction, mutate through methods, persist on every
// mutation before reporting success (durable-before-ack). A single
// process-wide mutex serializes user mutations against scheduler ticks.
type Manager struct {
	mu       sync.Mutex
	store    *Store
	sessions map[string]*Session
	cfg      ManagerConfig
	recorder EventRecorder

	// now is swappable for tests.
	now func() time.Time
}

// NewManager loads the durable session set and returns a manager over it.
// A corrupt store file is logged and treated as empty rather than failing
// startup.
func NewManager(store *Store, cfg ManagerConfig) (*Manager, error) {
	sessions, err := store.Load()
	if err != nil {
		var corrupt *CorruptStoreError
		if !errors.As(err, &corrupt) {
			return nil, fmt.Errorf("load session store: %w", err)
		}
		managerLog.Warn("store_corrupt_starting_empty",
			slog.String("path", corrupt.Path),
			slog.String("error", corrupt.Err.Error()))
	}

	managerLog.Info("sessions_loaded", slog.Int("count", len(sessions)))
	return &Manager{
		store:    store,
		sessions: sessions,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}, nil
}

// SetRecorder attaches an audit recorder. Optional.
func (m *Manager) SetRecorder(r EventRecorder) {
	m.mu.Lock()
	m.recorder = r
	m.mu.Unlock()
}

// SetConfig replaces the domain constants. Existing sessions keep their
// already-computed due times; only sessions created or edited afterwards see
// the new offsets.
func (m *Manager) SetConfig(cfg ManagerConfig) {
	m.mu.Lock()
	m.cfg = cfg.withDefaults()
	m.mu.Unlock()
}

// Create opens a new recruitment session for an externally created thread.
// startsAt must resolve to an instant no further than the backward tolerance
// before now.
func (m *Manager) Create(threadID, ownerID, activity, dateLabel, timeLabel string, startsAt time.Time) (*Session, error) {
	if threadID == "" {
		return nil, &ValidationError{Reason: "thread id is required"}
	}
	if startsAt.IsZero() {
		return nil, &ValidationError{Reason: "start time is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if startsAt.Before(now.Add(-m.cfg.BackwardTolerance)) {
		return nil, &ValidationError{Reason: "start time is in the past"}
	}
	if _, exists := m.sessions[threadID]; exists {
		return nil, &ValidationError{Reason: "recruitment is already open in this thread"}
	}

	sess := &Session{
		ID:        threadID,
		OwnerID:   ownerID,
		Activity:  activity,
		DateLabel: dateLabel,
		TimeLabel: timeLabel,
		Reminder:  ReminderPending,
		Capacity:  m.cfg.Capacity,
		CreatedAt: now,
	}
	sess.reschedule(startsAt, m.cfg.ReminderOffset, m.cfg.CleanupOffset)

	m.sessions[threadID] = sess
	if err := m.persist("create"); err != nil {
		delete(m.sessions, threadID)
		return nil, err
	}

	managerLog.Info("session_created",
		slog.String("session", threadID),
		slog.String("owner", ownerID),
		slog.Time("starts_at", startsAt))
	m.record("create", threadID, activity)
	return sess.Clone(), nil
}

// Join adds or updates a participant and returns the recomputed
// roster/waitlist split. Joining past capacity is not an error: the overflow
// becomes the waitlist.
func (m *Manager) Join(sessionID, userID, displayName, role string) (RosterView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return RosterView{}, ErrNotFound
	}

	prev := sess.Clone()
	if !sess.join(userID, displayName, role, m.now()) {
		return sess.View(), nil
	}
	if err := m.persist("join"); err != nil {
		m.sessions[sessionID] = prev
		return RosterView{}, err
	}

	if len(sess.Participants) > sess.Capacity {
		managerLog.Debug("participant_waitlisted",
			slog.String("session", sessionID),
			slog.String("user", userID),
			slog.Int("position", len(sess.Participants)))
	}
	m.record("join", sessionID, userID+" as "+role)
	return sess.View(), nil
}

// Leave removes a participant. Absent participants are a no-op, not an
// error. Removing a rostered member promotes the earliest waitlisted one.
func (m *Manager) Leave(sessionID, userID string) (RosterView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return RosterView{}, ErrNotFound
	}

	prev := sess.Clone()
	if !sess.leave(userID) {
		return sess.View(), nil
	}
	if err := m.persist("leave"); err != nil {
		m.sessions[sessionID] = prev
		return RosterView{}, err
	}

	m.record("leave", sessionID, userID)
	return sess.View(), nil
}

// Edit updates the session details and start time. Owner-only. On success
// the reminder is reset to pending and both due times are recomputed, so
// nothing scheduled under the old start time can fire.
func (m *Manager) Edit(sessionID, byUserID, activity, dateLabel, timeLabel string, startsAt time.Time) (*Session, error) {
	if startsAt.IsZero() {
		return nil, &ValidationError{Reason: "start time is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.OwnerID != byUserID {
		return nil, ErrNotOwner
	}

	now := m.now()
	if startsAt.Before(now.Add(-m.cfg.BackwardTolerance)) {
		return nil, &ValidationError{Reason: "start time is in the past"}
	}

	prev := sess.Clone()
	sess.Activity = activity
	sess.DateLabel = dateLabel
	sess.TimeLabel = timeLabel
	sess.Reminder = ReminderPending
	sess.reschedule(startsAt, m.cfg.ReminderOffset, m.cfg.CleanupOffset)

	if err := m.persist("edit"); err != nil {
		m.sessions[sessionID] = prev
		return nil, err
	}

	managerLog.Info("session_edited",
		slog.String("session", sessionID),
		slog.Time("starts_at", startsAt))
	m.record("edit", sessionID, activity)
	return sess.Clone(), nil
}

// Cancel removes the session immediately. Owner-only. The returned copy has
// its reminder marked cancelled; the caller is responsible for discarding
// the thread.
func (m *Manager) Cancel(sessionID, byUserID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.OwnerID != byUserID {
		return nil, ErrNotOwner
	}

	delete(m.sessions, sessionID)
	if err := m.persist("cancel"); err != nil {
		m.sessions[sessionID] = sess
		return nil, err
	}

	managerLog.Info("session_cancelled", slog.String("session", sessionID))
	m.record("cancel", sessionID, sess.Activity)

	removed := sess.Clone()
	removed.Reminder = ReminderCancelled
	return removed, nil
}

// MarkReminderFired durably flips the reminder from pending to fired. The
// dispatcher calls this BEFORE sending: a crash between mark and send costs
// at most one reminder under at-least-once semantics, never a double state
// transition.
func (m *Manager) MarkReminderFired(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Reminder != ReminderPending {
		return nil
	}

	sess.Reminder = ReminderFired
	if err := m.persist("mark_reminder"); err != nil {
		sess.Reminder = ReminderPending
		return err
	}
	return nil
}

// DropReminder durably consumes a reminder without dispatching it. Used when
// the due time is past the staleness window after a long outage.
func (m *Manager) DropReminder(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Reminder != ReminderPending {
		return nil
	}

	sess.Reminder = ReminderCancelled
	if err := m.persist("drop_reminder"); err != nil {
		sess.Reminder = ReminderPending
		return err
	}
	m.record("reminder_dropped", sessionID, "stale past recovery window")
	return nil
}

// Remove deletes a session from the store. Called only after its cleanup has
// been dispatched (successfully or with a terminal platform error).
func (m *Manager) Remove(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}

	delete(m.sessions, sessionID)
	if err := m.persist("remove"); err != nil {
		m.sessions[sessionID] = sess
		return err
	}
	return nil
}

// SetMessageRef records the pinned summary message id for later re-renders.
func (m *Manager) SetMessageRef(sessionID, messageRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}

	prev := sess.MessageRef
	sess.MessageRef = messageRef
	if err := m.persist("set_message_ref"); err != nil {
		sess.MessageRef = prev
		return err
	}
	return nil
}

// Get returns a copy of one session.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// Snapshot returns copies of all sessions ordered by creation time. This is
// the scheduler's read model.
func (m *Manager) Snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		list = append(list, sess.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// persist writes the snapshot; callers hold m.mu and roll their mutation
// back when it fails.
func (m *Manager) persist(op string) error {
	if err := m.store.Save(m.sessions); err != nil {
		managerLog.Error("persist_failed",
			slog.String("op", op),
			slog.String("error", err.Error()))
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

// record forwards an audit event if a recorder is attached. Callers hold
// m.mu; recorders must not call back into the manager.
func (m *Manager) record(kind, sessionID, detail string) {
	if m.recorder != nil {
		m.recorder.RecordEvent(kind, sessionID, detail)
	}
}
