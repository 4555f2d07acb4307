package party

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakePlatform is a scripted ChatPlatform for dispatcher and scheduler tests.
type fakePlatform struct {
	mu sync.Mutex

	sent     []string // message bodies, in order
	archived []string // thread ids, in order

	sendErrs    []error // consumed one per SendMessage call
	archiveErrs []error // consumed one per ArchiveThread call

	members map[string]Member
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{members: make(map[string]Member)}
}

func (f *fakePlatform) CreateThread(ctx context.Context, channelID, name string) (string, error) {
	return "thread-" + name, nil
}

func (f *fakePlatform) SendMessage(ctx context.Context, threadID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, content)
	return "msg-1", nil
}

func (f *fakePlatform) EditMessage(ctx context.Context, threadID, messageID, content string) error {
	return nil
}

func (f *fakePlatform) PinMessage(ctx context.Context, threadID, messageID string) error {
	return nil
}

func (f *fakePlatform) ArchiveThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.archiveErrs) > 0 {
		err := f.archiveErrs[0]
		f.archiveErrs = f.archiveErrs[1:]
		if err != nil {
			return err
		}
	}
	f.archived = append(f.archived, threadID)
	return nil
}

func (f *fakePlatform) ResolveMember(ctx context.Context, userID string) (Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[userID]; ok {
		return m, nil
	}
	return Member{}, errors.New("unknown member")
}

func (f *fakePlatform) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakePlatform) archivedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.archived)
}

func transientErr() error {
	return &PlatformError{Op: "send", Err: errors.New("http 500")}
}

func terminalErr() error {
	return &PlatformError{Op: "send", Terminal: true, Err: errors.New("unknown channel")}
}

func TestFireReminderMarksBeforeSend(t *testing.T) {
	m, _ := newTestManager(t)
	platform := newFakePlatform()
	// One send failure on every attempt: the reminder is still consumed.
	platform.sendErrs = []error{transientErr(), transientErr(), transientErr()}
	d := NewDispatcher(m, platform, DispatcherConfig{})

	mustCreate(t, m, "t1", testNow.Add(time.Hour))
	sess, _ := m.Get("t1")

	if err := d.FireReminder(context.Background(), sess, testNow); err == nil {
		t.Fatal("FireReminder succeeded despite scripted send failures")
	}

	got, _ := m.Get("t1")
	if got.Reminder != ReminderFired {
		t.Errorf("reminder = %s, want fired even when the send failed", got.Reminder)
	}
	if platform.sentCount() != 0 {
		t.Errorf("sent = %d, want 0", platform.sentCount())
	}
}

func TestFireReminderRetriesTransient(t *testing.T) {
	m, _ := newTestManager(t)
	platform := newFakePlatform()
	platform.sendErrs = []error{transientErr(), nil}
	d := NewDispatcher(m, platform, DispatcherConfig{})

	mustCreate(t, m, "t1", testNow.Add(time.Hour))
	sess, _ := m.Get("t1")

	if err := d.FireReminder(context.Background(), sess, testNow); err != nil {
		t.Fatalf("FireReminder: %v", err)
	}
	if platform.sentCount() != 1 {
		t.Errorf("sent = %d, want 1", platform.sentCount())
	}
}

func TestFireReminderStopsOnTerminal(t *testing.T) {
	m, _ := newTestManager(t)
	platform := newFakePlatform()
	platform.sendErrs = []error{terminalErr(), nil, nil}
	d := NewDispatcher(m, platform, DispatcherConfig{})

	mustCreate(t, m, "t1", testNow.Add(time.Hour))
	sess, _ := m.Get("t1")

	err := d.FireReminder(context.Background(), sess, testNow)
	if !IsTerminal(err) {
		t.Fatalf("error = %v, want terminal", err)
	}
	// No retry after a terminal failure: the next scripted nil was not used.
	if platform.sentCount() != 0 {
		t.Errorf("sent = %d, want 0", platform.sentCount())
	}
}

func TestReminderBodyMentionsAndFallback(t *testing.T) {
	m, _ := newTestManager(t)
	platform := newFakePlatform()
	platform.members["u1"] = Member{DisplayName: "Alice", Mention: "<@u1>"}
	d := NewDispatcher(m, platform, DispatcherConfig{})

	starts := testNow.Add(time.Hour)
	mustCreate(t, m, "t1", starts)
	if _, err := m.Join("t1", "u1", "Alice", "Tank"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Join("t1", "u2", "", "Healer"); err != nil {
		t.Fatal(err)
	}
	sess, _ := m.Get("t1")

	body := d.reminderBody(context.Background(), sess, starts.Add(-30*time.Minute))
	if !strings.Contains(body, "<@u1>") {
		t.Errorf("body missing resolved mention: %q", body)
	}
	// Unresolvable member falls back to the raw id.
	if !strings.Contains(body, "u2") {
		t.Errorf("body missing fallback id: %q", body)
	}
	if !strings.Contains(body, "Valtan Raid") {
		t.Errorf("body missing activity: %q", body)
	}
	// Lead is computed from the instant the scheduler evaluated, not the
	// wall clock.
	if !strings.Contains(body, "starts in 30m0s") {
		t.Errorf("body lead not derived from the tick instant: %q", body)
	}

	late := d.reminderBody(context.Background(), sess, starts.Add(time.Minute))
	if !strings.Contains(late, "starting now") {
		t.Errorf("post-start body = %q, want the starting-now form", late)
	}
}

func TestFireCleanupAbsorbsTerminal(t *testing.T) {
	m, _ := newTestManager(t)
	platform := newFakePlatform()
	platform.archiveErrs = []error{terminalErr()}
	d := NewDispatcher(m, platform, DispatcherConfig{})

	mustCreate(t, m, "t1", testNow.Add(time.Hour))
	sess, _ := m.Get("t1")

	if err := d.FireCleanup(context.Background(), sess); err != nil {
		t.Errorf("terminal cleanup error surfaced: %v", err)
	}
}

func TestFireCleanupReturnsTransient(t *testing.T) {
	m, _ := newTestManager(t)
	platform := newFakePlatform()
	platform.archiveErrs = []error{transientErr()}
	d := NewDispatcher(m, platform, DispatcherConfig{})

	mustCreate(t, m, "t1", testNow.Add(time.Hour))
	sess, _ := m.Get("t1")

	if err := d.FireCleanup(context.Background(), sess); err == nil {
		t.Error("transient cleanup error swallowed")
	}
	if platform.archivedCount() != 0 {
		t.Errorf("archived = %d, want 0", platform.archivedCount())
	}
}
