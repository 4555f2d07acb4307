package party

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "sessions.json"))
}

func TestStoreLoadMissingFile(t *testing.T) {
	s := newTestStore(t)

	sessions, err := s.Load()
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(sessions))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)

	starts := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)
	sess := &Session{
		ID:         "thread-1",
		OwnerID:    "owner",
		Activity:   "Valtan Raid",
		DateLabel:  "3/14",
		TimeLabel:  "21:00",
		StartsAt:   starts,
		ReminderAt: starts.Add(-30 * time.Minute),
		CleanupAt:  starts.Add(time.Hour),
		Reminder:   ReminderPending,
		Capacity:   8,
		MessageRef: "msg-1",
		CreatedAt:  starts.Add(-24 * time.Hour),
		Participants: []Participant{
			{UserID: "u1", DisplayName: "Alice", Role: "Tank", JoinedAt: starts.Add(-2 * time.Hour)},
			{UserID: "u2", Role: "Healer", JoinedAt: starts.Add(-time.Hour)},
		},
	}

	if err := s.Save(map[string]*Session{sess.ID: sess}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := loaded["thread-1"]
	if !ok {
		t.Fatal("saved session missing after load")
	}
	if got.Activity != sess.Activity || got.OwnerID != sess.OwnerID {
		t.Errorf("loaded session = %+v", got)
	}
	if !got.StartsAt.Equal(sess.StartsAt) || !got.ReminderAt.Equal(sess.ReminderAt) {
		t.Errorf("times lost in round trip: %v / %v", got.StartsAt, got.ReminderAt)
	}
	if got.Reminder != ReminderPending {
		t.Errorf("reminder = %s, want pending", got.Reminder)
	}
	if len(got.Participants) != 2 || got.Participants[0].UserID != "u1" {
		t.Errorf("participant order lost: %+v", got.Participants)
	}
}

func TestStoreLoadCorruptFile(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	sessions, err := s.Load()
	var corrupt *CorruptStoreError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Load error = %v, want CorruptStoreError", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Errorf("corrupt load did not yield usable empty map: %v", sessions)
	}
}

func TestStoreNormalizesMissingReminder(t *testing.T) {
	s := newTestStore(t)

	// A file written by an older build without the reminder field.
	raw := `{"sessions":[{"id":"t1","owner_id":"o","activity":"a","starts_at":"2026-03-14T21:00:00Z","reminder_at":"2026-03-14T20:30:00Z","cleanup_at":"2026-03-14T22:00:00Z","capacity":8,"created_at":"2026-03-13T21:00:00Z"}]}`
	if err := os.WriteFile(s.Path(), []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}

	sessions, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sessions["t1"].Reminder != ReminderPending {
		t.Errorf("reminder = %q, want pending", sessions["t1"].Reminder)
	}
}

func TestStoreSaveReplacesAtomically(t *testing.T) {
	s := newTestStore(t)

	first := &Session{ID: "t1", Reminder: ReminderPending, Capacity: 8, CreatedAt: time.Now()}
	if err := s.Save(map[string]*Session{"t1": first}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.Save(map[string]*Session{}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
	sessions, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %d, want 0 after empty save", len(sessions))
	}
}
