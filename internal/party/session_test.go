package party

import (
	"fmt"
	"testing"
	"time"
)

func newTestSession(capacity int) *Session {
	starts := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)
	s := &Session{
		ID:        "thread-1",
		OwnerID:   "owner",
		Activity:  "Valtan Raid",
		DateLabel: "3/14",
		TimeLabel: "21:00",
		Reminder:  ReminderPending,
		Capacity:  capacity,
		CreatedAt: starts.Add(-24 * time.Hour),
	}
	s.reschedule(starts, 30*time.Minute, time.Hour)
	return s
}

func TestRosterWaitlistSplit(t *testing.T) {
	s := newTestSession(8)
	now := time.Now()

	for i := 1; i <= 9; i++ {
		id := fmt.Sprintf("u%d", i)
		if !s.join(id, "User "+id, "DPS", now) {
			t.Fatalf("join %s reported no change", id)
		}
	}

	roster := s.Roster()
	if len(roster) != 8 {
		t.Fatalf("roster size = %d, want 8", len(roster))
	}
	waitlist := s.Waitlist()
	if len(waitlist) != 1 {
		t.Fatalf("waitlist size = %d, want 1", len(waitlist))
	}
	if waitlist[0].UserID != "u9" {
		t.Errorf("waitlisted user = %s, want u9", waitlist[0].UserID)
	}
	for i, p := range roster {
		want := fmt.Sprintf("u%d", i+1)
		if p.UserID != want {
			t.Errorf("roster[%d] = %s, want %s", i, p.UserID, want)
		}
	}
}

func TestRejoinKeepsPosition(t *testing.T) {
	s := newTestSession(8)
	now := time.Now()

	s.join("u1", "Alice", "Tank", now)
	s.join("u2", "Bob", "Healer", now)
	s.join("u3", "Carol", "DPS", now)

	// Same role, same name: no change to report.
	if s.join("u2", "Bob", "Healer", now) {
		t.Error("identical re-join reported a change")
	}

	// New role: entry updated in place, position unchanged.
	if !s.join("u2", "Bob", "DPS", now) {
		t.Fatal("role change reported no change")
	}
	if len(s.Participants) != 3 {
		t.Fatalf("participant count = %d, want 3", len(s.Participants))
	}
	if s.Participants[1].UserID != "u2" || s.Participants[1].Role != "DPS" {
		t.Errorf("participants[1] = %s/%s, want u2/DPS",
			s.Participants[1].UserID, s.Participants[1].Role)
	}
}

func TestLeavePromotesWaitlist(t *testing.T) {
	s := newTestSession(2)
	now := time.Now()
	s.join("u1", "", "Tank", now)
	s.join("u2", "", "Healer", now)
	s.join("u3", "", "DPS", now)

	if got := s.Waitlist(); len(got) != 1 || got[0].UserID != "u3" {
		t.Fatalf("waitlist before leave = %+v, want [u3]", got)
	}

	if !s.leave("u1") {
		t.Fatal("leave u1 reported not present")
	}
	roster := s.Roster()
	if len(roster) != 2 || roster[0].UserID != "u2" || roster[1].UserID != "u3" {
		t.Errorf("roster after leave = %+v, want [u2 u3]", roster)
	}
	if len(s.Waitlist()) != 0 {
		t.Errorf("waitlist after leave = %+v, want empty", s.Waitlist())
	}

	if s.leave("u99") {
		t.Error("leave of unknown user reported present")
	}
}

func TestDueChecks(t *testing.T) {
	s := newTestSession(8)

	if s.ReminderDue(s.ReminderAt.Add(-time.Second)) {
		t.Error("reminder due before its time")
	}
	if !s.ReminderDue(s.ReminderAt) {
		t.Error("reminder not due at its exact time")
	}
	if !s.ReminderDue(s.ReminderAt.Add(time.Hour)) {
		t.Error("reminder not due after its time")
	}

	s.Reminder = ReminderFired
	if s.ReminderDue(s.ReminderAt.Add(time.Hour)) {
		t.Error("fired reminder reported due")
	}
	s.Reminder = ReminderCancelled
	if s.ReminderDue(s.ReminderAt.Add(time.Hour)) {
		t.Error("cancelled reminder reported due")
	}

	if s.CleanupDue(s.CleanupAt.Add(-time.Second)) {
		t.Error("cleanup due before its time")
	}
	if !s.CleanupDue(s.CleanupAt) {
		t.Error("cleanup not due at its exact time")
	}
}

func TestCloneIsolation(t *testing.T) {
	s := newTestSession(8)
	s.join("u1", "Alice", "Tank", time.Now())

	c := s.Clone()
	c.Participants[0].Role = "Healer"
	c.Activity = "changed"

	if s.Participants[0].Role != "Tank" {
		t.Error("mutating clone participants changed the original")
	}
	if s.Activity != "Valtan Raid" {
		t.Error("mutating clone fields changed the original")
	}
}

func TestViewCopies(t *testing.T) {
	s := newTestSession(2)
	now := time.Now()
	s.join("u1", "", "Tank", now)
	s.join("u2", "", "Healer", now)
	s.join("u3", "", "DPS", now)

	v := s.View()
	v.Roster[0].UserID = "mutated"
	v.Waitlist[0].UserID = "mutated"

	if s.Participants[0].UserID != "u1" || s.Participants[2].UserID != "u3" {
		t.Error("mutating a view changed the session")
	}
}
