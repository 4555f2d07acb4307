package party

import (
	"time"
)

// ReminderState tracks the lifecycle of a session's one-shot reminder.
type ReminderState string

const (
	// ReminderPending means the reminder has not been consumed yet.
	ReminderPending ReminderState = "pending"
	// ReminderFired means the reminder was dispatched (or deliberately
	// dropped as stale). It never fires again.
	ReminderFired ReminderState = "fired"
	// ReminderCancelled means the schedule this reminder belonged to was
	// invalidated (session cancelled). A cancelled reminder never fires.
	ReminderCancelled ReminderState = "cancelled"
)

// Participant is one signed-up user. Join order is the slice order and is
// fixed at first join; re-joining with a different role updates the entry in
// place.
type Participant struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Session is one recruitment event: a sign-up thread with a start time, an
// ordered roster bounded by Capacity, and an overflow waitlist.
type Session struct {
	// ID is the chat-platform thread id. Externally assigned, stable.
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	// Display attributes. DateLabel/TimeLabel are kept verbatim as the
	// owner typed them; StartsAt is the resolved instant.
	Activity  string `json:"activity"`
	DateLabel string `json:"date_label"`
	TimeLabel string `json:"time_label"`

	StartsAt   time.Time     `json:"starts_at"`
	ReminderAt time.Time     `json:"reminder_at"`
	CleanupAt  time.Time     `json:"cleanup_at"`
	Reminder   ReminderState `json:"reminder"`

	Participants []Participant `json:"participants"`
	Capacity     int           `json:"capacity"`

	// MessageRef is the pinned summary message id, for re-rendering.
	MessageRef string    `json:"message_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RosterView is the roster/waitlist split returned by mutations, for
// rendering.
type RosterView struct {
	Roster   []Participant
	Waitlist []Participant
}

// Roster returns the first Capacity participants in join order.
func (s *Session) Roster() []Participant {
	if s.Capacity <= 0 || len(s.Participants) <= s.Capacity {
		return s.Participants
	}
	return s.Participants[:s.Capacity]
}

// Waitlist returns participants beyond Capacity in join order.
func (s *Session) Waitlist() []Participant {
	if s.Capacity <= 0 || len(s.Participants) <= s.Capacity {
		return nil
	}
	return s.Participants[s.Capacity:]
}

// View returns the current roster/waitlist split. The returned slices are
// copies and safe to hold across further mutations.
func (s *Session) View() RosterView {
	roster := make([]Participant, len(s.Roster()))
	copy(roster, s.Roster())
	var waitlist []Participant
	if wl := s.Waitlist(); len(wl) > 0 {
		waitlist = make([]Participant, len(wl))
		copy(waitlist, wl)
	}
	return RosterView{Roster: roster, Waitlist: waitlist}
}

// Clone returns a deep copy. Manager hands out clones so callers can never
// mutate managed state without going through Manager methods.
func (s *Session) Clone() *Session {
	c := *s
	c.Participants = make([]Participant, len(s.Participants))
	copy(c.Participants, s.Participants)
	return &c
}

// join adds or updates a participant. Position is fixed at first join;
// re-joining only refreshes the role and display name. Reports whether the
// session changed.
func (s *Session) join(userID, displayName, role string, now time.Time) bool {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			if s.Participants[i].Role == role && s.Participants[i].DisplayName == displayName {
				return false
			}
			s.Participants[i].Role = role
			s.Participants[i].DisplayName = displayName
			return true
		}
	}
	s.Participants = append(s.Participants, Participant{
		UserID:      userID,
		DisplayName: displayName,
		Role:        role,
		JoinedAt:    now,
	})
	return true
}

// leave removes a participant. Later entries shift up, which is what promotes
// the earliest waitlisted user into the roster. Reports whether the
// participant was present.
func (s *Session) leave(userID string) bool {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// reschedule updates the start time and recomputes both absolute due
// instants from the configured offsets.
func (s *Session) reschedule(startsAt time.Time, reminderOffset, cleanupOffset time.Duration) {
	s.StartsAt = startsAt
	s.ReminderAt = startsAt.Add(-reminderOffset)
	s.CleanupAt = startsAt.Add(cleanupOffset)
}

// ReminderDue reports whether the reminder should fire at now.
func (s *Session) ReminderDue(now time.Time) bool {
	return s.Reminder == ReminderPending && !s.ReminderAt.After(now)
}

// CleanupDue reports whether the session should be retired at now. Cleanup
// is independent of the reminder: a session nobody joined is still retired.
func (s *Session) CleanupDue(now time.Time) bool {
	return !s.CleanupAt.After(now)
}
