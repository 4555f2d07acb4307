package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/asheshgoplani/party-deck/internal/party"
)

// renderSummary builds the pinned summary message body. Re-rendered on every
// roster mutation and on edits.
func renderSummary(sess *party.Session) string {
	view := sess.View()

	var b strings.Builder
	b.WriteString("🎯 **Party recruiting!**\n")
	fmt.Fprintf(&b, "📍 Activity: **%s**\n", sess.Activity)
	fmt.Fprintf(&b, "📅 Date: **%s**\n", sess.DateLabel)
	fmt.Fprintf(&b, "⏰ Time: **%s**\n\n", sess.TimeLabel)

	b.WriteString("**🧑‍🤝‍🧑 Roster:**\n")
	if len(view.Roster) == 0 {
		b.WriteString("(nobody yet)\n")
	}
	for _, p := range view.Roster {
		fmt.Fprintf(&b, "- %s: %s\n", participantName(p), p.Role)
	}

	if len(view.Waitlist) > 0 {
		b.WriteString("\n**📄 Waitlist:**\n")
		for _, p := range view.Waitlist {
			fmt.Fprintf(&b, "- %s: %s\n", participantName(p), p.Role)
		}
	}

	fmt.Fprintf(&b, "\n🔔 Everyone signed up gets pinged %s before start.\n", formatLead(sess.StartsAt.Sub(sess.ReminderAt)))
	fmt.Fprintf(&b, "👇 Pick a role below to join, or choose Leave to drop out. Up to %d on the roster, waitlist beyond that.", sess.Capacity)
	return b.String()
}

func participantName(p party.Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UserID
}

func formatLead(d time.Duration) string {
	d = d.Round(time.Minute)
	if d <= 0 {
		return "right"
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return d.String()
}
