package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/asheshgoplani/party-deck/internal/party"
)

// detailsUsage is echoed whenever the one-line details format is wrong.
const detailsUsage = "`activity M/D HH:MM`, e.g. `crypt-3 7/6 20:00`"

// parseDetails splits the one-line party details reply.
func parseDetails(line string) (activity, dateLabel, timeLabel string, err error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) != 3 {
		return "", "", "", &party.ValidationError{Reason: "expected " + detailsUsage}
	}
	return parts[0], parts[1], parts[2], nil
}

// ParseStartTime resolves "M/D" + "HH:MM" in loc against ref's year.
//
// No year guessing: the original bot silently rolled apparently-past dates to
// the next year, which turns a typo into a party scheduled eleven months out.
// Here the date always resolves in ref's year and the manager's backward
// tolerance rejects past instants, so the user is told instead of guessed at.
func ParseStartTime(dateLabel, timeLabel string, ref time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-1/2 15:04",
		fmt.Sprintf("%d-%s %s", ref.Year(), dateLabel, timeLabel), loc)
	if err != nil {
		return time.Time{}, &party.ValidationError{Reason: "bad date or time, expected " + detailsUsage}
	}
	return t, nil
}
