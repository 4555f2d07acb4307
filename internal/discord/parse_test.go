package discord

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/party-deck/internal/party"
)

func TestParseDetails(t *testing.T) {
	activity, date, clock, err := parseDetails("  crypt-3   7/6  20:00 ")
	require.NoError(t, err)
	assert.Equal(t, "crypt-3", activity)
	assert.Equal(t, "7/6", date)
	assert.Equal(t, "20:00", clock)

	for _, line := range []string{"", "crypt-3", "crypt-3 7/6", "crypt-3 7/6 20:00 extra"} {
		_, _, _, err := parseDetails(line)
		var ve *party.ValidationError
		assert.True(t, errors.As(err, &ve), "line %q: error = %v", line, err)
	}
}

func TestParseStartTime(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	ref := time.Date(2026, 7, 1, 12, 0, 0, 0, seoul)

	got, err := ParseStartTime("7/6", "20:00", ref, seoul)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 7, 6, 20, 0, 0, 0, seoul)), "got %v", got)

	// Single-digit fields parse too.
	got, err = ParseStartTime("12/3", "9:05", ref, seoul)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 12, 3, 9, 5, 0, 0, seoul)), "got %v", got)

	// The year is always ref's year. A date earlier in the year resolves in
	// the past and is rejected downstream, never silently moved forward.
	got, err = ParseStartTime("1/2", "10:00", ref, seoul)
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())

	for _, tc := range [][2]string{
		{"7-6", "20:00"},
		{"13/1", "20:00"},
		{"7/6", "25:00"},
		{"7/6", "eight"},
		{"", ""},
	} {
		_, err := ParseStartTime(tc[0], tc[1], ref, seoul)
		var ve *party.ValidationError
		assert.True(t, errors.As(err, &ve), "input %v: error = %v", tc, err)
	}
}
