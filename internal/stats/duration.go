package stats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how SecondsToDuration renders a value.
type Mode int

const (
	// ModeStd renders HH:MM:SS, or Dd HH:MM:SS from one day up.
	ModeStd Mode = iota
	// ModeShort renders only the coarsest nonzero unit, e.g. 3d or 45m.
	ModeShort
	// ModeClock renders MM:SS for countdowns.
	ModeClock
)

// ErrBadDuration is returned when a duration string cannot be parsed.
var ErrBadDuration = errors.New("invalid duration")

// SecondsToDuration formats whole seconds. Zero and negative values render as zero.
func SecondsToDuration(secs int, mode Mode) string {
	if secs < 0 {
		secs = 0
	}
	days := secs / 86400
	hours := secs % 86400 / 3600
	minutes := secs % 3600 / 60
	seconds := secs % 60

	switch mode {
	case ModeShort:
		switch {
		case days > 0:
			return fmt.Sprintf("%dd", days)
		case hours > 0:
			return fmt.Sprintf("%dh", hours)
		case minutes > 0:
			return fmt.Sprintf("%dm", minutes)
		default:
			return fmt.Sprintf("%ds", seconds)
		}
	case ModeClock:
		return fmt.Sprintf("%02d:%02d", secs/60, seconds)
	default:
		if days > 0 {
			return fmt.Sprintf("%dd %02d:%02d:%02d", days, hours, minutes, seconds)
		}
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
}

// DurationToSeconds parses "Dd HH:MM:SS", "D HH:MM:SS", "HH:MM:SS" or "MM:SS".
func DurationToSeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadDuration
	}
	days := 0
	if dayPart, rest, ok := strings.Cut(s, " "); ok {
		d, err := strconv.Atoi(strings.TrimSuffix(dayPart, "d"))
		if err != nil || d < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
		}
		days = d
		s = strings.TrimSpace(rest)
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
		}
		total = total*60 + n
	}
	return days*86400 + total, nil
}

// ShortDuration renders float seconds in ModeShort.
func ShortDuration(secs float64) string {
	return SecondsToDuration(int(secs), ModeShort)
}
