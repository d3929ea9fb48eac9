package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Task periods are written as an integer count with an optional unit suffix:
// s (seconds), m (minutes), h (hours), d (days). A bare integer means seconds.
var durationRe = regexp.MustCompile(`^([0-9]+)([smhd])?$`)

const day = 24 * time.Hour

// ParseDuration parses a period literal such as "30", "10s", "5m", "2h" or "1d".
func ParseDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: expected <count>[smhd]", s)
	}

	count, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch m[2] {
	case "", "s":
		return time.Duration(count) * time.Second, nil
	case "m":
		return time.Duration(count) * time.Minute, nil
	case "h":
		return time.Duration(count) * time.Hour, nil
	case "d":
		return time.Duration(count) * day, nil
	}
	return 0, fmt.Errorf("invalid duration unit %q in %q", m[2], s)
}

// FormatDuration renders a duration back into the period literal form,
// choosing the largest unit that divides it evenly. It round-trips through
// ParseDuration for any duration that is a whole number of seconds.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= day && d%day == 0:
		return fmt.Sprintf("%dd", d/day)
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}
