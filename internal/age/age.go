// Package age renders the distance between an event and now the way kubectl
// prints resource ages ("0s", "3m", "1h5m", "2d").
package age

import (
	"strconv"
	"time"
)

const (
	minute = 60
	hour   = 60 * minute
	day    = 24 * hour
)

// Format returns the age of t relative to now. Future instants (clock skew)
// are reported by their absolute distance. All units are floored.
func Format(t, now time.Time) string {
	s := seconds(t, now)
	switch {
	case s < minute:
		return itoa(s) + "s"
	case s < hour:
		return itoa(s/minute) + "m"
	case s < day:
		h, m := s/hour, (s%hour)/minute
		if m > 0 {
			return itoa(h) + "h" + itoa(m) + "m"
		}
		return itoa(h) + "h"
	default:
		d, h := s/day, (s%day)/hour
		if h > 0 {
			return itoa(d) + "d" + itoa(h) + "h"
		}
		return itoa(d) + "d"
	}
}

// FormatCoarse is like Format but only prints the leading unit.
func FormatCoarse(t, now time.Time) string {
	s := seconds(t, now)
	switch {
	case s < minute:
		return itoa(s) + "s"
	case s < hour:
		return itoa(s/minute) + "m"
	case s < day:
		return itoa(s/hour) + "h"
	default:
		return itoa(s/day) + "d"
	}
}

// seconds works on instants, so the zones carried by t and now never matter.
func seconds(t, now time.Time) int64 {
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	return int64(d / time.Second)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
