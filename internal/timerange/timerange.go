// Package timerange parses the short textual window tokens used by the
// analytics endpoints ("7d", "4w", "1y", "all") into concrete day counts.
package timerange

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRange is returned for tokens the resolver does not recognize.
// Unknown tokens are a validation failure, never a silent default.
var ErrInvalidRange = errors.New("invalid range token")

// Day counts are clamped to this window; "1y" resolves to the ceiling.
const (
	minDays = 1
	maxDays = 365
)

// DefaultDays is the window applied when a caller passes no token at all.
const DefaultDays = 30

// Window is a resolved time window. When AllTime is set the window has no
// lower bound and Days is zero.
type Window struct {
	Token   string
	Days    int
	AllTime bool
}

// Resolve parses a window token. An empty token resolves to the default
// 30-day window. Supported forms: bare day counts ("7"), day/week/month
// suffixes ("7d", "4w", "3m"), the year token ("1y"), and the all-time
// sentinels ("all", "max", "full").
func Resolve(token string) (Window, error) {
	raw := strings.ToLower(strings.TrimSpace(token))
	if raw == "" {
		return Window{Token: "30d", Days: DefaultDays}, nil
	}

	switch raw {
	case "all", "max", "full":
		return Window{Token: "all", AllTime: true}, nil
	case "1y":
		return Window{Token: "1y", Days: maxDays}, nil
	}

	multiplier := 1
	digits := raw
	switch {
	case strings.HasSuffix(raw, "d"):
		digits = raw[:len(raw)-1]
	case strings.HasSuffix(raw, "w"):
		digits = raw[:len(raw)-1]
		multiplier = 7
	case strings.HasSuffix(raw, "m"):
		digits = raw[:len(raw)-1]
		multiplier = 30
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return Window{}, ErrInvalidRange
	}

	days := n * multiplier
	if days < minDays {
		days = minDays
	}
	if days > maxDays {
		days = maxDays
	}
	return Window{Token: strconv.Itoa(days) + "d", Days: days}, nil
}

// Start returns the window's lower bound relative to now, or the zero time
// for an all-time window.
func (w Window) Start(now time.Time) time.Time {
	if w.AllTime {
		return time.Time{}
	}
	return now.AddDate(0, 0, -w.Days)
}

// PreviousStart returns the lower bound of the immediately preceding
// equal-length window, used for delta-vs-previous-period comparisons. For an
// all-time window there is no preceding period and the zero time is returned.
func (w Window) PreviousStart(now time.Time) time.Time {
	if w.AllTime {
		return time.Time{}
	}
	return now.AddDate(0, 0, -2*w.Days)
}
