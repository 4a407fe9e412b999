// Package callwindow decides whether a callee may be called right now and,
// when not, when their daily calling window next opens. All reasoning happens
// in the callee's local wall-clock time, including across DST transitions.
package callwindow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidWindow is returned by Validate and ParseDays for out-of-range values.
var ErrInvalidWindow = errors.New("callwindow: invalid window")

// DefaultDays is Monday through Friday (Sunday=0).
var DefaultDays = []int{1, 2, 3, 4, 5}

// Window is a daily calling window in the callee's local time.
//
// StartHour == EndHour is a zero-width window that never opens.
// StartHour > EndHour wraps past midnight (e.g. 22 to 6).
// A nil Days means DefaultDays; a non-nil empty Days means no day is allowed.
type Window struct {
	StartHour int   `json:"start_hour"`
	EndHour   int   `json:"end_hour"`
	Days      []int `json:"days_of_week"`
}

// EffectiveDays returns the allowed weekdays, applying the default when unset.
func (w Window) EffectiveDays() []int {
	if w.Days == nil {
		return DefaultDays
	}
	return w.Days
}

// Allows reports whether weekday (0=Sunday..6=Saturday) is an allowed day.
func (w Window) Allows(weekday int) bool {
	for _, d := range w.EffectiveDays() {
		if d == weekday {
			return true
		}
	}
	return false
}

// Overnight reports whether the window wraps past midnight.
func (w Window) Overnight() bool {
	return w.StartHour > w.EndHour
}

// containsHour applies the hour test without the weekday gate.
func (w Window) containsHour(hour int) bool {
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

// Validate checks hour and weekday ranges. EndHour may be 24 to mean end of day.
func (w Window) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 {
		return fmt.Errorf("%w: start hour %d outside 0-23", ErrInvalidWindow, w.StartHour)
	}
	if w.EndHour < 0 || w.EndHour > 24 {
		return fmt.Errorf("%w: end hour %d outside 0-24", ErrInvalidWindow, w.EndHour)
	}
	for _, d := range w.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d outside 0-6", ErrInvalidWindow, d)
		}
	}
	return nil
}

// String renders the window as "09-20 [1 2 3 4 5]".
func (w Window) String() string {
	return fmt.Sprintf("%02d-%02d %v", w.StartHour, w.EndHour, w.EffectiveDays())
}

// ParseDays parses a comma separated weekday list such as "1,2,3,4,5".
// An empty string returns nil so the window falls back to DefaultDays.
// "none" returns an empty, non-nil list.
func ParseDays(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.EqualFold(raw, "none") {
		return []int{}, nil
	}
	parts := strings.Split(raw, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: weekday %q: %v", ErrInvalidWindow, p, err)
		}
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: weekday %d outside 0-6", ErrInvalidWindow, d)
		}
		days = append(days, d)
	}
	return days, nil
}

// Date is a calendar date with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date t falls on in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays returns the date n days later, rolling months and years as needed.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// DaysUntil returns the number of days from d to o (negative when o is earlier).
func (d Date) DaysUntil(o Date) int {
	from := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	to := time.Date(o.Year, o.Month, o.Day, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / (24 * time.Hour))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
