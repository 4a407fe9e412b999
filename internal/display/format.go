// Package display renders a callee's zone and wall-clock time for people.
// Nothing here feeds back into calling decisions.
package display

import (
	"fmt"
	"time"

	"github.com/wolfman30/callwindow/internal/callwindow"
)

// Formatter renders zone labels and local times through a Projector.
type Formatter struct {
	projector callwindow.Projector
	now       func() time.Time
}

// NewFormatter returns a Formatter over p. A nil p uses the IANA database.
func NewFormatter(p callwindow.Projector) *Formatter {
	if p == nil {
		p = callwindow.LocationProjector{}
	}
	return &Formatter{projector: p, now: time.Now}
}

// WithClock returns a copy of f that reads "now" from clock.
func (f *Formatter) WithClock(clock func() time.Time) *Formatter {
	cp := *f
	if clock != nil {
		cp.now = clock
	}
	return &cp
}

// Zone renders tz's current abbreviation and offset, e.g. "EST (UTC-5)".
func (f *Formatter) Zone(tz string) string {
	return f.ZoneAt(tz, f.now())
}

// ZoneAt renders tz's abbreviation and offset in force at the given instant.
func (f *Formatter) ZoneAt(tz string, at time.Time) string {
	local := f.project(tz, at)
	return fmt.Sprintf("%s (UTC%s)", local.Abbreviation, formatOffset(local.OffsetSeconds))
}

// LocalTime renders the current wall-clock time in tz, e.g. "2:30 PM".
func (f *Formatter) LocalTime(tz string) string {
	return f.LocalTimeAt(tz, f.now())
}

// LocalTimeAt renders the wall-clock time in tz at the given instant.
func (f *Formatter) LocalTimeAt(tz string, at time.Time) string {
	local := f.project(tz, at)
	hour := local.Hour % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "AM"
	if local.Hour >= 12 {
		meridiem = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", hour, local.Minute, meridiem)
}

// project falls back to UTC for zones the projector cannot load.
func (f *Formatter) project(tz string, at time.Time) callwindow.LocalInstant {
	local, err := f.projector.Project(tz, at)
	if err != nil {
		return callwindow.LocalInstantOf(at.UTC())
	}
	return local
}

// formatOffset renders seconds east of UTC as "+0", "-5" or "+5:30".
func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("%s%d", sign, hours)
	}
	return fmt.Sprintf("%s%d:%02d", sign, hours, minutes)
}

var defaultFormatter = NewFormatter(nil)

// FormatZone renders tz's current abbreviation and UTC offset.
func FormatZone(tz string) string {
	return defaultFormatter.Zone(tz)
}

// FormatLocalTime renders the current 12-hour wall-clock time in tz.
func FormatLocalTime(tz string) string {
	return defaultFormatter.LocalTime(tz)
}
