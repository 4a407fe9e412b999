package callwindow

import (
	"errors"
	"fmt"
	"time"
	// Embedded IANA database so minimal container images still resolve zones.
	_ "time/tzdata"
)

// ErrUnknownZone is returned when a zone name cannot be loaded.
var ErrUnknownZone = errors.New("callwindow: unknown timezone")

// LocalInstant is a UTC instant as seen on a wall clock in some zone.
type LocalInstant struct {
	Date    Date
	Hour    int
	Minute  int
	Weekday int // 0=Sunday..6=Saturday

	Abbreviation  string // e.g. "EST", may be numeric like "+0530" for some zones
	OffsetSeconds int
}

// ClockMinutes is minutes since local midnight.
func (l LocalInstant) ClockMinutes() int {
	return l.Hour*60 + l.Minute
}

// LocalInstantOf describes t in t's own location.
func LocalInstantOf(t time.Time) LocalInstant {
	abbr, offset := t.Zone()
	return LocalInstant{
		Date:          DateOf(t),
		Hour:          t.Hour(),
		Minute:        t.Minute(),
		Weekday:       int(t.Weekday()),
		Abbreviation:  abbr,
		OffsetSeconds: offset,
	}
}

// Projector projects a UTC instant into a named zone's wall-clock time using
// whatever DST rules apply on that date. Implementations must be safe for
// concurrent use and must not cache projections across calls.
type Projector interface {
	Project(tz string, at time.Time) (LocalInstant, error)
}

// ProjectorFunc adapts a plain function to the Projector interface.
type ProjectorFunc func(tz string, at time.Time) (LocalInstant, error)

// Project calls f.
func (f ProjectorFunc) Project(tz string, at time.Time) (LocalInstant, error) {
	return f(tz, at)
}

// LocationProjector projects through the IANA database via time.LoadLocation.
type LocationProjector struct{}

// Project implements Projector.
func (LocationProjector) Project(tz string, at time.Time) (LocalInstant, error) {
	if tz == "" {
		return LocalInstant{}, fmt.Errorf("%w: empty name", ErrUnknownZone)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return LocalInstant{}, fmt.Errorf("%w: %q: %v", ErrUnknownZone, tz, err)
	}
	return LocalInstantOf(at.In(loc)), nil
}
