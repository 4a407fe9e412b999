package callwindow

import "time"

// Evaluator answers calling-window questions against a Projector and a clock.
// It holds no mutable state and is safe to share between goroutines.
type Evaluator struct {
	projector Projector
	now       func() time.Time
}

// NewEvaluator returns an Evaluator over p. A nil p uses LocationProjector.
func NewEvaluator(p Projector) *Evaluator {
	if p == nil {
		p = LocationProjector{}
	}
	return &Evaluator{projector: p, now: time.Now}
}

// WithClock returns a copy of e that reads "now" from clock.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	cp := *e
	if clock != nil {
		cp.now = clock
	}
	return &cp
}

// Projector returns the projector e evaluates against.
func (e *Evaluator) Projector() Projector {
	return e.projector
}

// Now returns the evaluator's current instant.
func (e *Evaluator) Now() time.Time {
	return e.now()
}

// IsCallable reports whether calling into tz is permitted right now.
func (e *Evaluator) IsCallable(tz string, w Window) bool {
	return e.IsCallableAt(tz, w, e.now())
}

// IsCallableAt reports whether calling into tz is permitted at now. A zone the
// projector cannot load is never callable.
func (e *Evaluator) IsCallableAt(tz string, w Window, now time.Time) bool {
	local, err := e.projector.Project(tz, now)
	if err != nil {
		return false
	}
	return w.allowsLocal(local)
}

func (w Window) allowsLocal(local LocalInstant) bool {
	if !w.Allows(local.Weekday) {
		return false
	}
	return w.containsHour(local.Hour)
}

var defaultEvaluator = NewEvaluator(nil)

// IsCallable reports whether tz is inside w right now, using the IANA database.
func IsCallable(tz string, w Window) bool {
	return defaultEvaluator.IsCallable(tz, w)
}

// NextValidInstant returns the next UTC instant at which w opens in tz, using the IANA database.
func NextValidInstant(tz string, w Window) time.Time {
	return defaultEvaluator.NextValidInstant(tz, w)
}
