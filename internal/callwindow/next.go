package callwindow

import "time"

const (
	minutesPerDay = 24 * 60
	halfDayMins   = minutesPerDay / 2
	msPerMinute   = int64(time.Minute / time.Millisecond)
	msPerDay      = minutesPerDay * msPerMinute

	// maxConvergeSteps bounds the offset search. An offset changes at most
	// once on a given date, so one correction plus one confirmation suffices;
	// the first step absorbs the zone's base offset.
	maxConvergeSteps = 3

	// maxDaySearch bounds the forward scan for an allowed weekday.
	maxDaySearch = 7
)

// NextValidInstant returns the next UTC instant at which w opens in tz.
func (e *Evaluator) NextValidInstant(tz string, w Window) time.Time {
	return e.NextValidInstantAt(tz, w, e.now())
}

// NextValidInstantAt returns the first instant after now's local date
// selection at which w opens, expressed in UTC.
//
// If today is allowed and the local hour has not reached StartHour, today is
// the target. Otherwise the next allowed weekday within 7 days is used. When
// no weekday is allowed the result degrades to tomorrow at StartHour. A zone
// the projector cannot load is treated as UTC.
func (e *Evaluator) NextValidInstantAt(tz string, w Window, now time.Time) time.Time {
	p := e.projector
	local, err := p.Project(tz, now)
	if err != nil {
		tz, p = "UTC", utcProjector
		local, _ = p.Project(tz, now)
	}

	target := local.Date.AddDays(daysUntilOpen(w, local))
	at, err := LocalToUTC(p, tz, target, w.StartHour, 0)
	if err != nil {
		at, _ = LocalToUTC(utcProjector, "UTC", target, w.StartHour, 0)
	}
	return at
}

// daysUntilOpen picks how many local days ahead the next opening falls.
func daysUntilOpen(w Window, local LocalInstant) int {
	if w.Allows(local.Weekday) && local.Hour < w.StartHour {
		return 0
	}
	for ahead := 1; ahead <= maxDaySearch; ahead++ {
		if w.Allows((local.Weekday + ahead) % 7) {
			return ahead
		}
	}
	return 1
}

// LocalToUTC finds the UTC instant that reads hour:minute on date in tz.
//
// The first guess reads the wall-clock time as if it were UTC. Each step
// projects the guess, measures the signed minute gap to the target clock,
// folds it into (-720, +720] and shifts the guess, stopping once the gap is
// zero. If the converged instant lands on the wrong local date (zones more
// than 12 hours from UTC), it is moved by whole days and converged again.
// Times skipped by a spring-forward transition have no exact answer; the
// result is then the nearest instant the search reached.
func LocalToUTC(p Projector, tz string, date Date, hour, minute int) (time.Time, error) {
	guess := time.Date(date.Year, date.Month, date.Day, hour, minute, 0, 0, time.UTC).UnixMilli()
	targetMins := hour*60 + minute

	for pass := 0; pass < 2; pass++ {
		var (
			local LocalInstant
			err   error
		)
		guess, local, err = converge(p, tz, guess, targetMins)
		if err != nil {
			return time.Time{}, err
		}
		days := local.Date.DaysUntil(date)
		if days == 0 {
			break
		}
		guess += int64(days) * msPerDay
	}
	return time.UnixMilli(guess).UTC(), nil
}

// converge runs the bounded offset search from guess and returns the final
// guess along with its projection.
func converge(p Projector, tz string, guess int64, targetMins int) (int64, LocalInstant, error) {
	var local LocalInstant
	for step := 0; step < maxConvergeSteps; step++ {
		var err error
		local, err = p.Project(tz, time.UnixMilli(guess).UTC())
		if err != nil {
			return 0, LocalInstant{}, err
		}
		diff := normalizeMinuteDiff(targetMins - local.ClockMinutes())
		if diff == 0 {
			return guess, local, nil
		}
		guess += int64(diff) * msPerMinute
	}
	local, err := p.Project(tz, time.UnixMilli(guess).UTC())
	if err != nil {
		return 0, LocalInstant{}, err
	}
	return guess, local, nil
}

// normalizeMinuteDiff folds a clock difference into (-720, +720] so a target
// just past midnight is not chased a full day in the wrong direction.
func normalizeMinuteDiff(diff int) int {
	diff %= minutesPerDay
	if diff > halfDayMins {
		diff -= minutesPerDay
	} else if diff <= -halfDayMins {
		diff += minutesPerDay
	}
	return diff
}

var utcProjector = ProjectorFunc(func(_ string, at time.Time) (LocalInstant, error) {
	return LocalInstantOf(at.UTC()), nil
})
