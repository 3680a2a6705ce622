// Package timerange provides calendar arithmetic over local time intervals:
// day windows, per-day splitting and minute overlaps.
package timerange

import (
	"errors"
	"math"
	"time"
)

// ErrInvertedRange is returned by New when end precedes start.
var ErrInvertedRange = errors.New("range end is before its start")

// Range is a local time interval. Start never comes after End.
type Range struct {
	Start time.Time
	End   time.Time
}

// New builds a Range, rejecting intervals whose end precedes their start.
func New(start, end time.Time) (Range, error) {
	if end.Before(start) {
		return Range{}, ErrInvertedRange
	}
	return Range{Start: start, End: end}, nil
}

// Duration returns the length of the range
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// In returns the same range expressed in loc.
func (r Range) In(loc *time.Location) Range {
	return Range{Start: r.Start.In(loc), End: r.End.In(loc)}
}

// StartOfDay returns midnight opening t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// DayWindow returns the window of date's calendar day between the wall-clock
// offsets from and to. A to of 24h or more closes the window at EndOfDay.
func DayWindow(date time.Time, from, to time.Duration) Range {
	end := EndOfDay(date)
	if to < 24*time.Hour {
		end = wallClock(date, to)
	}
	return Range{Start: wallClock(date, from), End: end}
}

// wallClock returns the instant of date's day whose clock reads offset past
// midnight. Each field stays well inside a 32-bit int.
func wallClock(date time.Time, offset time.Duration) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d,
		int(offset/time.Hour),
		int(offset%time.Hour/time.Minute),
		int(offset%time.Minute/time.Second),
		int(offset%time.Second),
		date.Location())
}

// MorningShift is the 00:00-06:00 night window of date.
func MorningShift(date time.Time) Range {
	return DayWindow(date, 0, 6*time.Hour)
}

// EveningShift is the 22:00-end of day night window of date.
func EveningShift(date time.Time) Range {
	return DayWindow(date, 22*time.Hour, 24*time.Hour)
}

// SplitByCalendarDay cuts r at every midnight it crosses. A range contained
// in one day is returned as is; otherwise the first piece runs to the end of
// the start day, whole days in between are covered entirely and the last
// piece starts at midnight of the end day.
func SplitByCalendarDay(r Range) []Range {
	end := r.End.In(r.Start.Location())
	if SameDay(r.Start, end) || end.Before(r.Start) {
		return []Range{r}
	}

	var days []Range
	start := r.Start
	for !SameDay(start, end) {
		days = append(days, Range{Start: start, End: EndOfDay(start)})
		start = StartOfDay(start).AddDate(0, 0, 1)
	}
	return append(days, Range{Start: start, End: end})
}

// OverlapMinutes returns how many minutes a and b share. The overlap is
// truncated to whole seconds and rounded to the nearest minute, ties to even.
func OverlapMinutes(a, b Range) int {
	latestStart := a.Start
	if b.Start.After(latestStart) {
		latestStart = b.Start
	}
	earliestEnd := a.End
	if b.End.Before(earliestEnd) {
		earliestEnd = b.End
	}
	if !earliestEnd.After(latestStart) {
		return 0
	}

	seconds := earliestEnd.Sub(latestStart) / time.Second
	return int(math.RoundToEven(float64(seconds) / 60))
}
