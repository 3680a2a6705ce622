package work

import (
	"fmt"
	"time"

	"github.com/paytime/internal/timerange"
	"github.com/shopspring/decimal"
)

// Breakdown is every figure derived from one arrival/leaving pair, in minutes.
type Breakdown struct {
	Raw                         int
	Meal                        int
	Rest                        int
	NightMinutes                int
	NightBonus                  int
	Duration                    int
	DurationExcludingNightBonus int
}

// Calculator turns arrival/leaving pairs into compensated minutes under a
// Policy. It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	policy Policy
}

// NewCalculator validates policy and returns a Calculator for it. A nil
// Location means time.Local.
func NewCalculator(policy Policy) (*Calculator, error) {
	if policy.Location == nil {
		policy.Location = time.Local
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{policy: policy}, nil
}

// MustNewCalculator is NewCalculator for policies known to be valid. It
// panics otherwise.
func MustNewCalculator(policy Policy) *Calculator {
	c, err := NewCalculator(policy)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Calculator) Policy() Policy {
	return c.policy
}

// Compute derives the full breakdown for one record.
func (c *Calculator) Compute(arrival, leaving time.Time) (Breakdown, error) {
	a, l, err := c.localInterval(arrival, leaving)
	if err != nil {
		return Breakdown{}, err
	}

	var b Breakdown
	b.Raw = c.rawMinutes(a, l)
	if b.Raw == 0 {
		return b, nil
	}
	b.Meal = c.MealBreakMinutes(b.Raw)
	b.Rest = c.RestBreakMinutes(b.Raw)
	b.NightMinutes = c.nightShiftMinutes(a, l)
	b.NightBonus = c.nightBonus(b.NightMinutes)
	b.DurationExcludingNightBonus = b.Raw - b.Meal - b.Rest
	b.Duration = b.DurationExcludingNightBonus + b.NightBonus
	return b, nil
}

// RawMinutes returns the worked minutes weighted by the weekend multiplier of
// the day each portion of work falls on.
func (c *Calculator) RawMinutes(arrival, leaving time.Time) (int, error) {
	a, l, err := c.localInterval(arrival, leaving)
	if err != nil {
		return 0, err
	}
	return c.rawMinutes(a, l), nil
}

// MealBreakMinutes returns the meal deduction for raw worked minutes.
func (c *Calculator) MealBreakMinutes(raw int) int {
	if raw == 0 {
		return 0
	}
	p := c.policy
	meals := (raw + p.MealGraceMinutes) / p.MealBlockMinutes
	return meals * p.MealBreakMinutes
}

// RestBreakMinutes returns the rest break deduction for raw worked minutes.
func (c *Calculator) RestBreakMinutes(raw int) int {
	if raw == 0 {
		return 0
	}
	p := c.policy
	credited := raw / p.RestBlockMinutes * p.RestCreditMinutes
	remainder := max(raw%p.RestBlockMinutes-p.RestGraceMinutes, 0)
	breaks := (credited + remainder) / p.RestIntervalMinutes
	return breaks * p.RestBreakMinutes
}

// NightShiftMinutes returns the minutes worked inside the night windows.
func (c *Calculator) NightShiftMinutes(arrival, leaving time.Time) (int, error) {
	b, err := c.Compute(arrival, leaving)
	return b.NightMinutes, err
}

// NightShiftBonus returns the bonus minutes earned for night work.
func (c *Calculator) NightShiftBonus(arrival, leaving time.Time) (int, error) {
	b, err := c.Compute(arrival, leaving)
	return b.NightBonus, err
}

// WorkdayDuration returns the compensated minutes of a record: raw minutes
// less meal and rest breaks plus the night bonus.
func (c *Calculator) WorkdayDuration(arrival, leaving time.Time) (int, error) {
	b, err := c.Compute(arrival, leaving)
	return b.Duration, err
}

// WorkdayDurationExcludingNightBonus is WorkdayDuration without the night bonus.
func (c *Calculator) WorkdayDurationExcludingNightBonus(arrival, leaving time.Time) (int, error) {
	b, err := c.Compute(arrival, leaving)
	return b.DurationExcludingNightBonus, err
}

func (c *Calculator) localInterval(arrival, leaving time.Time) (time.Time, time.Time, error) {
	if leaving.Before(arrival) {
		return time.Time{}, time.Time{}, &InvalidIntervalError{Arrival: arrival, Leaving: leaving}
	}
	return arrival.In(c.policy.Location), leaving.In(c.policy.Location), nil
}

func (c *Calculator) rawMinutes(a, l time.Time) int {
	if timerange.SameDay(a, l) {
		return int(wholeMinutes(l.Sub(a)).Mul(c.policy.Multiplier(a)).IntPart())
	}

	firstMidnight := timerange.StartOfDay(a).AddDate(0, 0, 1)
	lastMidnight := timerange.StartOfDay(l)

	total := wholeMinutes(firstMidnight.Sub(a)).Mul(c.policy.Multiplier(a))
	total = total.Add(wholeMinutes(l.Sub(lastMidnight)).Mul(c.policy.Multiplier(l)))
	for day := firstMidnight; day.Before(lastMidnight); day = day.AddDate(0, 0, 1) {
		total = total.Add(decimal.NewFromInt(MinutesPerDay).Mul(c.policy.Multiplier(day)))
	}
	return int(total.IntPart())
}

func (c *Calculator) nightShiftMinutes(a, l time.Time) int {
	if a.Before(c.policy.NightBonusSince) {
		return 0
	}

	total := 0
	for _, day := range timerange.SplitByCalendarDay(timerange.Range{Start: a, End: l}) {
		if !timerange.SameDay(day.Start, day.End) {
			panic(fmt.Sprintf("work: day piece %s..%s crosses midnight", day.Start, day.End))
		}
		morning := timerange.DayWindow(day.Start, 0, c.policy.MorningShiftEnd)
		evening := timerange.DayWindow(day.Start, c.policy.EveningShiftStart, 24*time.Hour)
		total += timerange.OverlapMinutes(day, morning)
		total += timerange.OverlapMinutes(day, evening)
	}
	return total
}

func (c *Calculator) nightBonus(nightMinutes int) int {
	return int(decimal.NewFromInt(int64(nightMinutes)).Mul(c.policy.NightBonusRate).Floor().IntPart())
}

func wholeMinutes(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Minute))
}
