package work

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYROLL RULES CONFIGURATION
// =============================================================================
// Defaults reproduce the payroll regulations the engine was built for:
//   - one 60 minute meal per started 12h block, counted with a 7h head start
//   - one 15 minute rest break per 135 minutes of qualifying time
//   - Saturday and Sunday minutes weighted 1.5x
//   - night minutes (00:00-06:00, 22:00-24:00) earn a 50% bonus
//     for records from 2017-01-01 on
//
// Override any of these through the YAML config rather than editing here.
// =============================================================================

const (
	DefaultMealGraceMinutes = 7 * 60
	DefaultMealBlockMinutes = 12 * 60
	DefaultMealBreakMinutes = 60

	DefaultRestBlockMinutes    = 12 * 60
	DefaultRestCreditMinutes   = 7 * 60
	DefaultRestGraceMinutes    = 5 * 60
	DefaultRestIntervalMinutes = 135
	DefaultRestBreakMinutes    = 15

	DefaultMorningShiftEnd   = 6 * time.Hour
	DefaultEveningShiftStart = 22 * time.Hour

	// MinutesPerDay is the weight of a whole calendar day inside a multi-day span.
	MinutesPerDay = 24 * 60
)

var (
	DefaultWeekendMultiplier = decimal.NewFromFloat(1.5)
	DefaultNightBonusRate    = decimal.NewFromFloat(0.5)
	DefaultWeekendDays       = []time.Weekday{time.Saturday, time.Sunday}
)

// Policy holds every tunable constant of the duration calculation.
type Policy struct {
	// Location is the zone whose calendar defines days, weekends and night windows.
	Location *time.Location

	WeekendMultiplier decimal.Decimal
	WeekendDays       []time.Weekday

	MealGraceMinutes int
	MealBlockMinutes int
	MealBreakMinutes int

	RestBlockMinutes    int
	RestCreditMinutes   int
	RestGraceMinutes    int
	RestIntervalMinutes int
	RestBreakMinutes    int

	// NightBonusSince is the first instant night minutes are counted for.
	NightBonusSince time.Time
	NightBonusRate  decimal.Decimal

	MorningShiftEnd   time.Duration
	EveningShiftStart time.Duration
}

// DefaultPolicy returns the stock payroll rules evaluated in loc.
func DefaultPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.Local
	}
	return Policy{
		Location:            loc,
		WeekendMultiplier:   DefaultWeekendMultiplier,
		WeekendDays:         DefaultWeekendDays,
		MealGraceMinutes:    DefaultMealGraceMinutes,
		MealBlockMinutes:    DefaultMealBlockMinutes,
		MealBreakMinutes:    DefaultMealBreakMinutes,
		RestBlockMinutes:    DefaultRestBlockMinutes,
		RestCreditMinutes:   DefaultRestCreditMinutes,
		RestGraceMinutes:    DefaultRestGraceMinutes,
		RestIntervalMinutes: DefaultRestIntervalMinutes,
		RestBreakMinutes:    DefaultRestBreakMinutes,
		NightBonusSince:     time.Date(2017, 1, 1, 0, 0, 0, 0, loc),
		NightBonusRate:      DefaultNightBonusRate,
		MorningShiftEnd:     DefaultMorningShiftEnd,
		EveningShiftStart:   DefaultEveningShiftStart,
	}
}

// IsWeekend returns true if t falls on one of the policy's weekend days
func (p Policy) IsWeekend(t time.Time) bool {
	day := t.In(p.Location).Weekday()
	for _, w := range p.WeekendDays {
		if day == w {
			return true
		}
	}
	return false
}

// Multiplier returns the weight of a minute worked on t's day.
func (p Policy) Multiplier(t time.Time) decimal.Decimal {
	if p.IsWeekend(t) {
		return p.WeekendMultiplier
	}
	return decimal.NewFromInt(1)
}

// Validate rejects policies the calculator cannot evaluate.
func (p Policy) Validate() error {
	if p.Location == nil {
		return fmt.Errorf("policy: location is required")
	}
	divisors := map[string]int{
		"meal block":    p.MealBlockMinutes,
		"rest block":    p.RestBlockMinutes,
		"rest interval": p.RestIntervalMinutes,
	}
	for name, v := range divisors {
		if v <= 0 {
			return fmt.Errorf("policy: %s must be positive, got %d", name, v)
		}
	}
	if p.MealGraceMinutes < 0 || p.MealBreakMinutes < 0 || p.RestCreditMinutes < 0 ||
		p.RestGraceMinutes < 0 || p.RestBreakMinutes < 0 {
		return fmt.Errorf("policy: break minutes must not be negative")
	}
	if p.WeekendMultiplier.IsNegative() || p.NightBonusRate.IsNegative() {
		return fmt.Errorf("policy: multipliers must not be negative")
	}
	if p.MorningShiftEnd < 0 || p.MorningShiftEnd > 24*time.Hour ||
		p.EveningShiftStart < 0 || p.EveningShiftStart > 24*time.Hour {
		return fmt.Errorf("policy: night windows must lie within a day")
	}
	return nil
}
