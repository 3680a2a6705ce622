package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/paytime/internal/config"
	"github.com/paytime/internal/logger"
	"github.com/paytime/internal/storage"
	"github.com/paytime/internal/timerange"
	"github.com/paytime/internal/work"
)

// DefaultMaxShift is how long an arrival stays closable by a leaving.
const DefaultMaxShift = 26 * time.Hour

var (
	ErrAlreadyOpen   = errors.New("forgot_to_leave")
	ErrNoOpenArrival = errors.New("forgot_to_arrive")
	ErrStaleArrival  = errors.New("forgot_to_leave_and_arrive")
)

// LifecycleWarning accompanies an arrive or leave that succeeded but found
// the employee's previous record in an unexpected state.
type LifecycleWarning struct {
	Reason     error
	EmployeeID string
	Previous   *storage.CheckIn
}

func (w *LifecycleWarning) Error() string {
	return fmt.Sprintf("%s: employee %s", w.Reason, w.EmployeeID)
}

func (w *LifecycleWarning) Unwrap() error {
	return w.Reason
}

// IsWarning reports whether err only warns about an action that still succeeded.
func IsWarning(err error) bool {
	var w *LifecycleWarning
	return errors.As(err, &w)
}

type Store interface {
	InsertCheckIn(c *storage.CheckIn) (string, error)
	UpdateCheckIn(c *storage.CheckIn) error
	GetCheckInByID(id string) (*storage.CheckIn, error)
	LastCheckIn(employeeID string) (*storage.CheckIn, error)
	GetCheckInsForEmployee(employeeID string) ([]storage.CheckIn, error)
	GetCheckInsInRange(start, end time.Time) ([]storage.CheckIn, error)
	DeleteCheckIn(id string) error
}

type Tracker struct {
	mu       sync.Mutex
	store    Store
	calc     *work.Calculator
	maxShift time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func New(store Store, calc *work.Calculator, maxShift time.Duration, log *slog.Logger) *Tracker {
	if calc == nil {
		calc = work.MustNewCalculator(work.DefaultPolicy(time.Local))
	}
	if maxShift <= 0 {
		maxShift = DefaultMaxShift
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Tracker{
		store:    store,
		calc:     calc,
		maxShift: maxShift,
		logger:   log,
		now:      time.Now,
	}
}

func NewWithDefaults(store Store) *Tracker {
	return New(store, nil, DefaultMaxShift, nil)
}

// NewFromConfig builds a Tracker whose rules, zone, shift limit and log level
// come from cfg. Logs go to stdout.
func NewFromConfig(cfg *config.Config, store Store) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	calc, err := work.NewCalculator(policy)
	if err != nil {
		return nil, fmt.Errorf("failed to build calculator: %w", err)
	}

	return New(store, calc, cfg.MaxShift(), logger.Setup(os.Stdout, cfg.LogLevel)), nil
}

// Arrive opens a new record for the employee. When the previous record was
// never closed the new record is still created and returned alongside an
// ErrAlreadyOpen warning.
func (t *Tracker) Arrive(employeeID string) (*storage.CheckIn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, err := t.store.LastCheckIn(employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last check-in: %w", err)
	}

	now := t.now()
	checkIn := &storage.CheckIn{EmployeeID: employeeID, Arrival: &now}
	if _, err := t.store.InsertCheckIn(checkIn); err != nil {
		return nil, fmt.Errorf("failed to record arrival: %w", err)
	}

	if last != nil && last.IsOpen() {
		t.logger.Warn("arrival while previous record is open",
			"employee", employeeID, "check_in", checkIn.ID, "open_check_in", last.ID, "open_since", *last.Arrival)
		return checkIn, &LifecycleWarning{Reason: ErrAlreadyOpen, EmployeeID: employeeID, Previous: last}
	}

	t.logger.Info("arrival recorded", "employee", employeeID, "check_in", checkIn.ID)
	return checkIn, nil
}

// Leave closes the employee's open record. Without a closable record a
// leaving-only record is created and returned with ErrNoOpenArrival, or with
// ErrStaleArrival when the open record is older than the max shift length.
func (t *Tracker) Leave(employeeID string) (*storage.CheckIn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, err := t.store.LastCheckIn(employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last check-in: %w", err)
	}

	now := t.now()
	reason := ErrNoOpenArrival
	if last != nil && last.IsOpen() {
		if now.Before(*last.Arrival) {
			return nil, &work.InvalidIntervalError{Arrival: *last.Arrival, Leaving: now}
		}
		if now.Sub(*last.Arrival) <= t.maxShift {
			last.Leaving = &now
			if err := t.store.UpdateCheckIn(last); err != nil {
				return nil, fmt.Errorf("failed to record leaving: %w", err)
			}
			t.logger.Info("leaving recorded", "employee", employeeID, "check_in", last.ID)
			return last, nil
		}
		reason = ErrStaleArrival
	}

	checkIn := &storage.CheckIn{EmployeeID: employeeID, Leaving: &now}
	if _, err := t.store.InsertCheckIn(checkIn); err != nil {
		return nil, fmt.Errorf("failed to record leaving: %w", err)
	}

	t.logger.Warn("leaving without a closable arrival",
		"employee", employeeID, "check_in", checkIn.ID, "reason", reason.Error())
	return checkIn, &LifecycleWarning{Reason: reason, EmployeeID: employeeID, Previous: last}
}

// OpenCheckIn returns the employee's unfinished record, or nil.
func (t *Tracker) OpenCheckIn(employeeID string) (*storage.CheckIn, error) {
	last, err := t.store.LastCheckIn(employeeID)
	if err != nil || last == nil || !last.IsOpen() {
		return nil, err
	}
	return last, nil
}

func (t *Tracker) SetComment(id, comment string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	checkIn, err := t.store.GetCheckInByID(id)
	if err != nil {
		return err
	}
	checkIn.Comment = comment
	return t.store.UpdateCheckIn(checkIn)
}

func (t *Tracker) DeleteCheckIn(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.DeleteCheckIn(id)
}

// Summary is a total of compensated minutes.
type Summary struct {
	Minutes int
	Records int
}

func (s Summary) String() string {
	return work.FormatHHMM(s.Minutes)
}

// SummarizeRange totals WorkdayDuration over the employee's complete records
// arriving on or after from and leaving before to, plus the overnight record
// that arrived before to and left on or after it. from and to are dates in
// the policy's location.
func (t *Tracker) SummarizeRange(employeeID string, from, to time.Time) (Summary, error) {
	return t.summarize(employeeID, from, to, func(b work.Breakdown) int { return b.Duration })
}

// SummarizeRangeExcludingNightBonus is SummarizeRange without night bonuses.
func (t *Tracker) SummarizeRangeExcludingNightBonus(employeeID string, from, to time.Time) (Summary, error) {
	return t.summarize(employeeID, from, to, func(b work.Breakdown) int { return b.DurationExcludingNightBonus })
}

func (t *Tracker) summarize(employeeID string, from, to time.Time, pick func(work.Breakdown) int) (Summary, error) {
	checkIns, err := t.store.GetCheckInsForEmployee(employeeID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load check-ins: %w", err)
	}

	fromDay, toDay := t.day(from), t.day(to)
	var summary Summary
	for _, c := range checkIns {
		if !c.IsComplete() {
			continue
		}
		arrivalDay, leavingDay := t.day(*c.Arrival), t.day(*c.Leaving)
		inRange := !arrivalDay.Before(fromDay) && leavingDay.Before(toDay)
		lastNight := arrivalDay.Before(toDay) && !leavingDay.Before(toDay)
		if !inRange && !lastNight {
			continue
		}

		b, err := t.calc.Compute(*c.Arrival, *c.Leaving)
		if err != nil {
			return Summary{}, fmt.Errorf("check-in %s: %w", c.ID, err)
		}
		summary.Minutes += pick(b)
		summary.Records++
	}

	t.logger.Debug("range summarized", "employee", employeeID,
		"from", fromDay, "to", toDay, "records", summary.Records, "minutes", summary.Minutes)
	return summary, nil
}

// Row is one record with its computed figures, ready for tabular export.
type Row struct {
	CheckIn   storage.CheckIn
	Breakdown work.Breakdown
	// Duration is Breakdown.Duration as hours:minutes, empty when zero.
	Duration string
}

// Records returns export rows for every record whose arrival, or leaving
// when there is no arrival, falls on a date in [from, to).
func (t *Tracker) Records(from, to time.Time) ([]Row, error) {
	checkIns, err := t.store.GetCheckInsInRange(t.day(from), t.day(to))
	if err != nil {
		return nil, fmt.Errorf("failed to load check-ins: %w", err)
	}

	rows := make([]Row, 0, len(checkIns))
	for _, c := range checkIns {
		row := Row{CheckIn: c}
		if c.IsComplete() {
			row.Breakdown, err = t.calc.Compute(*c.Arrival, *c.Leaving)
			if err != nil {
				return nil, fmt.Errorf("check-in %s: %w", c.ID, err)
			}
		}
		if row.Breakdown.Duration != 0 {
			row.Duration = work.FormatHHMM(row.Breakdown.Duration)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *Tracker) day(ts time.Time) time.Time {
	return timerange.StartOfDay(ts.In(t.calc.Policy().Location))
}
