package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("check-in not found")

// MemoryPath opens a database that lives only as long as its connection.
const MemoryPath = ":memory:"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// CheckIn is one arrival/leaving record. Either timestamp may be missing
// while the record is open or when a counterpart was forgotten.
type CheckIn struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employee_id"`
	Arrival    *time.Time `json:"arrival,omitempty"`
	Leaving    *time.Time `json:"leaving,omitempty"`
	Comment    string     `json:"comment,omitempty"`
}

// IsComplete reports whether both timestamps are present.
func (c *CheckIn) IsComplete() bool {
	return c.Arrival != nil && c.Leaving != nil
}

// IsOpen reports whether the record is an arrival still waiting for its leaving.
func (c *CheckIn) IsOpen() bool {
	return c.Arrival != nil && c.Leaving == nil
}

// ArrivalOrLeaving is the ordering key: the arrival if known, else the leaving.
func (c *CheckIn) ArrivalOrLeaving() time.Time {
	if c.Arrival != nil {
		return *c.Arrival
	}
	if c.Leaving != nil {
		return *c.Leaving
	}
	return time.Time{}
}

// Database keeps check-ins in sqlite. It is safe for concurrent use.
type Database struct {
	db *sql.DB
}

// New opens the sqlite database at path, creating the schema if needed. An
// empty path opens an in-memory database.
func New(path string) (*Database, error) {
	if path == "" {
		path = MemoryPath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// every connection to :memory: would see its own empty database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return database, nil
}

func (d *Database) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS check_ins (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			arrival TEXT,
			leaving TEXT,
			comment TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_check_ins_employee ON check_ins(employee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_check_ins_key ON check_ins(COALESCE(arrival, leaving))`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// InsertCheckIn stores c under a fresh ID, which is also written back to c.
func (d *Database) InsertCheckIn(c *CheckIn) (string, error) {
	if c.EmployeeID == "" {
		return "", errors.New("check-in needs an employee")
	}
	if c.Arrival == nil && c.Leaving == nil {
		return "", errors.New("check-in needs an arrival or a leaving")
	}

	id := uuid.New().String()
	_, err := d.db.Exec(
		`INSERT INTO check_ins (id, employee_id, arrival, leaving, comment)
		 VALUES (?, ?, ?, ?, ?)`,
		id,
		c.EmployeeID,
		formatTime(c.Arrival),
		formatTime(c.Leaving),
		c.Comment,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert check-in: %w", err)
	}

	c.ID = id
	return id, nil
}

// UpdateCheckIn rewrites the timestamps and comment of an existing record.
// The employee of a record never changes.
func (d *Database) UpdateCheckIn(c *CheckIn) error {
	result, err := d.db.Exec(
		`UPDATE check_ins SET arrival = ?, leaving = ?, comment = ? WHERE id = ?`,
		formatTime(c.Arrival),
		formatTime(c.Leaving),
		c.Comment,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update check-in: %w", err)
	}
	return expectOneRow(result)
}

func (d *Database) GetCheckInByID(id string) (*CheckIn, error) {
	row := d.db.QueryRow(
		`SELECT id, employee_id, arrival, leaving, comment FROM check_ins WHERE id = ?`,
		id,
	)

	c, err := scanCheckIn(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LastCheckIn returns the employee's latest record by ArrivalOrLeaving, or
// nil when the employee has none.
func (d *Database) LastCheckIn(employeeID string) (*CheckIn, error) {
	row := d.db.QueryRow(
		`SELECT id, employee_id, arrival, leaving, comment FROM check_ins
		 WHERE employee_id = ?
		 ORDER BY COALESCE(arrival, leaving) DESC, rowid DESC
		 LIMIT 1`,
		employeeID,
	)

	c, err := scanCheckIn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCheckInsForEmployee returns the employee's records oldest first.
func (d *Database) GetCheckInsForEmployee(employeeID string) ([]CheckIn, error) {
	return d.query(
		`SELECT id, employee_id, arrival, leaving, comment FROM check_ins
		 WHERE employee_id = ?
		 ORDER BY employee_id, COALESCE(arrival, leaving), rowid`,
		employeeID,
	)
}

// GetCheckInsInRange returns every record whose ArrivalOrLeaving lies in
// [start, end), ordered by employee and then chronologically.
func (d *Database) GetCheckInsInRange(start, end time.Time) ([]CheckIn, error) {
	return d.query(
		`SELECT id, employee_id, arrival, leaving, comment FROM check_ins
		 WHERE COALESCE(arrival, leaving) >= ? AND COALESCE(arrival, leaving) < ?
		 ORDER BY employee_id, COALESCE(arrival, leaving), rowid`,
		formatTime(&start),
		formatTime(&end),
	)
}

func (d *Database) DeleteCheckIn(id string) error {
	result, err := d.db.Exec(`DELETE FROM check_ins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete check-in: %w", err)
	}
	return expectOneRow(result)
}

func (d *Database) query(query string, args ...interface{}) ([]CheckIn, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkIns []CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		checkIns = append(checkIns, *c)
	}

	return checkIns, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckIn(s scanner) (*CheckIn, error) {
	var c CheckIn
	var arrival, leaving sql.NullString

	if err := s.Scan(&c.ID, &c.EmployeeID, &arrival, &leaving, &c.Comment); err != nil {
		return nil, err
	}

	var err error
	if c.Arrival, err = parseTime(arrival); err != nil {
		return nil, err
	}
	if c.Leaving, err = parseTime(leaving); err != nil {
		return nil, err
	}
	return &c, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored time %q: %w", s.String, err)
	}
	return &t, nil
}
