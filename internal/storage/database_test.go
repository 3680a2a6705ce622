package storage

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func ptr(t time.Time) *time.Time {
	return &t
}

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCheckInHelpers(t *testing.T) {
	tests := []struct {
		name     string
		c        CheckIn
		complete bool
		open     bool
		key      time.Time
	}{
		{"complete", CheckIn{Arrival: ptr(at(1, 9)), Leaving: ptr(at(1, 17))}, true, false, at(1, 9)},
		{"open", CheckIn{Arrival: ptr(at(1, 9))}, false, true, at(1, 9)},
		{"leaving only", CheckIn{Leaving: ptr(at(1, 17))}, false, false, at(1, 17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.c.IsComplete() != tt.complete {
				t.Errorf("IsComplete() = %v, want %v", tt.c.IsComplete(), tt.complete)
			}
			if tt.c.IsOpen() != tt.open {
				t.Errorf("IsOpen() = %v, want %v", tt.c.IsOpen(), tt.open)
			}
			if !tt.c.ArrivalOrLeaving().Equal(tt.key) {
				t.Errorf("ArrivalOrLeaving() = %v, want %v", tt.c.ArrivalOrLeaving(), tt.key)
			}
		})
	}
}

func TestInsertAndGet(t *testing.T) {
	db := newTestDB(t)
	c := &CheckIn{EmployeeID: "e1", Arrival: ptr(at(1, 9)), Comment: "first"}

	id, err := db.InsertCheckIn(c)
	if err != nil {
		t.Fatalf("InsertCheckIn() unexpected error: %v", err)
	}
	if id == "" || c.ID != id {
		t.Fatalf("InsertCheckIn() id = %q, record id = %q", id, c.ID)
	}

	got, err := db.GetCheckInByID(id)
	if err != nil {
		t.Fatalf("GetCheckInByID() unexpected error: %v", err)
	}
	if got.EmployeeID != "e1" || got.Comment != "first" || !got.Arrival.Equal(at(1, 9)) {
		t.Errorf("GetCheckInByID() = %+v", got)
	}
	if got.Leaving != nil {
		t.Errorf("Leaving = %v, want nil", got.Leaving)
	}

	// callers cannot mutate the stored copy
	*got.Arrival = at(5, 5)
	again, _ := db.GetCheckInByID(id)
	if !again.Arrival.Equal(at(1, 9)) {
		t.Errorf("stored arrival changed to %v", again.Arrival)
	}
}

func TestTimesSurviveStorage(t *testing.T) {
	db := newTestDB(t)
	msk := time.FixedZone("MSK", 3*60*60)
	arrival := time.Date(2017, 3, 8, 23, 59, 59, 123456789, msk)

	c := &CheckIn{EmployeeID: "e1", Arrival: &arrival}
	if _, err := db.InsertCheckIn(c); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetCheckInByID(c.ID)
	if err != nil {
		t.Fatalf("GetCheckInByID() unexpected error: %v", err)
	}
	if !got.Arrival.Equal(arrival) {
		t.Errorf("Arrival = %v, want %v", got.Arrival, arrival)
	}
}

func TestInsertRejectsEmptyRecords(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.InsertCheckIn(&CheckIn{Arrival: ptr(at(1, 9))}); err == nil {
		t.Error("InsertCheckIn() without employee expected error")
	}
	if _, err := db.InsertCheckIn(&CheckIn{EmployeeID: "e1"}); err == nil {
		t.Error("InsertCheckIn() without timestamps expected error")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	c := &CheckIn{EmployeeID: "e1", Arrival: ptr(at(1, 9))}
	if _, err := db.InsertCheckIn(c); err != nil {
		t.Fatal(err)
	}

	c.Leaving = ptr(at(1, 17))
	c.EmployeeID = "someone else"
	if err := db.UpdateCheckIn(c); err != nil {
		t.Fatalf("UpdateCheckIn() unexpected error: %v", err)
	}
	got, _ := db.GetCheckInByID(c.ID)
	if !got.IsComplete() {
		t.Errorf("updated record should be complete: %+v", got)
	}
	if got.EmployeeID != "e1" {
		t.Errorf("EmployeeID = %s, want e1", got.EmployeeID)
	}

	if err := db.DeleteCheckIn(c.ID); err != nil {
		t.Fatalf("DeleteCheckIn() unexpected error: %v", err)
	}
	if _, err := db.GetCheckInByID(c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCheckInByID() after delete = %v, want ErrNotFound", err)
	}
	if err := db.UpdateCheckIn(c); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateCheckIn() after delete = %v, want ErrNotFound", err)
	}
	if err := db.DeleteCheckIn(c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteCheckIn() twice = %v, want ErrNotFound", err)
	}
}

func TestLastCheckIn(t *testing.T) {
	db := newTestDB(t)

	last, err := db.LastCheckIn("e1")
	if err != nil || last != nil {
		t.Fatalf("LastCheckIn() on empty database = %v, %v; want nil, nil", last, err)
	}

	for _, c := range []*CheckIn{
		{EmployeeID: "e1", Arrival: ptr(at(2, 9)), Leaving: ptr(at(2, 17))},
		{EmployeeID: "e1", Leaving: ptr(at(3, 18))},
		{EmployeeID: "e1", Arrival: ptr(at(1, 9)), Leaving: ptr(at(1, 17))},
		{EmployeeID: "e2", Arrival: ptr(at(9, 9))},
	} {
		if _, err := db.InsertCheckIn(c); err != nil {
			t.Fatal(err)
		}
	}

	last, err = db.LastCheckIn("e1")
	if err != nil {
		t.Fatalf("LastCheckIn() unexpected error: %v", err)
	}
	if last.Arrival != nil || !last.Leaving.Equal(at(3, 18)) {
		t.Errorf("LastCheckIn() = %+v, want the leaving-only record", last)
	}
}

func TestLastCheckInTieGoesToNewest(t *testing.T) {
	db := newTestDB(t)
	first := &CheckIn{EmployeeID: "e1", Arrival: ptr(at(2, 9)), Comment: "first"}
	second := &CheckIn{EmployeeID: "e1", Arrival: ptr(at(2, 9)), Comment: "second"}
	for _, c := range []*CheckIn{first, second} {
		if _, err := db.InsertCheckIn(c); err != nil {
			t.Fatal(err)
		}
	}

	last, err := db.LastCheckIn("e1")
	if err != nil {
		t.Fatalf("LastCheckIn() unexpected error: %v", err)
	}
	if last.ID != second.ID {
		t.Errorf("LastCheckIn() = %s, want the later insert", last.Comment)
	}
}

func TestGetCheckInsForEmployee(t *testing.T) {
	db := newTestDB(t)
	for _, c := range []*CheckIn{
		{EmployeeID: "e1", Arrival: ptr(at(3, 9))},
		{EmployeeID: "e2", Arrival: ptr(at(1, 9))},
		{EmployeeID: "e1", Leaving: ptr(at(2, 17))},
		{EmployeeID: "e1", Arrival: ptr(at(1, 9)), Leaving: ptr(at(1, 17))},
	} {
		if _, err := db.InsertCheckIn(c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.GetCheckInsForEmployee("e1")
	if err != nil {
		t.Fatalf("GetCheckInsForEmployee() unexpected error: %v", err)
	}
	want := []time.Time{at(1, 9), at(2, 17), at(3, 9)}
	if len(got) != len(want) {
		t.Fatalf("GetCheckInsForEmployee() returned %d records, want %d", len(got), len(want))
	}
	for i, w := range want {
		if !got[i].ArrivalOrLeaving().Equal(w) {
			t.Errorf("record %d key = %v, want %v", i, got[i].ArrivalOrLeaving(), w)
		}
	}
}

func TestGetCheckInsInRange(t *testing.T) {
	db := newTestDB(t)
	for _, c := range []*CheckIn{
		{EmployeeID: "bob", Arrival: ptr(at(2, 9))},
		{EmployeeID: "alice", Arrival: ptr(at(3, 9))},
		{EmployeeID: "alice", Leaving: ptr(at(2, 10))},
		{EmployeeID: "alice", Arrival: ptr(at(4, 0))},
		{EmployeeID: "alice", Arrival: ptr(at(1, 23))},
	} {
		if _, err := db.InsertCheckIn(c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.GetCheckInsInRange(at(2, 0), at(4, 0))
	if err != nil {
		t.Fatalf("GetCheckInsInRange() unexpected error: %v", err)
	}

	want := []struct {
		employee string
		key      time.Time
	}{
		{"alice", at(2, 10)},
		{"alice", at(3, 9)},
		{"bob", at(2, 9)},
	}
	if len(got) != len(want) {
		t.Fatalf("GetCheckInsInRange() returned %d records, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].EmployeeID != w.employee || !got[i].ArrivalOrLeaving().Equal(w.key) {
			t.Errorf("record %d = %s@%v, want %s@%v", i, got[i].EmployeeID, got[i].ArrivalOrLeaving(), w.employee, w.key)
		}
	}
}

func TestGetCheckInsInRangeAcrossZones(t *testing.T) {
	db := newTestDB(t)
	msk := time.FixedZone("MSK", 3*60*60)
	// 01:30 in Moscow is still the previous day in UTC
	c := &CheckIn{EmployeeID: "e1", Arrival: ptr(time.Date(2024, 1, 2, 1, 30, 0, 0, msk))}
	if _, err := db.InsertCheckIn(c); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetCheckInsInRange(time.Date(2024, 1, 2, 0, 0, 0, 0, msk), time.Date(2024, 1, 3, 0, 0, 0, 0, msk))
	if err != nil {
		t.Fatalf("GetCheckInsInRange() unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("GetCheckInsInRange() returned %d records, want 1", len(got))
	}
}

func TestReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paytime.db")
	db, err := New(path)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	c := &CheckIn{EmployeeID: "e1", Arrival: ptr(at(1, 9))}
	if _, err := db.InsertCheckIn(c); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}

	db, err = New(path)
	if err != nil {
		t.Fatalf("New() reopen unexpected error: %v", err)
	}
	defer db.Close()
	if _, err := db.GetCheckInByID(c.ID); err != nil {
		t.Errorf("GetCheckInByID() after reopen = %v", err)
	}
}

func TestConcurrentInserts(t *testing.T) {
	db := newTestDB(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = db.InsertCheckIn(&CheckIn{EmployeeID: "e1", Arrival: ptr(at(1, 0).Add(time.Duration(i) * time.Minute))})
		}(i)
	}
	wg.Wait()

	all, _ := db.GetCheckInsForEmployee("e1")
	if len(all) != 50 {
		t.Errorf("GetCheckInsForEmployee() returned %d records, want 50", len(all))
	}
}
