package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferrous-data/condition.report/internal/timeutil"
)

// setupTestDB opens a migrated database in a per-test temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), t.Name()+".db"))
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func sampleRun(unit, car string) RunRecord {
	return RunRecord{
		Unit:        unit,
		Car:         car,
		SourceFile:  car + "_mergedata.dat",
		WindowStart: 1742024400,
		WindowEnd:   1742028000,
		FrameCount:  1200,
		ErrorCount:  2,
	}
}

func TestNewDBAppliesMigrations(t *testing.T) {
	database := setupTestDB(t)

	version, dirty, err := database.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if dirty {
		t.Error("fresh database reports dirty state")
	}
	if version == 0 {
		t.Error("expected migrations applied, version is 0")
	}

	// The migrated schema accepts a run insert.
	if _, err := database.SaveRun(sampleRun("WNDS", "03"), nil, nil); err != nil {
		t.Fatalf("SaveRun on migrated schema failed: %v", err)
	}
}

func TestMigrateDownThenUp(t *testing.T) {
	database := setupTestDB(t)

	if err := database.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err := database.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion after down failed: %v", err)
	}
	if version != 0 {
		t.Errorf("version after down = %d, want 0", version)
	}

	if err := database.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp after down failed: %v", err)
	}
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion after up failed: %v", err)
	}
	if version == 0 || dirty {
		t.Errorf("after re-up: version = %d, dirty = %v", version, dirty)
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	database := setupTestDB(t)

	values := []RunValue{
		{Slot: 0, Label: "speed_max", Kind: "plain_max", Number: 98.5},
		{Slot: 1, Label: "comm_fault", Kind: "event", Number: 0},
		{Slot: 2, Label: "hunting_alarm", Kind: "event", Time: "2025-03-15 10:30:00"},
		{Slot: 3, Label: "accel_max_lat_1", Kind: "max_speed", Number: 1.234},
	}
	scanErrs := []RunScanError{
		{FrameIndex: 4, ByteOffset: 1036, Reason: "malformed_timestamp"},
		{FrameIndex: 9, ByteOffset: 2311, Reason: "truncated_frame"},
	}

	runID, err := database.SaveRun(sampleRun("WNDS", "03"), values, scanErrs)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if runID == "" {
		t.Fatal("SaveRun returned empty run ID")
	}

	rec, err := database.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if rec.Unit != "WNDS" || rec.Car != "03" {
		t.Errorf("run = %s/%s, want WNDS/03", rec.Unit, rec.Car)
	}
	if rec.FrameCount != 1200 || rec.ErrorCount != 2 {
		t.Errorf("counts = %d/%d, want 1200/2", rec.FrameCount, rec.ErrorCount)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}

	gotValues, err := database.RunValues(runID)
	if err != nil {
		t.Fatalf("RunValues failed: %v", err)
	}
	if len(gotValues) != len(values) {
		t.Fatalf("got %d values, want %d", len(gotValues), len(values))
	}
	for i, v := range gotValues {
		if v != values[i] {
			t.Errorf("value[%d] = %+v, want %+v", i, v, values[i])
		}
	}

	gotErrs, err := database.RunScanErrors(runID)
	if err != nil {
		t.Fatalf("RunScanErrors failed: %v", err)
	}
	if len(gotErrs) != 2 {
		t.Fatalf("got %d scan errors, want 2", len(gotErrs))
	}
	if gotErrs[0] != scanErrs[0] || gotErrs[1] != scanErrs[1] {
		t.Errorf("scan errors = %+v", gotErrs)
	}
}

func TestSaveRunKeepsCallerID(t *testing.T) {
	database := setupTestDB(t)

	rec := sampleRun("BIDS", "05")
	rec.RunID = "caller-chosen-id"
	runID, err := database.SaveRun(rec, nil, nil)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if runID != "caller-chosen-id" {
		t.Errorf("run ID = %q, want caller-chosen-id", runID)
	}
}

func TestGetRunMissing(t *testing.T) {
	database := setupTestDB(t)

	_, err := database.GetRun("no-such-run")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	database := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	database.SetClock(clock)

	for i := 0; i < 3; i++ {
		rec := sampleRun("GVDS", fmt.Sprintf("%02d", i+1))
		if _, err := database.SaveRun(rec, nil, nil); err != nil {
			t.Fatalf("SaveRun %d failed: %v", i, err)
		}
		clock.Advance(time.Minute)
	}

	runs, err := database.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Car != "03" || runs[1].Car != "02" {
		t.Errorf("order = [%s %s], want [03 02]", runs[0].Car, runs[1].Car)
	}
}

func TestRunValuesEmptyRun(t *testing.T) {
	database := setupTestDB(t)

	runID, err := database.SaveRun(sampleRun("MVDS", "01"), nil, nil)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	values, err := database.RunValues(runID)
	if err != nil {
		t.Fatalf("RunValues failed: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("got %d values, want 0", len(values))
	}
}

func TestIsBusy(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{fmt.Errorf("insert run: %w", errors.New("database is locked")), true},
		{errors.New("no such table: runs"), false},
		{sql.ErrTxDone, false},
	}
	for _, tc := range cases {
		if got := isBusy(tc.err); got != tc.want {
			t.Errorf("isBusy(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestWithRetryBacksOff(t *testing.T) {
	database := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	database.SetClock(clock)

	calls := 0
	err := database.withRetry(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("recorded %d sleeps, want 2", len(sleeps))
	}
	if sleeps[0] != 100*time.Millisecond || sleeps[1] != 200*time.Millisecond {
		t.Errorf("sleeps = %v", sleeps)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	database := setupTestDB(t)
	database.SetClock(timeutil.NewMockClock(time.Time{}))

	calls := 0
	err := database.withRetry(func() error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls != retryAttempts {
		t.Errorf("fn called %d times, want %d", calls, retryAttempts)
	}
}
