package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunRecord describes one completed check of one car's merged capture.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	Unit        string    `json:"unit"`
	Car         string    `json:"car"`
	SourceFile  string    `json:"source_file"`
	WindowStart int64     `json:"window_start"`
	WindowEnd   int64     `json:"window_end"`
	FrameCount  int       `json:"frame_count"`
	ErrorCount  int       `json:"error_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunValue is one aggregated channel slot of a run.
type RunValue struct {
	Slot   int     `json:"slot"`
	Label  string  `json:"label"`
	Kind   string  `json:"kind"`
	Number float64 `json:"number"`
	Time   string  `json:"time,omitempty"`
}

// RunScanError records one frame the decoder rejected during a run.
type RunScanError struct {
	FrameIndex int    `json:"frame_index"`
	ByteOffset int64  `json:"byte_offset"`
	Reason     string `json:"reason"`
}

// retryAttempts bounds how often a busy write is retried before giving up.
const retryAttempts = 5

// sqliteTimeLayout matches the text form CURRENT_TIMESTAMP produces, so
// explicit and defaulted created_at values sort together.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SaveRun persists a run with its values and scan errors in one
// transaction. A missing RunID is filled with a fresh UUID; the stored ID
// is returned either way.
func (db *DB) SaveRun(rec RunRecord, values []RunValue, scanErrs []RunScanError) (string, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = db.clock.Now().UTC()
	}

	err := db.withRetry(func() error {
		return db.saveRunTx(rec, values, scanErrs)
	})
	if err != nil {
		return "", err
	}

	return rec.RunID, nil
}

func (db *DB) saveRunTx(rec RunRecord, values []RunValue, scanErrs []RunScanError) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (
			run_id, unit, car, source_file,
			window_start, window_end, frame_count, error_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Unit, rec.Car, rec.SourceFile,
		rec.WindowStart, rec.WindowEnd, rec.FrameCount, rec.ErrorCount,
		rec.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, v := range values {
		var valueTime any
		if v.Time != "" {
			valueTime = v.Time
		}
		_, err = tx.Exec(
			`INSERT INTO run_values (run_id, slot, label, kind, value_num, value_time)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.RunID, v.Slot, v.Label, v.Kind, v.Number, valueTime,
		)
		if err != nil {
			return fmt.Errorf("insert run value %q: %w", v.Label, err)
		}
	}

	for _, se := range scanErrs {
		_, err = tx.Exec(
			`INSERT INTO scan_errors (run_id, frame_index, byte_offset, reason)
			 VALUES (?, ?, ?, ?)`,
			rec.RunID, se.FrameIndex, se.ByteOffset, se.Reason,
		)
		if err != nil {
			return fmt.Errorf("insert scan error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}

	return nil
}

// GetRun returns the run with the given ID, or sql.ErrNoRows if absent.
func (db *DB) GetRun(runID string) (*RunRecord, error) {
	row := db.QueryRow(
		`SELECT run_id, unit, car, source_file, window_start, window_end,
		        frame_count, error_count, created_at
		 FROM runs WHERE run_id = ?`,
		runID,
	)

	var rec RunRecord
	err := row.Scan(
		&rec.RunID, &rec.Unit, &rec.Car, &rec.SourceFile,
		&rec.WindowStart, &rec.WindowEnd, &rec.FrameCount, &rec.ErrorCount,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := db.Query(
		`SELECT run_id, unit, car, source_file, window_start, window_end,
		        frame_count, error_count, created_at
		 FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.RunID, &rec.Unit, &rec.Car, &rec.SourceFile,
			&rec.WindowStart, &rec.WindowEnd, &rec.FrameCount, &rec.ErrorCount,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// RunValues returns a run's channel values in slot order.
func (db *DB) RunValues(runID string) ([]RunValue, error) {
	rows, err := db.Query(
		`SELECT slot, label, kind, value_num, value_time
		 FROM run_values WHERE run_id = ? ORDER BY slot`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run values: %w", err)
	}
	defer rows.Close()

	var values []RunValue
	for rows.Next() {
		var v RunValue
		var valueTime sql.NullString
		if err := rows.Scan(&v.Slot, &v.Label, &v.Kind, &v.Number, &valueTime); err != nil {
			return nil, fmt.Errorf("scan value row: %w", err)
		}
		v.Time = valueTime.String
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

// RunScanErrors returns a run's decode diagnostics in frame order.
func (db *DB) RunScanErrors(runID string) ([]RunScanError, error) {
	rows, err := db.Query(
		`SELECT frame_index, byte_offset, reason
		 FROM scan_errors WHERE run_id = ? ORDER BY frame_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query scan errors: %w", err)
	}
	defer rows.Close()

	var scanErrs []RunScanError
	for rows.Next() {
		var se RunScanError
		if err := rows.Scan(&se.FrameIndex, &se.ByteOffset, &se.Reason); err != nil {
			return nil, fmt.Errorf("scan error row: %w", err)
		}
		scanErrs = append(scanErrs, se)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return scanErrs, nil
}

// withRetry retries fn while it reports a busy database, backing off
// through the clock so tests can observe rather than wait.
func (db *DB) withRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		db.clock.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("database still busy after %d attempts: %w", retryAttempts, err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrTxDone) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
