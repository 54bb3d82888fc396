package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/orrn/labelrelay/internal/core"
)

const dateLayout = "2006-01-02"

var ErrNotFound = errors.New("not found")

type HistoryOperations struct {
	db *sql.DB
}

// Record stores one pass record and bumps the day's counters in the same
// transaction. It satisfies core.Recorder.
func (o *HistoryOperations) Record(ctx context.Context, rec core.PassRecord) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, InsertHistory,
		rec.PassID, rec.JobID.String(), rec.ProductName, rec.Template, string(rec.State),
		rec.Sent, rec.Total, rec.Error, rec.StartedAt.UTC(), rec.FinishedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}

	done, failed := 0, 0
	if rec.State == core.StateDone {
		done = 1
	} else {
		failed = 1
	}
	day := rec.FinishedAt.Local().Format(dateLayout)
	if _, err := tx.ExecContext(ctx, IncrementCounter, day, rec.Sent, done, failed); err != nil {
		return fmt.Errorf("failed to increment daily counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first.
func (o *HistoryOperations) ListRecent(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return o.query(ctx, ListRecentHistory, limit)
}

// ListBefore returns entries that finished before cutoff, oldest first.
func (o *HistoryOperations) ListBefore(ctx context.Context, cutoff time.Time) ([]*HistoryEntry, error) {
	return o.query(ctx, ListHistoryBefore, cutoff.UTC())
}

func (o *HistoryOperations) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := o.db.ExecContext(ctx, DeleteHistoryBefore, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete history: %w", err)
	}
	return res.RowsAffected()
}

func (o *HistoryOperations) query(ctx context.Context, q string, args ...any) ([]*HistoryEntry, error) {
	rows, err := o.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []*HistoryEntry{}
	for rows.Next() {
		e := &HistoryEntry{}
		if err := rows.Scan(&e.ID, &e.PassID, &e.JobID, &e.ProductName, &e.Template, &e.State,
			&e.LabelsSent, &e.LabelsTotal, &e.ErrorMessage, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type CounterOperations struct {
	db *sql.DB
}

func (o *CounterOperations) Increment(ctx context.Context, date time.Time, labels, done, failed int) error {
	_, err := o.db.ExecContext(ctx, IncrementCounter, date.Format(dateLayout), labels, done, failed)
	if err != nil {
		return fmt.Errorf("failed to increment daily counter: %w", err)
	}
	return nil
}

// Range returns the counters for the days between from and to inclusive.
func (o *CounterOperations) Range(ctx context.Context, from, to time.Time) ([]*DailyCount, error) {
	rows, err := o.db.QueryContext(ctx, GetCountersByDateRange, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get counters: %w", err)
	}
	defer rows.Close()

	counts := []*DailyCount{}
	for rows.Next() {
		c := &DailyCount{}
		if err := rows.Scan(&c.Date, &c.Labels, &c.JobsDone, &c.JobsFailed); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

type SettingsOperations struct {
	db *sql.DB
}

// Get returns ErrNotFound when the key has never been set.
func (o *SettingsOperations) Get(ctx context.Context, key string) (*Setting, error) {
	s := &Setting{}
	err := o.db.QueryRowContext(ctx, GetSetting, key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: setting %q", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return s, nil
}

func (o *SettingsOperations) Set(ctx context.Context, key, value string) error {
	if _, err := o.db.ExecContext(ctx, SetSetting, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

func (o *SettingsOperations) Delete(ctx context.Context, key string) error {
	if _, err := o.db.ExecContext(ctx, DeleteSetting, key); err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}
