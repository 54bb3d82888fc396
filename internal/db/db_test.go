package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/labelrelay/internal/core"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "relay.db")

	d, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer d.Close()

	var n int
	require.NoError(t, d.Conn().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestHistory_RecordAndListRecent(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	require.NoError(t, d.History.Record(ctx, core.PassRecord{
		PassID: "p1", JobID: "7", ProductName: "Widget", Template: "standard",
		State: core.StateDone, Sent: 3, Total: 3,
		StartedAt: base, FinishedAt: base.Add(time.Second),
	}))
	require.NoError(t, d.History.Record(ctx, core.PassRecord{
		PassID: "p2", JobID: "8", ProductName: "Gadget", Template: "standard",
		State: core.StateError, Sent: 1, Total: 2, Error: "printer timed out",
		StartedAt: base, FinishedAt: base.Add(2 * time.Second),
	}))

	entries, err := d.History.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "8", entries[0].JobID)
	assert.Equal(t, "error", entries[0].State)
	assert.Equal(t, "printer timed out", entries[0].ErrorMessage)
	assert.Equal(t, 1, entries[0].LabelsSent)
	assert.Equal(t, "7", entries[1].JobID)

	limited, err := d.History.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHistory_RecordBumpsCounters(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, d.History.Record(ctx, core.PassRecord{
		PassID: "p", JobID: "1", State: core.StateDone, Sent: 4, Total: 4, StartedAt: now, FinishedAt: now,
	}))
	require.NoError(t, d.History.Record(ctx, core.PassRecord{
		PassID: "p", JobID: "2", State: core.StateError, Sent: 1, Total: 2, StartedAt: now, FinishedAt: now,
	}))

	counts, err := d.Counters.Range(ctx, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, now.Format("2006-01-02"), counts[0].Date)
	assert.Equal(t, int64(5), counts[0].Labels)
	assert.Equal(t, int64(1), counts[0].JobsDone)
	assert.Equal(t, int64(1), counts[0].JobsFailed)
}

func TestCounters_RangeIsInclusiveAndOrdered(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)

	require.NoError(t, d.Counters.Increment(ctx, day.AddDate(0, 0, 2), 5, 1, 0))
	require.NoError(t, d.Counters.Increment(ctx, day, 2, 1, 0))
	require.NoError(t, d.Counters.Increment(ctx, day.AddDate(0, 0, 5), 9, 1, 0))

	counts, err := d.Counters.Range(ctx, day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "2024-03-10", counts[0].Date)
	assert.Equal(t, "2024-03-12", counts[1].Date)
}

func TestHistory_ListAndDeleteBefore(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	old := time.Now().AddDate(0, 0, -40)
	fresh := time.Now()

	for id, at := range map[core.JobID]time.Time{"a": old, "b": fresh} {
		require.NoError(t, d.History.Record(ctx, core.PassRecord{
			PassID: "p", JobID: id, State: core.StateDone, StartedAt: at, FinishedAt: at,
		}))
	}

	cutoff := time.Now().AddDate(0, 0, -30)
	before, err := d.History.ListBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, "a", before[0].JobID)

	n, err := d.History.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rest, err := d.History.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "b", rest[0].JobID)
}

func TestSettings(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	_, err := d.Settings.Get(ctx, "jwt_secret")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, d.Settings.Set(ctx, "jwt_secret", "one"))
	require.NoError(t, d.Settings.Set(ctx, "jwt_secret", "two"))

	s, err := d.Settings.Get(ctx, "jwt_secret")
	require.NoError(t, err)
	assert.Equal(t, "two", s.Value)

	require.NoError(t, d.Settings.Delete(ctx, "jwt_secret"))
	_, err = d.Settings.Get(ctx, "jwt_secret")
	assert.ErrorIs(t, err, ErrNotFound)
}
