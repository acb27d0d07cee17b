package db

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvsim/internal/dvs"
	"github.com/banshee-data/dvsim/internal/timeutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEvents() *dvs.Events {
	ev := dvs.NewEvents(3)
	ev.Append(dvs.Event{Timestamp: 10, X: 1, Y: 2, Polarity: true})
	ev.Append(dvs.Event{Timestamp: 10, X: 3, Y: 0})
	ev.Append(dvs.Event{Timestamp: 25, X: 0, Y: 4, Polarity: true})
	return ev
}

// TestPragmasApplied verifies that essential PRAGMAs are set on all databases
func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var synchronous int
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	assert.Equal(t, 1, synchronous) // NORMAL

	var tempStore int
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	assert.Equal(t, 2, tempStore) // MEMORY

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Already at latest: no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	assert.Error(t, err, "events table should be gone after rolling back")

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestNewDB_ReopenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.InsertRun(context.Background(), &Run{Width: 1, Height: 1}, nil))
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestInsertRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	created := time.Unix(1700000000, 123456789)
	r := &Run{
		CreatedAt:   created,
		Width:       5,
		Height:      5,
		Sensitivity: 0.15,
		StartTime:   1000,
		FPS:         25,
		FrameCount:  2,
		Source:      "a.png,b.png",
	}
	require.NoError(t, db.InsertRun(ctx, r, sampleEvents()))
	require.NotEmpty(t, r.ID)
	assert.Equal(t, 3, r.EventCount)

	got, err := db.Run(ctx, r.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}

	ev, err := db.Events(ctx, r.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleEvents(), ev); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertRun_EmptyEvents(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	r := &Run{ID: "empty", Width: 2, Height: 2}
	require.NoError(t, db.InsertRun(ctx, r, dvs.NewEvents(0)))

	ev, err := db.Events(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Len())
}

func TestInsertRun_Errors(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	assert.Error(t, db.InsertRun(ctx, nil, nil))

	assert.Error(t, db.InsertRun(ctx, &Run{StartTime: math.MaxUint64}, nil))

	big := dvs.NewEvents(1)
	big.Append(dvs.Event{Timestamp: math.MaxInt64 + 1})
	assert.Error(t, db.InsertRun(ctx, &Run{}, big))

	require.NoError(t, db.InsertRun(ctx, &Run{ID: "dup"}, nil))
	assert.Error(t, db.InsertRun(ctx, &Run{ID: "dup"}, sampleEvents()))

	// The failed duplicate must not leave events behind.
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM events WHERE run_id = 'dup'").Scan(&n))
	assert.Equal(t, 0, n)

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	base := time.Unix(1700000000, 0)
	for i, id := range []string{"old", "new", "mid"} {
		offset := []time.Duration{0, 2 * time.Second, time.Second}[i]
		require.NoError(t, db.InsertRun(ctx, &Run{ID: id, CreatedAt: base.Add(offset)}, nil))
	}

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)

	latest, err := db.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
}

func TestInsertRun_StampsWithClock(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	db.SetClock(clock)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.InsertRun(ctx, &Run{ID: id}, nil))
		clock.Advance(time.Millisecond)
	}

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.True(t, runs[0].CreatedAt.Equal(time.Unix(1700000000, 2*int64(time.Millisecond))), runs[0].CreatedAt)
	assert.True(t, runs[2].CreatedAt.Equal(time.Unix(1700000000, 0)))
}

func TestRunNotFound(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.LatestRun(ctx)
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)

	_, err = db.Run(ctx, "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)

	_, err = db.Events(ctx, "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)

	assert.True(t, errors.Is(db.DeleteRun(ctx, "nope"), ErrRunNotFound))
}

func TestDeleteRun_CascadesEvents(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	r := &Run{ID: "gone"}
	require.NoError(t, db.InsertRun(ctx, r, sampleEvents()))
	require.NoError(t, db.DeleteRun(ctx, "gone"))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n))
	assert.Equal(t, 0, n)
}
