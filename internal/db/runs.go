package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dvsim/internal/dvs"
)

// ErrRunNotFound is returned when no run matches the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run describes one simulation and the parameters it was produced with.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Width       int
	Height      int
	Sensitivity float64
	StartTime   uint64 // microseconds
	FPS         float64
	FrameCount  int
	EventCount  int
	Source      string
}

// InsertRun stores r together with its events in a single transaction.
// A missing r.ID is filled with a fresh UUID, a zero r.CreatedAt with the
// database clock, and r.EventCount is set from ev.
func (db *DB) InsertRun(ctx context.Context, r *Run, ev *dvs.Events) error {
	if r == nil {
		return errors.New("nil run")
	}
	if r.StartTime > math.MaxInt64 {
		return fmt.Errorf("start time %d overflows int64", r.StartTime)
	}
	for i, ts := range tsOf(ev) {
		if ts > math.MaxInt64 {
			return fmt.Errorf("event %d: timestamp %d overflows int64", i, ts)
		}
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = db.clock.Now()
	}
	r.EventCount = ev.Len()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (run_id, created_at_ns, width, height, sensitivity, start_time_us, fps, frame_count, event_count, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixNano(), r.Width, r.Height, r.Sensitivity, int64(r.StartTime), r.FPS, r.FrameCount, r.EventCount, r.Source)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}

	if ev.Len() > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (run_id, seq, pol, timestamp_us, x_pos, y_pos) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare event insert: %w", err)
		}
		defer stmt.Close()

		for i := 0; i < ev.Len(); i++ {
			pol := 0
			if ev.Polarities[i] {
				pol = 1
			}
			if _, err := stmt.ExecContext(ctx, r.ID, i, pol, int64(ev.Timestamps[i]), ev.XPositions[i], ev.YPositions[i]); err != nil {
				return fmt.Errorf("failed to insert event %d of run %s: %w", i, r.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", r.ID, err)
	}
	return nil
}

func tsOf(ev *dvs.Events) []uint64 {
	if ev == nil {
		return nil
	}
	return ev.Timestamps
}

const runColumns = `run_id, created_at_ns, width, height, sensitivity, start_time_us, fps, frame_count, event_count, COALESCE(source, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r       Run
		created int64
		start   int64
	)
	if err := s.Scan(&r.ID, &created, &r.Width, &r.Height, &r.Sensitivity, &start, &r.FPS, &r.FrameCount, &r.EventCount, &r.Source); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created)
	r.StartTime = uint64(start)
	return &r, nil
}

// Runs lists all stored runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]*Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at_ns DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns the run with the given id.
func (db *DB) Run(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the most recently created run.
func (db *DB) LatestRun(ctx context.Context) (*Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at_ns DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	return r, nil
}

// Events loads the event stream of a run in its stored order.
func (db *DB) Events(ctx context.Context, id string) (*dvs.Events, error) {
	r, err := db.Run(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT pol, timestamp_us, x_pos, y_pos FROM events WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query events of run %s: %w", id, err)
	}
	defer rows.Close()

	ev := dvs.NewEvents(r.EventCount)
	for rows.Next() {
		var (
			pol  int
			ts   int64
			x, y uint32
		)
		if err := rows.Scan(&pol, &ts, &x, &y); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Append(dvs.Event{Timestamp: uint64(ts), X: x, Y: y, Polarity: pol == 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ev, nil
}

// DeleteRun removes a run and, through the foreign key cascade, its events.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
