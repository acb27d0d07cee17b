// Package eventio writes and reads event streams in the supported container
// formats. Every container stores the stream as the four parallel arrays
// pol, timestamps, x_pos and y_pos.
package eventio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/dvsim/internal/db"
	"github.com/banshee-data/dvsim/internal/dvs"
	"github.com/banshee-data/dvsim/internal/fsutil"
	"github.com/banshee-data/dvsim/internal/monitoring"
)

// Format names a container format.
type Format string

const (
	FormatProto  Format = "pb"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

var (
	// ErrUnknownFormat is returned for format names that are not supported.
	ErrUnknownFormat = errors.New("unknown container format")
	// ErrCorrupt is returned when a container cannot be decoded.
	ErrCorrupt = errors.New("corrupt container")
)

var extensions = map[string]Format{
	".pb":      FormatProto,
	".evt":     FormatProto,
	".bin":     FormatProto,
	".csv":     FormatCSV,
	".db":      FormatSQLite,
	".sqlite":  FormatSQLite,
	".sqlite3": FormatSQLite,
}

// ParseFormat maps a user supplied name to a Format. The empty string is
// accepted and returned as is, meaning "detect from the path".
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	switch f {
	case "", FormatProto, FormatCSV, FormatSQLite:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatFromPath picks a format from the file extension. Unrecognised
// extensions map to FormatProto with ok set to false.
func FormatFromPath(path string) (f Format, ok bool) {
	f, ok = extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return FormatProto, false
	}
	return f, true
}

// Metadata describes how a stream was produced. Containers that cannot hold
// it (csv) drop it on write and return zero values on read.
type Metadata struct {
	RunID       string
	Width       int
	Height      int
	Sensitivity float64 // zero when per-pixel thresholds were used
	StartTime   uint64
	FPS         float64
	FrameCount  int
	Source      string
}

func resolve(path string, format Format) (Format, error) {
	if format != "" {
		return ParseFormat(string(format))
	}
	f, ok := FormatFromPath(path)
	if !ok {
		monitoring.Logf("unrecognised extension %q for %s, writing %s", filepath.Ext(path), path, f)
	}
	return f, nil
}

// Write stores ev at path, creating the parent directory first. An empty
// format is detected from the extension. pb and csv replace any existing
// file; sqlite appends a new run and fills meta.RunID when it is empty.
func Write(ctx context.Context, fsys fsutil.FileSystem, path string, format Format, ev *dvs.Events, meta *Metadata) error {
	if meta == nil {
		meta = &Metadata{}
	}
	f, err := resolve(path, format)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsutil.EnsureParentDir(fsys, path); err != nil {
		return err
	}

	switch f {
	case FormatSQLite:
		return writeSQLite(ctx, path, ev, meta)
	case FormatCSV:
		return writeFile(fsys, path, func(w io.Writer) error { return WriteCSV(w, ev) })
	default:
		return writeFile(fsys, path, func(w io.Writer) error { return WriteProto(w, ev, *meta) })
	}
}

// Read loads a stream from path. For sqlite containers runID selects the run;
// an empty runID selects the most recent one.
func Read(ctx context.Context, fsys fsutil.FileSystem, path string, format Format, runID string) (*dvs.Events, *Metadata, error) {
	f := format
	if f == "" {
		f, _ = FormatFromPath(path)
	} else if _, err := ParseFormat(string(f)); err != nil {
		return nil, nil, err
	}

	if f == FormatSQLite {
		// NewDB would create an empty database for a missing path.
		if !fsys.Exists(path) {
			return nil, nil, fmt.Errorf("failed to open %s: %w", path, os.ErrNotExist)
		}
		return readSQLite(ctx, path, runID)
	}

	rc, err := fsys.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer rc.Close()

	if f == FormatCSV {
		ev, err := ReadCSV(rc)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return ev, &Metadata{}, nil
	}
	ev, meta, err := ReadProto(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return ev, meta, nil
}

func writeFile(fsys fsutil.FileSystem, path string, encode func(io.Writer) error) error {
	wc, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriter(wc)
	if err := encode(bw); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// writeSQLite goes through the OS filesystem: the driver opens path itself.
func writeSQLite(ctx context.Context, path string, ev *dvs.Events, meta *Metadata) error {
	store, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := &db.Run{
		ID:          meta.RunID,
		Width:       meta.Width,
		Height:      meta.Height,
		Sensitivity: meta.Sensitivity,
		StartTime:   meta.StartTime,
		FPS:         meta.FPS,
		FrameCount:  meta.FrameCount,
		Source:      meta.Source,
	}
	if err := store.InsertRun(ctx, run, ev); err != nil {
		return err
	}
	meta.RunID = run.ID
	return nil
}

func readSQLite(ctx context.Context, path, runID string) (*dvs.Events, *Metadata, error) {
	store, err := db.NewDB(path)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	var run *db.Run
	if runID == "" {
		run, err = store.LatestRun(ctx)
	} else {
		run, err = store.Run(ctx, runID)
	}
	if err != nil {
		return nil, nil, err
	}
	ev, err := store.Events(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return ev, &Metadata{
		RunID:       run.ID,
		Width:       run.Width,
		Height:      run.Height,
		Sensitivity: run.Sensitivity,
		StartTime:   run.StartTime,
		FPS:         run.FPS,
		FrameCount:  run.FrameCount,
		Source:      run.Source,
	}, nil
}
