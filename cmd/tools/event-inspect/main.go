// Command event-inspect summarises an event container written by dvsim and
// optionally renders it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/banshee-data/dvsim/internal/db"
	"github.com/banshee-data/dvsim/internal/dvs"
	"github.com/banshee-data/dvsim/internal/eventio"
	"github.com/banshee-data/dvsim/internal/fsutil"
	"github.com/banshee-data/dvsim/internal/monitoring"
	"github.com/banshee-data/dvsim/internal/render"
)

func main() {
	in := flag.String("in", "", "event container to inspect (pb, csv or sqlite)")
	format := flag.String("format", "", "container format (default: from extension)")
	runID := flag.String("run", "", "sqlite run id (default: latest)")
	list := flag.Bool("list", false, "list the runs in a sqlite container and exit")
	plotPath := flag.String("plot", "", "write a PNG rendering")
	chartPath := flag.String("chart", "", "write an HTML chart")
	bins := flag.Int("bins", 0, "time bins in renderings (default 50)")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := monitoring.Setup(monitoring.DevelopmentEnvironment, false); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	logger := monitoring.Logger()
	defer monitoring.Sync()

	ctx := context.Background()
	if *list {
		if err := listRuns(ctx, os.Stdout, *in); err != nil {
			logger.Fatal("list runs failed", zap.String("path", *in), zap.Error(err))
		}
		return
	}

	f, err := eventio.ParseFormat(*format)
	if err != nil {
		logger.Fatal("invalid format", zap.Error(err))
	}
	if err := inspect(ctx, fsutil.OSFileSystem{}, os.Stdout, *in, f, *runID, *plotPath, *chartPath, *bins); err != nil {
		logger.Fatal("inspect failed", zap.String("path", *in), zap.Error(err))
	}
}

func inspect(ctx context.Context, fsys fsutil.FileSystem, w io.Writer, path string, format eventio.Format, runID, plotPath, chartPath string, bins int) error {
	ev, meta, err := eventio.Read(ctx, fsys, path, format, runID)
	if err != nil {
		return err
	}

	width, height := meta.Width, meta.Height
	if width == 0 || height == 0 {
		width, height = extent(ev)
	}

	s := dvs.Summarize(ev, width, height)
	if meta.RunID != "" {
		fmt.Fprintf(w, "run:        %s\n", meta.RunID)
	}
	if meta.Source != "" {
		fmt.Fprintf(w, "source:     %s\n", meta.Source)
	}
	if meta.FPS > 0 {
		fmt.Fprintf(w, "params:     C=%s fps=%g start=%dus frames=%d\n", sensitivity(meta.Sensitivity), meta.FPS, meta.StartTime, meta.FrameCount)
	}
	fmt.Fprintf(w, "sensor:     %dx%d\n", width, height)
	fmt.Fprintf(w, "events:     %d (on %d, off %d)\n", s.Events, s.On, s.Off)
	if s.Events > 0 {
		fmt.Fprintf(w, "time:       %d..%d us (mean %.1f, std %.1f)\n", s.FirstTimestamp, s.LastTimestamp, s.MeanTimestamp, s.StdTimestamp)
		fmt.Fprintf(w, "pixels:     %d active (%.1f%%), mean %.2f, max %d events\n", s.ActivePixels, 100*s.Coverage, s.MeanPerActivePixel, s.MaxPerPixel)
	}

	if plotPath != "" {
		if err := writeTo(fsys, plotPath, func(out io.Writer) error { return render.WritePlot(out, ev, width, height, bins) }); err != nil {
			return err
		}
	}
	if chartPath != "" {
		if err := writeTo(fsys, chartPath, func(out io.Writer) error { return render.WriteChart(out, ev, width, height, bins) }); err != nil {
			return err
		}
	}
	return nil
}

// sensitivity formats C; zero marks a run with per-pixel thresholds.
func sensitivity(c float64) string {
	if c == 0 {
		return "per-pixel"
	}
	return strconv.FormatFloat(c, 'g', -1, 64)
}

// extent derives a sensor size from the largest coordinates in ev, for
// containers that carry no metadata.
func extent(ev *dvs.Events) (width, height int) {
	for i := 0; i < ev.Len(); i++ {
		width = max(width, int(ev.XPositions[i])+1)
		height = max(height, int(ev.YPositions[i])+1)
	}
	return width, height
}

func writeTo(fsys fsutil.FileSystem, path string, draw func(io.Writer) error) error {
	if err := fsutil.EnsureParentDir(fsys, path); err != nil {
		return err
	}
	wc, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if err := draw(wc); err != nil {
		wc.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return wc.Close()
}

func listRuns(ctx context.Context, w io.Writer, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	store, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %dx%d  C=%s  fps=%g  frames=%d  events=%d\n",
			r.ID, r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"), r.Width, r.Height, sensitivity(r.Sensitivity), r.FPS, r.FrameCount, r.EventCount)
	}
	return nil
}
