package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dvsim/internal/config"
	"github.com/banshee-data/dvsim/internal/dvs"
	"github.com/banshee-data/dvsim/internal/eventio"
	"github.com/banshee-data/dvsim/internal/frame"
	"github.com/banshee-data/dvsim/internal/fsutil"
	"github.com/banshee-data/dvsim/internal/monitoring"
	"github.com/banshee-data/dvsim/internal/render"
)

// run loads the frames, simulates them and writes the container plus any
// requested renderings.
func run(ctx context.Context, fsys fsutil.FileSystem, o *options, cfg *config.SimConfig) error {
	log := monitoring.Logger()
	paths := o.framePaths()

	frames, err := frame.LoadAll(fsys, paths)
	if err != nil {
		return err
	}
	width, height := frames[0].Width, frames[0].Height
	log.Info("loaded frames", zap.Int("count", len(frames)), zap.Int("width", width), zap.Int("height", height))

	var thresholds mat.Matrix
	if cfg.ThresholdsPath != "" {
		thresholds, err = dvs.LoadThresholds(fsys, cfg.ThresholdsPath)
		if err != nil {
			return err
		}
		log.Info("using per-pixel thresholds", zap.String("path", cfg.ThresholdsPath))
	}

	ev, err := dvs.Simulate(ctx, frames, dvs.Params{
		Start:       cfg.GetStartTime(),
		FPS:         cfg.FPS,
		Sensitivity: cfg.Sensitivity,
		Thresholds:  thresholds,
		Epsilon:     cfg.Epsilon,
	})
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	// A per-pixel matrix has no single C; zero records that.
	sensitivity := cfg.Sensitivity
	if thresholds != nil {
		sensitivity = 0
	}
	meta := &eventio.Metadata{
		Width:       width,
		Height:      height,
		Sensitivity: sensitivity,
		StartTime:   cfg.GetStartTime(),
		FPS:         cfg.FPS,
		FrameCount:  len(frames),
		Source:      strings.Join(paths, ","),
	}
	if err := eventio.Write(ctx, fsys, o.output, eventio.Format(cfg.Format), ev, meta); err != nil {
		return fmt.Errorf("write %s: %w", o.output, err)
	}
	fields := []zap.Field{zap.String("path", o.output), zap.Int("events", ev.Len())}
	if meta.RunID != "" {
		fields = append(fields, zap.String("run_id", meta.RunID))
	}
	log.Info("wrote events", fields...)

	if o.plot != "" {
		if err := writeRendering(ctx, fsys, o.plot, func(w io.Writer) error {
			return render.WritePlot(w, ev, width, height, o.bins)
		}); err != nil {
			return err
		}
		log.Info("wrote plot", zap.String("path", o.plot))
	}
	if o.chart != "" {
		if err := writeRendering(ctx, fsys, o.chart, func(w io.Writer) error {
			return render.WriteChart(w, ev, width, height, o.bins)
		}); err != nil {
			return err
		}
		log.Info("wrote chart", zap.String("path", o.chart))
	}

	if o.summary {
		logSummary(log, dvs.Summarize(ev, width, height))
	}
	return nil
}

func writeRendering(ctx context.Context, fsys fsutil.FileSystem, path string, draw func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsutil.EnsureParentDir(fsys, path); err != nil {
		return err
	}
	wc, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := draw(wc); err != nil {
		wc.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return wc.Close()
}

func logSummary(log *zap.Logger, s dvs.Summary) {
	log.Info("event summary",
		zap.Int("events", s.Events),
		zap.Int("on", s.On),
		zap.Int("off", s.Off),
		zap.Uint64("first_us", s.FirstTimestamp),
		zap.Uint64("last_us", s.LastTimestamp),
		zap.Float64("mean_us", s.MeanTimestamp),
		zap.Float64("std_us", s.StdTimestamp),
		zap.Int("active_pixels", s.ActivePixels),
		zap.Float64("coverage", s.Coverage),
		zap.Float64("mean_per_active_pixel", s.MeanPerActivePixel),
		zap.Int("max_per_pixel", s.MaxPerPixel),
	)
}
