// Command dvsim turns a sequence of grayscale frames into the events a
// dynamic vision sensor would have reported between them.
//
//	dvsim -i1 a.png -i2 b.png -o out/events.pb [-C 0.15] [-t 0] [-fps 25]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/banshee-data/dvsim/internal/config"
	"github.com/banshee-data/dvsim/internal/fsutil"
	"github.com/banshee-data/dvsim/internal/monitoring"
	"github.com/banshee-data/dvsim/internal/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// options holds the parsed command line.
type options struct {
	input1      string
	input2      string
	output      string
	frames      string
	sensitivity float64
	startTime   int64
	fps         float64
	epsilon     float64
	format      string
	thresholds  string
	plot        string
	chart       string
	bins        int
	configPath  string
	summary     bool
	verbose     bool
	version     bool
}

// newFlagSet registers every flag on a fresh FlagSet. Short and long
// spellings of the same option share one variable.
func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *options) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}

	fs.StringVar(&o.input1, "i1", "", "first input frame (required)")
	fs.StringVar(&o.input1, "input1", "", "alias for -i1")
	fs.StringVar(&o.input2, "i2", "", "second input frame (required)")
	fs.StringVar(&o.input2, "input2", "", "alias for -i2")
	fs.StringVar(&o.output, "o", "", "output container; extension selects the format (required)")
	fs.StringVar(&o.output, "output", "", "alias for -o")
	fs.Float64Var(&o.sensitivity, "C", config.DefaultSensitivity, "contrast sensitivity")
	fs.Int64Var(&o.startTime, "t", 0, "timestamp of the first frame in microseconds")
	fs.Int64Var(&o.startTime, "time", 0, "alias for -t")
	fs.Float64Var(&o.fps, "fps", config.DefaultFPS, "frames per second")

	fs.StringVar(&o.frames, "frames", "", "comma separated frames to simulate after -i2")
	fs.Float64Var(&o.epsilon, "eps", config.DefaultEpsilon, "offset added to pixel values before the logarithm")
	fs.StringVar(&o.format, "format", "", "output format: pb, csv or sqlite (default: from extension)")
	fs.StringVar(&o.thresholds, "thresholds", "", "CSV matrix of per-pixel thresholds, overrides -C")
	fs.StringVar(&o.plot, "plot", "", "write a PNG rendering of the events")
	fs.StringVar(&o.chart, "chart", "", "write an HTML chart of the events")
	fs.IntVar(&o.bins, "bins", 0, "time bins in renderings (default 50)")
	fs.StringVar(&o.configPath, "config", "", "config file (json, yaml, toml or env)")
	fs.BoolVar(&o.summary, "summary", false, "log a summary of the event stream")
	fs.BoolVar(&o.verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&o.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s -i1 FRAME -i2 FRAME -o OUTPUT [options]\n\n", name)
		fs.PrintDefaults()
	}
	return fs, o
}

// framePaths returns every input frame path in simulation order.
func (o *options) framePaths() []string {
	paths := []string{o.input1, o.input2}
	for _, p := range strings.Split(o.frames, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// missing names the required flags that were left empty.
func (o *options) missing() []string {
	var m []string
	if o.input1 == "" {
		m = append(m, "-i1")
	}
	if o.input2 == "" {
		m = append(m, "-i2")
	}
	if o.output == "" {
		m = append(m, "-o")
	}
	return m
}

// loadConfig reads the config file and environment, then applies flags that
// were given explicitly on the command line. Only the merged result is
// validated.
func loadConfig(fs *flag.FlagSet, o *options) (*config.SimConfig, error) {
	cfg, err := config.ReadSimConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "C":
			cfg.Sensitivity = o.sensitivity
		case "t", "time":
			cfg.StartTime = o.startTime
		case "fps":
			cfg.FPS = o.fps
		case "eps":
			cfg.Epsilon = o.epsilon
		case "format":
			cfg.Format = o.format
		case "thresholds":
			cfg.ThresholdsPath = o.thresholds
		case "verbose":
			cfg.Verbose = o.verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func realMain(ctx context.Context, args []string, fsys fsutil.FileSystem, stdout, stderr io.Writer) int {
	name := "dvsim"
	fs, o := newFlagSet(name, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if o.version {
		fmt.Fprintln(stdout, version.String(name))
		return exitOK
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return exitUsage
	}
	if m := o.missing(); len(m) > 0 {
		fmt.Fprintf(stderr, "missing required flags: %s\n", strings.Join(m, ", "))
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(fs, o)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if err := monitoring.Setup(cfg.GetEnvironment(), cfg.Verbose); err != nil {
		fmt.Fprintf(stderr, "failed to set up logging: %v\n", err)
		return exitError
	}
	defer monitoring.Sync()

	if err := run(ctx, fsys, o, cfg); err != nil {
		monitoring.Logger().Error("simulation failed", zap.Error(err))
		return exitError
	}
	return exitOK
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := realMain(ctx, os.Args[1:], fsutil.OSFileSystem{}, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
