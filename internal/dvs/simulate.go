package dvs

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dvsim/internal/frame"
	"github.com/banshee-data/dvsim/internal/monitoring"
)

// ErrTooFewFrames is returned by Simulate when fewer than two frames are given.
var ErrTooFewFrames = errors.New("at least two frames are required")

// Params configures a Simulate run.
type Params struct {
	// Start is the timestamp of the first frame in microseconds.
	Start uint64
	// FPS spaces consecutive frames 1e6/FPS microseconds apart.
	FPS float64
	// Sensitivity is the shared threshold, ignored when Thresholds is set.
	Sensitivity float64
	// Thresholds optionally holds one threshold per pixel.
	Thresholds mat.Matrix
	// Epsilon overrides DefaultEpsilon when positive.
	Epsilon float64
}

// FrameInterval converts a frame rate into the microsecond spacing between
// frames, truncated to an integer.
func FrameInterval(fps float64) (uint64, error) {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return 0, fmt.Errorf("fps must be positive and finite, got %g", fps)
	}
	return uint64(1e6 / fps), nil
}

// Simulate seeds a simulator with frames[0] and feeds it the remaining
// frames, frame k being stamped Start + k*interval. The concatenated stream
// is ordered by timestamp because each update covers a later window.
func Simulate(ctx context.Context, frames []*frame.Frame, p Params) (*Events, error) {
	if len(frames) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewFrames, len(frames))
	}
	dt, err := FrameInterval(p.FPS)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if p.Epsilon > 0 {
		opts = append(opts, WithEpsilon(float32(p.Epsilon)))
	}

	var sim *Simulator
	if p.Thresholds != nil {
		sim, err = NewSimulatorWithThresholds(frames[0], p.Start, p.Thresholds, opts...)
	} else {
		sim, err = NewSimulator(frames[0], p.Start, float32(p.Sensitivity), opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator: %w", err)
	}

	log := monitoring.Logger()
	all := NewEvents(0)
	for k := 1; k < len(frames); k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ts := p.Start + uint64(k)*dt
		ev, err := sim.Update(frames[k], ts)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", k, err)
		}
		log.Debug("simulated frame",
			zap.Int("frame", k),
			zap.Uint64("timestamp_us", ts),
			zap.Int("events", ev.Len()))
		all.Extend(ev)
	}
	return all, nil
}
