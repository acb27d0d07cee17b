package dvs

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dvsim/internal/frame"
)

// DefaultEpsilon is added to every intensity before taking the logarithm so
// black pixels stay finite.
const DefaultEpsilon = 1e-3

var (
	// ErrSizeMismatch is returned when a frame or threshold matrix does not
	// match the simulator's dimensions.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrTimestampOrder is returned when Update is called with a timestamp
	// older than the last one seen.
	ErrTimestampOrder = errors.New("timestamp precedes last update")
	// ErrInvalidThreshold is returned for non-positive or non-finite thresholds.
	ErrInvalidThreshold = errors.New("invalid threshold")
	// ErrInvalidEpsilon is returned for a non-positive log epsilon.
	ErrInvalidEpsilon = errors.New("invalid epsilon")
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithEpsilon overrides DefaultEpsilon.
func WithEpsilon(eps float32) Option {
	return func(s *Simulator) { s.epsilon = eps }
}

// Simulator converts successive frames into events. It is not safe for
// concurrent use.
type Simulator struct {
	width  int
	height int

	// Row-major per-pixel state.
	logImg     []float32 // log intensity of the last frame
	reference  []float32 // log level at which the pixel last fired
	thresholds []float32 // contrast threshold C

	timestamp uint64
	epsilon   float32
	logTable  [256]float32
}

// NewSimulator seeds a simulator with the first frame, its timestamp and a
// threshold shared by every pixel.
func NewSimulator(f *frame.Frame, timestamp uint64, c float32, opts ...Option) (*Simulator, error) {
	if err := checkThreshold(float64(c)); err != nil {
		return nil, err
	}
	s, err := newSimulator(f, timestamp, opts)
	if err != nil {
		return nil, err
	}
	for i := range s.thresholds {
		s.thresholds[i] = c
	}
	return s, nil
}

// NewSimulatorWithThresholds seeds a simulator with a per-pixel threshold
// matrix. c must have one row per frame row and one column per frame column.
func NewSimulatorWithThresholds(f *frame.Frame, timestamp uint64, c mat.Matrix, opts ...Option) (*Simulator, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil threshold matrix", ErrInvalidThreshold)
	}
	s, err := newSimulator(f, timestamp, opts)
	if err != nil {
		return nil, err
	}
	rows, cols := c.Dims()
	if rows != s.height || cols != s.width {
		return nil, fmt.Errorf("%w: thresholds are %dx%d, frame is %dx%d",
			ErrSizeMismatch, cols, rows, s.width, s.height)
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := c.At(y, x)
			if err := checkThreshold(v); err != nil {
				return nil, fmt.Errorf("pixel (%d, %d): %w", x, y, err)
			}
			s.thresholds[y*s.width+x] = float32(v)
		}
	}
	return s, nil
}

func newSimulator(f *frame.Frame, timestamp uint64, opts []Option) (*Simulator, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrSizeMismatch)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		width:     f.Width,
		height:    f.Height,
		timestamp: timestamp,
		epsilon:   DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !(s.epsilon > 0) || math.IsInf(float64(s.epsilon), 0) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidEpsilon, s.epsilon)
	}
	for v := range s.logTable {
		s.logTable[v] = float32(math.Log(float64(float32(v) + s.epsilon)))
	}

	n := f.Width * f.Height
	s.logImg = s.logFrame(f)
	s.reference = make([]float32, n)
	copy(s.reference, s.logImg)
	s.thresholds = make([]float32, n)
	return s, nil
}

func checkThreshold(c float64) error {
	if !(c > 0) || math.IsInf(c, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidThreshold, c)
	}
	return nil
}

// logFrame maps every intensity v to ln(v + epsilon).
func (s *Simulator) logFrame(f *frame.Frame) []float32 {
	out := make([]float32, len(f.Pix))
	for i, v := range f.Pix {
		out[i] = s.logTable[v]
	}
	return out
}

// Update generates the events between the last frame and f, which was
// captured at timestamp. The simulator then adopts f and timestamp as its
// current state; per-pixel reference levels carry over.
func (s *Simulator) Update(f *frame.Frame, timestamp uint64) (*Events, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrSizeMismatch)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Width != s.width || f.Height != s.height {
		return nil, fmt.Errorf("%w: frame is %dx%d, simulator is %dx%d",
			ErrSizeMismatch, f.Width, f.Height, s.width, s.height)
	}
	if timestamp < s.timestamp {
		return nil, fmt.Errorf("%w: %d < %d", ErrTimestampOrder, timestamp, s.timestamp)
	}

	next := s.logFrame(f)
	events := NewEvents(0)
	for x := 0; x < s.width; x++ {
		for y := 0; y < s.height; y++ {
			i := y*s.width + x
			s.crossings(events, i, next[i], timestamp, uint32(x), uint32(y))
		}
	}

	s.timestamp = timestamp
	s.logImg = next
	events.sortByTimestamp()
	return events, nil
}

// crossings emits one event per threshold step between the pixel's reference
// level and its next log intensity, moving the reference along.
func (s *Simulator) crossings(events *Events, i int, next float32, t1 uint64, x, y uint32) {
	cur := s.logImg[i]
	c := s.thresholds[i]
	polarity := next > cur
	factor := float32(-1)
	if polarity {
		factor = 1
	}

	ref := s.reference[i]
	for factor*ref+c <= factor*next {
		stepped := ref + factor*c
		if stepped == ref {
			// c is below the float32 resolution at this level.
			break
		}
		ref = stepped
		events.Append(Event{
			Timestamp: interpolate(s.timestamp, t1, cur, next, ref),
			X:         x,
			Y:         y,
			Polarity:  polarity,
		})
	}
	s.reference[i] = ref
}

// interpolate places a crossing at level between cur (at t0) and next (at t1)
// assuming the log intensity changed linearly. The arithmetic stays in
// float32, as the crossing loop does. The result is clamped to [t0, t1].
func interpolate(t0, t1 uint64, cur, next, level float32) uint64 {
	dt := t1 - t0
	delta := next - cur
	if delta == 0 {
		return t1
	}
	step := float32(dt) / delta
	offset := float32(step * (level - cur))
	switch {
	case !(offset > 0):
		return t0
	case float64(offset) >= float64(dt):
		return t1
	}
	return t0 + uint64(offset)
}

// Timestamp returns the timestamp of the last frame seen.
func (s *Simulator) Timestamp() uint64 {
	return s.timestamp
}

// Size returns the frame width and height the simulator accepts.
func (s *Simulator) Size() (width, height int) {
	return s.width, s.height
}

// Epsilon returns the log offset in use.
func (s *Simulator) Epsilon() float32 {
	return s.epsilon
}

// Thresholds returns a copy of the per-pixel threshold matrix with one row
// per frame row.
func (s *Simulator) Thresholds() *mat.Dense {
	data := make([]float64, len(s.thresholds))
	for i, v := range s.thresholds {
		data[i] = float64(v)
	}
	return mat.NewDense(s.height, s.width, data)
}

// Reference returns the reference log level of pixel (x, y).
func (s *Simulator) Reference(x, y int) float32 {
	return s.reference[y*s.width+x]
}
