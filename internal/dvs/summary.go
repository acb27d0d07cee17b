package dvs

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes an event stream.
type Summary struct {
	Events int
	On     int
	Off    int

	FirstTimestamp uint64
	LastTimestamp  uint64
	MeanTimestamp  float64
	StdTimestamp   float64

	// ActivePixels counts pixels with at least one event.
	ActivePixels       int
	Coverage           float64 // ActivePixels / (width*height)
	MeanPerActivePixel float64
	MaxPerPixel        int
}

// Summarize computes a Summary for e over a width x height sensor.
func Summarize(e *Events, width, height int) Summary {
	var s Summary
	n := e.Len()
	if n == 0 {
		return s
	}

	s.Events = n
	s.On, s.Off = e.Counts()
	s.FirstTimestamp = e.Timestamps[0]
	s.LastTimestamp = e.Timestamps[0]

	ts := make([]float64, n)
	for i, t := range e.Timestamps {
		ts[i] = float64(t)
		if t < s.FirstTimestamp {
			s.FirstTimestamp = t
		}
		if t > s.LastTimestamp {
			s.LastTimestamp = t
		}
	}
	if n > 1 {
		s.MeanTimestamp, s.StdTimestamp = stat.MeanStdDev(ts, nil)
	} else {
		s.MeanTimestamp = ts[0]
	}

	perPixel := make(map[uint64]float64)
	for i := 0; i < n; i++ {
		key := uint64(e.YPositions[i])<<32 | uint64(e.XPositions[i])
		perPixel[key]++
	}
	counts := make([]float64, 0, len(perPixel))
	for _, c := range perPixel {
		counts = append(counts, c)
	}
	s.ActivePixels = len(counts)
	s.MeanPerActivePixel = stat.Mean(counts, nil)
	s.MaxPerPixel = int(floats.Max(counts))
	if width > 0 && height > 0 {
		s.Coverage = float64(s.ActivePixels) / float64(width*height)
	}
	return s
}
