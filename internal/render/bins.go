// Package render draws event streams as PNG plots (gonum/plot) and
// interactive HTML charts (go-echarts).
package render

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/dvsim/internal/dvs"
)

// DefaultBins is the number of time bins used when a caller passes zero.
const DefaultBins = 50

// TimeBins splits the span of an ordered stream into equal width bins and
// counts ON and OFF events per bin. Edges are microsecond offsets from
// origin, the first timestamp, so large absolute timestamps keep their
// resolution. edges has len(on)+1 entries and the last edge lies strictly
// past the final event so it is counted.
func TimeBins(ev *dvs.Events, bins int) (origin uint64, edges, on, off []float64) {
	n := ev.Len()
	if n == 0 {
		return 0, nil, nil, nil
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	origin = ev.Timestamps[0]
	x := make([]float64, n)
	onW := make([]float64, n)
	offW := make([]float64, n)
	for i, ts := range ev.Timestamps {
		x[i] = float64(ts - origin)
		if ev.Polarities[i] {
			onW[i] = 1
		} else {
			offW[i] = 1
		}
	}

	// Past 2^53 the +1 can round away.
	upper := x[n-1] + 1
	if upper <= x[n-1] {
		upper = math.Nextafter(x[n-1], math.Inf(1))
	}
	edges = floats.Span(make([]float64, bins+1), 0, upper)
	edges[bins] = upper
	on = stat.Histogram(nil, edges, x, onW)
	off = stat.Histogram(nil, edges, x, offW)
	return origin, edges, on, off
}
