package dvs

import (
	"fmt"
	"slices"
)

// Event is a single brightness change at one pixel.
type Event struct {
	Timestamp uint64 // microseconds
	X         uint32 // column
	Y         uint32 // row
	Polarity  bool   // true: brighter (ON), false: darker (OFF)
}

// Events stores an event stream as four parallel arrays, which is also how
// the containers in eventio lay them out. All four slices have equal length.
type Events struct {
	Polarities []bool
	Timestamps []uint64
	XPositions []uint32
	YPositions []uint32
}

// NewEvents returns an empty stream with room for n events.
func NewEvents(n int) *Events {
	return &Events{
		Polarities: make([]bool, 0, n),
		Timestamps: make([]uint64, 0, n),
		XPositions: make([]uint32, 0, n),
		YPositions: make([]uint32, 0, n),
	}
}

// Len returns the number of events.
func (e *Events) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Timestamps)
}

// At returns the i-th event.
func (e *Events) At(i int) Event {
	return Event{
		Timestamp: e.Timestamps[i],
		X:         e.XPositions[i],
		Y:         e.YPositions[i],
		Polarity:  e.Polarities[i],
	}
}

// Append adds ev to the end of the stream.
func (e *Events) Append(ev Event) {
	e.Polarities = append(e.Polarities, ev.Polarity)
	e.Timestamps = append(e.Timestamps, ev.Timestamp)
	e.XPositions = append(e.XPositions, ev.X)
	e.YPositions = append(e.YPositions, ev.Y)
}

// Extend appends all events of o.
func (e *Events) Extend(o *Events) {
	if o == nil {
		return
	}
	e.Polarities = append(e.Polarities, o.Polarities...)
	e.Timestamps = append(e.Timestamps, o.Timestamps...)
	e.XPositions = append(e.XPositions, o.XPositions...)
	e.YPositions = append(e.YPositions, o.YPositions...)
}

// Counts returns the number of ON and OFF events.
func (e *Events) Counts() (on, off int) {
	for _, p := range e.Polarities {
		if p {
			on++
		} else {
			off++
		}
	}
	return on, off
}

// Validate checks that the four arrays line up and timestamps never
// decrease.
func (e *Events) Validate() error {
	n := len(e.Timestamps)
	if len(e.Polarities) != n || len(e.XPositions) != n || len(e.YPositions) != n {
		return fmt.Errorf("event arrays differ in length: pol=%d timestamps=%d x=%d y=%d",
			len(e.Polarities), n, len(e.XPositions), len(e.YPositions))
	}
	for i := 1; i < n; i++ {
		if e.Timestamps[i] < e.Timestamps[i-1] {
			return fmt.Errorf("timestamp %d at index %d precedes %d", e.Timestamps[i], i, e.Timestamps[i-1])
		}
	}
	return nil
}

// sortByTimestamp reorders the stream by timestamp, keeping the relative
// order of events that share a timestamp.
func (e *Events) sortByTimestamp() {
	n := e.Len()
	if slices.IsSorted(e.Timestamps) {
		return
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case e.Timestamps[a] < e.Timestamps[b]:
			return -1
		case e.Timestamps[a] > e.Timestamps[b]:
			return 1
		}
		return 0
	})

	e.Polarities = rearrange(e.Polarities, idx)
	e.Timestamps = rearrange(e.Timestamps, idx)
	e.XPositions = rearrange(e.XPositions, idx)
	e.YPositions = rearrange(e.YPositions, idx)
}

func rearrange[T any](data []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}
