// Package dvs simulates a Dynamic Vision Sensor on top of ordinary frames.
//
// A Simulator keeps, per pixel, the last seen log intensity and a reference
// level at which that pixel last fired. Each Update walks every pixel from
// its previous log intensity towards the new one and emits an event each time
// the reference moves by one contrast threshold C. Event timestamps are
// linearly interpolated between the two frame timestamps.
//
// Key types: Simulator, Event, Events, Summary.
//
// Output ordering: events returned by Update are sorted by timestamp. Ties
// keep scan order, which is column-major (x outer, y inner).
package dvs
