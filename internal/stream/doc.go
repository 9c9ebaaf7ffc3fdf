// Package stream owns the per-track streaming state machine.
//
// Lifecycle per playlist entry:
// - idle -> awaiting_request -> request_acknowledged -> sending
//
// - sending loops back to awaiting_request until the track cursor reaches the
// end, then the track buffer is released and the next entry starts.
//
// Only bytes at even positions of the file are sent; odd positions are walked
// over. One track is resident at a time and is never cached across entries.
package stream
