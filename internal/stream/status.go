package stream

import "sync"

// State is the engine's position in the per-track state machine.
type State string

const (
	StateIdle                State = "idle"
	StateAwaitingRequest     State = "awaiting_request"
	StateRequestAcknowledged State = "request_acknowledged"
	StateSending             State = "sending"
	StateDone                State = "done"
)

// Status is a point-in-time view of the engine.
type Status struct {
	State        State  `json:"state"`
	TrackIndex   int    `json:"track_index"`
	TrackCount   int    `json:"track_count"`
	TrackPath    string `json:"track_path,omitempty"`
	TrackSize    int    `json:"track_size"`
	Cursor       int    `json:"cursor"`
	Chunks       int    `json:"chunks"`
	PayloadBytes int    `json:"payload_bytes"`
	Streamed     int    `json:"tracks_streamed"`
	Skipped      int    `json:"tracks_skipped"`
}

// statusBox guards the status shared with readers on other goroutines.
type statusBox struct {
	mu sync.RWMutex
	s  Status
}

func (b *statusBox) get() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.s
}

func (b *statusBox) update(fn func(*Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.s)
}
