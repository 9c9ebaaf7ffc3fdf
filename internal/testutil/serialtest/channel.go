package serialtest

import (
	"sync"
	"time"
)

const DefaultPollTick = 10 * time.Millisecond

// Channel is an in-memory frame.Channel driven by a manual Clock.
// An empty Read advances the clock by the poll tick, the way a serial port
// read returns empty after its poll interval.
type Channel struct {
	mu       sync.Mutex
	clock    *Clock
	tick     time.Duration
	inbound  []byte
	writes   [][]byte
	reads    int
	resets   int
	onIdle   func()
	readErr  error
	writeErr error
	resetErr error
}

func NewChannel(clock *Clock) *Channel {
	return &Channel{clock: clock, tick: DefaultPollTick}
}

// Feed queues device->host bytes.
func (c *Channel) Feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbound = append(c.inbound, p...)
}

// OnIdle installs a hook run when the host reads with no input pending.
func (c *Channel) OnIdle(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onIdle = fn
}

func (c *Channel) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *Channel) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *Channel) FailResets(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetErr = err
}

func (c *Channel) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.mu.Lock()
	c.reads++
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return 0, err
	}
	idle := c.onIdle
	empty := len(c.inbound) == 0
	c.mu.Unlock()

	if empty && idle != nil {
		idle()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		c.clock.Advance(c.tick)
		return 0, nil
	}
	n := copy(p, c.inbound)
	c.inbound = c.inbound[n:]
	return n, nil
}

func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	c.writes = append(c.writes, cp)
	return len(p), nil
}

func (c *Channel) ResetInputBuffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	if c.resetErr != nil {
		return c.resetErr
	}
	c.inbound = nil
	return nil
}

// Writes returns a copy of every host write, one entry per Write call.
func (c *Channel) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// LastWrite returns the most recent host write and the total write count.
func (c *Channel) LastWrite() ([]byte, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		return nil, 0
	}
	return c.writes[len(c.writes)-1], len(c.writes)
}

func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inbound)
}

// Ops counts every read, write and reset the host performed.
func (c *Channel) Ops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads + len(c.writes) + c.resets
}

func (c *Channel) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}
