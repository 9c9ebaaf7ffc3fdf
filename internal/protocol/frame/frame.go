package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	DefaultCapacity    = 1024
	DefaultReadTimeout = 2000 * time.Millisecond
	DefaultDelimiter   = byte('\n')
)

var (
	ErrHardIO          = errors.New("frame: hard i/o error")
	ErrChannelRequired = errors.New("frame: channel required")
)

// Channel is an already-open byte stream to the device.
// Read may return 0, nil when no byte arrived within the channel's own poll
// interval; the transport enforces the overall read timeout.
type Channel interface {
	io.Reader
	io.Writer
	ResetInputBuffer() error
}

// Status reports why a Read stopped.
type Status int

const (
	StatusCompleted Status = iota
	StatusTimedOut
	StatusDelimiterFound
	StatusIOError
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusTimedOut:
		return "timed_out"
	case StatusDelimiterFound:
		return "delimiter_found"
	case StatusIOError:
		return "io_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ReadOutcome is the result of one framed read.
type ReadOutcome struct {
	Data   []byte
	Status Status
	Err    error
}

// N returns the captured byte count, or -1 for a hard I/O error.
func (o ReadOutcome) N() int {
	if o.Status == StatusIOError {
		return -1
	}
	return len(o.Data)
}

// Config bounds transport buffers and read timing.
type Config struct {
	Capacity    int
	ReadTimeout time.Duration
	Delimiter   byte
}

func DefaultConfig() Config {
	return Config{
		Capacity:    DefaultCapacity,
		ReadTimeout: DefaultReadTimeout,
		Delimiter:   DefaultDelimiter,
	}
}

// WithDefaults fills zero-valued fields.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.Delimiter == 0 {
		c.Delimiter = d.Delimiter
	}
	return c
}

// Transport performs framed reads and writes over one Channel.
// It is not safe for concurrent use; the protocol is strictly sequential.
type Transport struct {
	ch    Channel
	cfg   Config
	clock Clock
	rx    []byte
	tx    []byte
	one   [1]byte
}

func NewTransport(ch Channel, cfg Config, clock Clock) (*Transport, error) {
	if ch == nil {
		return nil, ErrChannelRequired
	}
	if clock == nil {
		clock = SystemClock{}
	}
	cfg = cfg.WithDefaults()
	return &Transport{
		ch:    ch,
		cfg:   cfg,
		clock: clock,
		rx:    make([]byte, 0, cfg.Capacity),
		tx:    make([]byte, 0, cfg.Capacity),
	}, nil
}

func (t *Transport) Config() Config {
	return t.cfg
}

func (t *Transport) Clock() Clock {
	return t.clock
}

// Write sends p, appending the delimiter when requested and the tx buffer has
// room for it. Payloads larger than the tx buffer are written as-is.
func (t *Transport) Write(p []byte, appendDelimiter bool) error {
	out := p
	if len(p) < t.cfg.Capacity {
		t.tx = append(t.tx[:0], p...)
		if appendDelimiter {
			t.tx = append(t.tx, t.cfg.Delimiter)
		}
		out = t.tx
	}
	if _, err := t.ch.Write(out); err != nil {
		return fmt.Errorf("%w: write: %v", ErrHardIO, err)
	}
	return nil
}

// Read captures bytes one at a time until maxLength is reached (when not
// waiting for the delimiter), the delimiter is seen (when waiting), the buffer
// capacity is reached, or the read timeout elapses.
// The returned Data aliases the transport's buffer and is only valid until the
// next Read.
func (t *Transport) Read(ctx context.Context, maxLength int, waitForDelimiter bool) ReadOutcome {
	t.rx = t.rx[:0]
	if !waitForDelimiter && maxLength <= 0 {
		return ReadOutcome{Data: t.rx, Status: StatusCompleted}
	}
	deadline := t.clock.Now().Add(t.cfg.ReadTimeout)

	for t.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return ReadOutcome{Status: StatusIOError, Err: err}
		}
		n, err := t.ch.Read(t.one[:])
		if err != nil {
			return ReadOutcome{Status: StatusIOError, Err: fmt.Errorf("%w: read: %v", ErrHardIO, err)}
		}
		if n == 0 {
			continue
		}

		b := t.one[0]
		t.rx = append(t.rx, b)
		isDelim := b == t.cfg.Delimiter

		if len(t.rx) >= t.cfg.Capacity || (!waitForDelimiter && len(t.rx) >= maxLength) {
			if waitForDelimiter && isDelim {
				return ReadOutcome{Data: t.rx, Status: StatusDelimiterFound}
			}
			return ReadOutcome{Data: t.rx, Status: StatusCompleted}
		}
		if waitForDelimiter && isDelim {
			return ReadOutcome{Data: t.rx, Status: StatusDelimiterFound}
		}
	}
	return ReadOutcome{Data: t.rx, Status: StatusTimedOut}
}

// Purge discards any unread input on the channel.
func (t *Transport) Purge() error {
	if err := t.ch.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: purge: %v", ErrHardIO, err)
	}
	return nil
}

// TrimDelimiter strips one trailing delimiter and a preceding carriage return.
func TrimDelimiter(p []byte, delim byte) []byte {
	if n := len(p); n > 0 && p[n-1] == delim {
		p = p[:n-1]
	}
	if n := len(p); n > 0 && p[n-1] == '\r' {
		p = p[:n-1]
	}
	return p
}
