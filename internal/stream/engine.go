package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/audifi/internal/logging"
	"github.com/danmuck/audifi/internal/observability"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxChunk is the 11029-byte request minus its 4-byte header budget.
	DefaultMaxChunk      = 11025
	DefaultMaxTrackBytes = 256 << 20
)

var (
	ErrLinkRequired  = errors.New("stream: link required")
	ErrInvalidConfig = errors.New("stream: invalid config")
)

// Link is the protocol surface the engine drives. session.Session implements it.
type Link interface {
	AwaitPullRequest(ctx context.Context) error
	SendChunkHeader(n int) error
	SendSample(b byte) error
	Purge() error
}

// Config sizes tracks and chunks.
type Config struct {
	HeaderLen     int
	MaxChunk      int
	MaxTrackBytes int64
}

func DefaultConfig() Config {
	return Config{
		HeaderLen:     DefaultHeaderLen,
		MaxChunk:      DefaultMaxChunk,
		MaxTrackBytes: DefaultMaxTrackBytes,
	}
}

func (c Config) Validate() error {
	if c.HeaderLen < 0 {
		return fmt.Errorf("%w: negative header length", ErrInvalidConfig)
	}
	if c.MaxChunk <= 0 || c.MaxChunk > 0xFFFF {
		return fmt.Errorf("%w: max chunk %d outside 1..65535", ErrInvalidConfig, c.MaxChunk)
	}
	if c.MaxTrackBytes <= 0 {
		return fmt.Errorf("%w: max track bytes must be positive", ErrInvalidConfig)
	}
	return nil
}

// Summary totals one engine run.
type Summary struct {
	Tracks       int
	Streamed     int
	Skipped      int
	Chunks       int
	PayloadBytes int
}

// Engine streams playlist entries over a Link, one pull cycle at a time.
type Engine struct {
	link   Link
	cfg    Config
	log    zerolog.Logger
	status statusBox
}

func NewEngine(link Link, cfg Config) (*Engine, error) {
	if link == nil {
		return nil, ErrLinkRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		link: link,
		cfg:  cfg,
		log:  logging.Component("stream"),
	}
	e.status.update(func(s *Status) { s.State = StateIdle })
	return e, nil
}

// Status returns a snapshot safe to read from any goroutine.
func (e *Engine) Status() Status {
	return e.status.get()
}

// Run streams every path in order. Entries that fail to open or validate are
// skipped; allocation failures and link errors end the run.
// An empty playlist performs no link operations.
func (e *Engine) Run(ctx context.Context, paths []string) (Summary, error) {
	sum := Summary{Tracks: len(paths)}
	e.status.update(func(s *Status) { s.TrackCount = len(paths) })
	defer e.setState(StateDone)

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		e.status.update(func(s *Status) {
			s.State = StateIdle
			s.TrackIndex = i
			s.TrackPath = path
			s.TrackSize = 0
			s.Cursor = 0
		})

		track, err := LoadTrack(i, path, e.cfg.HeaderLen, e.cfg.MaxTrackBytes)
		if err != nil {
			if skippable(err) {
				sum.Skipped++
				e.status.update(func(s *Status) { s.Skipped++ })
				observability.RecordTrack(observability.TrackSkipped)
				e.log.Warn().Err(err).Int("track", i).Str("path", path).Msg("audio file is not valid; skipping")
				continue
			}
			observability.RecordTrack(observability.TrackFailed)
			e.log.Error().Err(err).Int("track", i).Str("path", path).Msg("track load failed; aborting run")
			return sum, err
		}

		e.log.Info().Int("track", i).Str("path", path).Int("size", track.Size()).Msg("streaming audio")
		e.status.update(func(s *Status) {
			s.TrackSize = track.Size()
			s.Cursor = track.Cursor()
		})

		chunks, sent, err := e.streamTrack(ctx, track)
		track.Release()
		sum.Chunks += chunks
		sum.PayloadBytes += sent
		if err != nil {
			observability.RecordTrack(observability.TrackFailed)
			return sum, fmt.Errorf("stream: track %d (%s): %w", i, path, err)
		}

		sum.Streamed++
		e.status.update(func(s *Status) { s.Streamed++ })
		observability.RecordTrack(observability.TrackStreamed)
		e.log.Info().Int("track", i).Int("chunks", chunks).Int("payload_bytes", sent).Msg("track streamed")
	}
	return sum, nil
}

// streamTrack answers pull requests until the track cursor reaches the end.
func (e *Engine) streamTrack(ctx context.Context, t *Track) (int, int, error) {
	chunks, total := 0, 0
	for !t.Done() {
		e.setState(StateAwaitingRequest)
		if err := e.link.AwaitPullRequest(ctx); err != nil {
			return chunks, total, err
		}

		e.setState(StateRequestAcknowledged)
		requestSize := min(t.Remaining(), e.cfg.MaxChunk)
		if err := e.link.SendChunkHeader(requestSize); err != nil {
			return chunks, total, err
		}

		e.setState(StateSending)
		sent, err := e.sendChunk(t, requestSize)
		total += sent
		if err != nil {
			return chunks, total, err
		}
		chunks++
		observability.RecordChunk(requestSize, sent)
		e.status.update(func(s *Status) {
			s.Cursor = t.Cursor()
			s.Chunks++
			s.PayloadBytes += sent
		})

		if sent == requestSize {
			if err := e.link.Purge(); err != nil {
				return chunks, total, err
			}
		} else {
			e.log.Debug().Int("declared", requestSize).Int("sent", sent).Msg("final chunk ended with the track")
		}
	}
	return chunks, total, nil
}

// sendChunk walks the track from its cursor, writing bytes at even positions
// until requestSize bytes are sent or the track ends.
func (e *Engine) sendChunk(t *Track, requestSize int) (int, error) {
	sent := 0
	for t.cursor < len(t.data) && sent < requestSize {
		if t.cursor%2 == 0 {
			if err := e.link.SendSample(t.data[t.cursor]); err != nil {
				return sent, err
			}
			sent++
		}
		t.cursor++
	}
	return sent, nil
}

func (e *Engine) setState(state State) {
	e.status.update(func(s *Status) { s.State = state })
}
