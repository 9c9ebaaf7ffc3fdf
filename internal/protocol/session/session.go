package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/audifi/internal/logging"
	"github.com/danmuck/audifi/internal/observability"
	"github.com/danmuck/audifi/internal/protocol/frame"
	"github.com/rs/zerolog"
)

var (
	ErrReadTimeout        = errors.New("session: read timed out")
	ErrProtocolMismatch   = errors.New("session: protocol mismatch")
	ErrRetriesExhausted   = errors.New("session: retries exhausted")
	ErrInvalidHeaderWidth = errors.New("session: invalid chunk header width")
	ErrChunkTooLarge      = errors.New("session: chunk length out of range")
	ErrTransportRequired  = errors.New("session: transport required")
)

const (
	stageHandshake = "handshake"
	stagePull      = "pull"
)

// Session is the protocol context for one open device channel.
type Session struct {
	tr    *frame.Transport
	cfg   Config
	log   zerolog.Logger
	ready atomic.Bool
	one   [1]byte
}

func New(tr *frame.Transport, cfg Config) (*Session, error) {
	if tr == nil {
		return nil, ErrTransportRequired
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		tr:  tr,
		cfg: cfg,
		log: logging.Component("session"),
	}, nil
}

func (s *Session) Config() Config {
	return s.cfg
}

// Ready reports whether the handshake has completed. Safe from any goroutine.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// AwaitReady sends READY? until the device answers exactly YES!.
// Mismatches and timeouts are retried per the handshake policies; hard I/O
// errors are returned immediately.
func (s *Session) AwaitReady(ctx context.Context) error {
	clock := s.tr.Clock()
	start := clock.Now()
	r := newRetrier(clock)
	if s.cfg.Handshake.Mismatch.Unbounded() || s.cfg.Handshake.Timeout.Unbounded() {
		s.log.Debug().Msg("handshake retry is unbounded; blocks until the device answers")
	}
	s.log.Info().Msg("checking if device is ready")

	for {
		if err := s.tr.Purge(); err != nil {
			return err
		}
		if err := s.tr.Write([]byte(TokenReady), true); err != nil {
			return err
		}
		if err := clock.Sleep(ctx, s.cfg.Handshake.SettleDelay); err != nil {
			return err
		}

		out := s.tr.Read(ctx, len(TokenYes), false)
		var (
			policy RetryPolicy
			cause  error
		)
		switch {
		case out.Status == frame.StatusIOError:
			return out.Err
		case out.Status == frame.StatusCompleted && string(out.Data) == TokenYes:
			if err := s.tr.Purge(); err != nil {
				return err
			}
			s.ready.Store(true)
			elapsed := clock.Now().Sub(start)
			observability.RecordHandshake(r.attempts+1, elapsed)
			s.log.Info().Int("attempts", r.attempts+1).Dur("elapsed", elapsed).Msg("device is ready")
			return nil
		case out.Status == frame.StatusTimedOut:
			policy = s.cfg.Handshake.Timeout
			cause = ErrReadTimeout
			s.log.Warn().Int("partial", out.N()).Msg("serial timed out; device is not ready")
		default:
			policy = s.cfg.Handshake.Mismatch
			cause = fmt.Errorf("%w: got %q", ErrProtocolMismatch, out.Data)
			s.log.Warn().Str("reply", string(out.Data)).Msg("device is not ready")
		}

		observability.RecordRetry(stageHandshake, retryReason(cause))
		if err := r.wait(ctx, policy, cause); err != nil {
			return err
		}
	}
}

// AwaitPullRequest blocks until the device sends RD?, then answers ACK! and
// clears stale input.
func (s *Session) AwaitPullRequest(ctx context.Context) error {
	r := newRetrier(s.tr.Clock())
	delim := s.tr.Config().Delimiter

	for {
		out := s.tr.Read(ctx, pullFrameLen, true)
		if out.Status == frame.StatusIOError {
			return out.Err
		}

		token := frame.TrimDelimiter(out.Data, delim)
		if out.Status == frame.StatusDelimiterFound && string(token) == TokenPull {
			if err := s.tr.Write([]byte(TokenAck), true); err != nil {
				return err
			}
			return s.tr.Purge()
		}

		var cause error
		if out.Status == frame.StatusTimedOut && len(out.Data) == 0 {
			cause = ErrReadTimeout
			s.log.Debug().Msg("no pull request before timeout")
		} else {
			cause = fmt.Errorf("%w: got %q", ErrProtocolMismatch, out.Data)
			s.log.Warn().Str("frame", string(token)).Int("len", len(out.Data)).Msg("pull request incomplete")
		}

		observability.RecordRetry(stagePull, retryReason(cause))
		if err := r.wait(ctx, s.cfg.Pull.Retry, cause); err != nil {
			return err
		}
	}
}

// SendChunkHeader writes the chunk length as a raw header frame.
func (s *Session) SendChunkHeader(n int) error {
	hdr, err := EncodeChunkHeader(n, s.cfg.HeaderWidth)
	if err != nil {
		return err
	}
	return s.tr.Write(hdr, false)
}

// SendSample writes one payload byte.
func (s *Session) SendSample(b byte) error {
	s.one[0] = b
	return s.tr.Write(s.one[:], false)
}

// Purge discards stale device input.
func (s *Session) Purge() error {
	return s.tr.Purge()
}

func retryReason(err error) string {
	if errors.Is(err, ErrReadTimeout) {
		return "timeout"
	}
	return "mismatch"
}
