// Package host runs the streamer: playlist, device handshake, then the
// streaming engine, with an optional status server alongside.
package host

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/danmuck/audifi/internal/logging"
	"github.com/danmuck/audifi/internal/playlist"
	"github.com/danmuck/audifi/internal/protocol/frame"
	"github.com/danmuck/audifi/internal/protocol/session"
	"github.com/danmuck/audifi/internal/serialport"
	"github.com/danmuck/audifi/internal/server"
	"github.com/danmuck/audifi/internal/stream"
	"github.com/rs/zerolog"
)

var (
	ErrPlaylistRequired = errors.New("host: playlist path required")
	ErrChannelRequired  = errors.New("host: channel required")
)

// ServiceConfig configures one streaming run.
type ServiceConfig struct {
	Name         string
	PlaylistPath string
	Playlist     playlist.Limits
	StatusAddr   string
	CorsOrigins  []string
	Serial       serialport.Config
	Transport    frame.Config
	Session      session.Config
	Stream       stream.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:         "audifi",
		PlaylistPath: playlist.DefaultFilename,
		Playlist:     playlist.DefaultLimits(),
		Serial:       serialport.DefaultConfig(),
		Transport:    frame.DefaultConfig(),
		Session:      session.DefaultConfig(),
		Stream:       stream.DefaultConfig(),
	}
}

// Validate checks everything except the serial port, which only Run needs.
func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.PlaylistPath) == "" {
		return ErrPlaylistRequired
	}
	if err := c.Session.WithDefaults().Validate(); err != nil {
		return err
	}
	return c.Stream.Validate()
}

// Service owns one run over one device channel.
type Service struct {
	cfg   ServiceConfig
	clock frame.Clock
	log   zerolog.Logger

	mu     sync.RWMutex
	sess   *session.Session
	engine *stream.Engine
}

func NewService(cfg ServiceConfig) *Service {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "audifi"
	}
	return &Service{
		cfg:   cfg,
		clock: frame.SystemClock{},
		log:   logging.Component("host"),
	}
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Run opens the configured serial port and streams until the playlist ends or
// the process receives SIGINT/SIGTERM.
func (s *Service) Run() (stream.Summary, error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.cfg.Validate(); err != nil {
		return stream.Summary{}, err
	}
	port, err := serialport.Open(s.cfg.Serial)
	if err != nil {
		return stream.Summary{}, err
	}
	defer func() {
		if err := port.Close(); err != nil {
			s.log.Warn().Err(err).Str("port", port.Name()).Msg("serial port close failed")
		}
	}()
	return s.RunContext(ctx, port)
}

// RunContext streams the playlist over ch. An empty playlist returns without
// touching the channel.
func (s *Service) RunContext(ctx context.Context, ch frame.Channel) (stream.Summary, error) {
	if ch == nil {
		return stream.Summary{}, ErrChannelRequired
	}
	if err := s.cfg.Validate(); err != nil {
		return stream.Summary{}, err
	}

	entries, err := playlist.Load(s.cfg.PlaylistPath, s.cfg.Playlist)
	if err != nil {
		return stream.Summary{}, err
	}
	s.log.Info().Str("playlist", s.cfg.PlaylistPath).Int("entries", len(entries)).Msg("playlist loaded")
	if len(entries) == 0 {
		s.log.Warn().Msg("playlist is empty; nothing to stream")
		return stream.Summary{}, nil
	}

	tr, err := frame.NewTransport(ch, s.cfg.Transport, s.clock)
	if err != nil {
		return stream.Summary{}, err
	}
	sess, err := session.New(tr, s.cfg.Session)
	if err != nil {
		return stream.Summary{}, err
	}
	engine, err := stream.NewEngine(sess, s.cfg.Stream)
	if err != nil {
		return stream.Summary{}, err
	}
	s.mu.Lock()
	s.sess, s.engine = sess, engine
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	serverErr, err := s.startStatusServer(runCtx)
	if err != nil {
		return stream.Summary{}, err
	}

	if err := sess.AwaitReady(runCtx); err != nil {
		return stream.Summary{}, fmt.Errorf("host: handshake: %w", err)
	}
	sum, err := engine.Run(runCtx, entries)
	s.log.Info().
		Int("tracks", sum.Tracks).
		Int("streamed", sum.Streamed).
		Int("skipped", sum.Skipped).
		Int("chunks", sum.Chunks).
		Int("payload_bytes", sum.PayloadBytes).
		Msg("stream run finished")
	if err != nil {
		return sum, err
	}

	cancel()
	if serr := <-serverErr; serr != nil {
		s.log.Warn().Err(serr).Msg("status server exited with error")
	}
	return sum, nil
}

// startStatusServer binds the status address and serves until ctx ends. A
// bind failure is returned before the device is touched. The channel yields
// the server's exit error, or nil immediately when no address is configured.
func (s *Service) startStatusServer(ctx context.Context) (<-chan error, error) {
	errc := make(chan error, 1)
	if strings.TrimSpace(s.cfg.StatusAddr) == "" {
		errc <- nil
		return errc, nil
	}
	srv := server.New(s.cfg.Name, s.cfg.StatusAddr, s.cfg.CorsOrigins, s)
	ln, err := srv.Listen()
	if err != nil {
		return nil, fmt.Errorf("host: status server: %w", err)
	}
	go func() {
		errc <- srv.ServeListener(ctx, ln)
	}()
	return errc, nil
}

// Ready reports whether the device has answered the handshake.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess != nil && s.sess.Ready()
}

// Status returns the engine snapshot, or an idle status before a run starts.
func (s *Service) Status() stream.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return stream.Status{State: stream.StateIdle}
	}
	return s.engine.Status()
}
