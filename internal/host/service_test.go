package host

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/audifi/internal/playlist"
	"github.com/danmuck/audifi/internal/protocol/session"
	"github.com/danmuck/audifi/internal/stream"
	"github.com/danmuck/audifi/internal/testutil/serialtest"
	"github.com/danmuck/audifi/internal/testutil/testlog"
)

func writePlaylist(t *testing.T, dir string, entries ...string) string {
	t.Helper()
	path := filepath.Join(dir, playlist.DefaultFilename)
	if err := os.WriteFile(path, []byte(strings.Join(entries, "\n")), 0o600); err != nil {
		t.Fatalf("write playlist: %v", err)
	}
	return path
}

func newTestService(t *testing.T, cfg ServiceConfig) (*Service, *serialtest.Channel, *serialtest.Device) {
	t.Helper()
	clock := serialtest.NewClock()
	ch := serialtest.NewChannel(clock)
	dev := serialtest.NewDevice(ch)
	svc := NewService(cfg)
	svc.clock = clock
	return svc, ch, dev
}

func TestRunContextStreamsPlaylist(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	serialtest.WriteTrack(t, dir, "one.wav", 10044)
	serialtest.WriteTrack(t, dir, "two.wav", 20)
	serialtest.WriteTrack(t, dir, "three.wav", 144)

	cfg := DefaultServiceConfig()
	cfg.PlaylistPath = writePlaylist(t, dir, "one.wav", "two.wav", "missing.wav", "three.wav")
	svc, ch, dev := newTestService(t, cfg)

	if svc.Status().State != stream.StateIdle || svc.Ready() {
		t.Fatalf("expected idle, not-ready service before run")
	}

	sum, err := svc.RunContext(context.Background(), ch)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Tracks != 4 || sum.Streamed != 2 || sum.Skipped != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.PayloadBytes != 5000+50 {
		t.Fatalf("payload=%d want=5050", sum.PayloadBytes)
	}

	tr, err := serialtest.ParseTranscript(ch.Writes(), session.HeaderWidthLegacy)
	if err != nil {
		t.Fatalf("parse transcript: %v", err)
	}
	if tr.ReadyQueries != 1 || dev.Queries != 1 {
		t.Fatalf("expected one handshake, queries=%d device=%d", tr.ReadyQueries, dev.Queries)
	}
	if tr.Acks != 2 {
		t.Fatalf("acks=%d want=2", tr.Acks)
	}
	if !svc.Ready() || svc.Status().State != stream.StateDone {
		t.Fatalf("unexpected final state ready=%v status=%+v", svc.Ready(), svc.Status())
	}
}

func TestRunContextEmptyPlaylist(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultServiceConfig()
	cfg.PlaylistPath = writePlaylist(t, t.TempDir(), "", "")
	svc, ch, _ := newTestService(t, cfg)

	sum, err := svc.RunContext(context.Background(), ch)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum != (stream.Summary{}) || ch.Ops() != 0 {
		t.Fatalf("empty playlist should not touch the channel, summary=%+v ops=%d", sum, ch.Ops())
	}
}

func TestRunContextHandshakeGivesUp(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	serialtest.WriteTrack(t, dir, "one.wav", 100)
	cfg := DefaultServiceConfig()
	cfg.PlaylistPath = writePlaylist(t, dir, "one.wav")
	cfg.Session.Handshake.Mismatch.MaxAttempts = 2
	svc, ch, dev := newTestService(t, cfg)
	dev.ReplyReady([]byte("NO!!"), []byte("NO!!"), []byte("NO!!"))

	_, err := svc.RunContext(context.Background(), ch)
	if !errors.Is(err, session.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if svc.Ready() {
		t.Fatalf("service should not report ready")
	}
}

func TestRunContextMissingPlaylist(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultServiceConfig()
	cfg.PlaylistPath = filepath.Join(t.TempDir(), "nope.txt")
	svc, ch, _ := newTestService(t, cfg)

	if _, err := svc.RunContext(context.Background(), ch); !errors.Is(err, playlist.ErrOpen) {
		t.Fatalf("expected playlist.ErrOpen, got %v", err)
	}
	if ch.Ops() != 0 {
		t.Fatalf("ops=%d want=0", ch.Ops())
	}
}

func TestRunContextRequiresChannel(t *testing.T) {
	testlog.Start(t)
	svc := NewService(DefaultServiceConfig())
	if _, err := svc.RunContext(context.Background(), nil); !errors.Is(err, ErrChannelRequired) {
		t.Fatalf("expected ErrChannelRequired, got %v", err)
	}
}

func TestServiceConfigValidate(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultServiceConfig()
	cfg.PlaylistPath = " "
	if err := cfg.Validate(); !errors.Is(err, ErrPlaylistRequired) {
		t.Fatalf("expected ErrPlaylistRequired, got %v", err)
	}
	cfg = DefaultServiceConfig()
	cfg.Session.HeaderWidth = 3
	if err := cfg.Validate(); !errors.Is(err, session.ErrInvalidHeaderWidth) {
		t.Fatalf("expected ErrInvalidHeaderWidth, got %v", err)
	}
	cfg = DefaultServiceConfig()
	cfg.Stream.MaxChunk = 0
	if err := cfg.Validate(); !errors.Is(err, stream.ErrInvalidConfig) {
		t.Fatalf("expected stream.ErrInvalidConfig, got %v", err)
	}
}

func TestRunContextWithStatusServer(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	serialtest.WriteTrack(t, dir, "one.wav", 300)
	cfg := DefaultServiceConfig()
	cfg.PlaylistPath = writePlaylist(t, dir, "one.wav")
	cfg.StatusAddr = "127.0.0.1:0"
	svc, ch, _ := newTestService(t, cfg)

	sum, err := svc.RunContext(context.Background(), ch)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Streamed != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestRunContextStatusAddrInUse(t *testing.T) {
	testlog.Start(t)
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen in this environment: %v", err)
	}
	defer taken.Close()

	dir := t.TempDir()
	serialtest.WriteTrack(t, dir, "one.wav", 300)
	cfg := DefaultServiceConfig()
	cfg.PlaylistPath = writePlaylist(t, dir, "one.wav")
	cfg.StatusAddr = taken.Addr().String()
	svc, ch, _ := newTestService(t, cfg)

	sum, err := svc.RunContext(context.Background(), ch)
	if err == nil {
		t.Fatalf("expected bind failure, streamed=%d", sum.Streamed)
	}
	if ch.Ops() != 0 || sum.Streamed != 0 {
		t.Fatalf("device should not be touched, ops=%d summary=%+v", ch.Ops(), sum)
	}
}
