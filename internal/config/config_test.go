package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/audifi/internal/host"
	"github.com/danmuck/audifi/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyKeepsDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := host.DefaultServiceConfig()
	if cfg.Name != def.Name || cfg.PlaylistPath != def.PlaylistPath {
		t.Fatalf("unexpected identity name=%q playlist=%q", cfg.Name, cfg.PlaylistPath)
	}
	if cfg.Serial.BaudRate != 500000 || cfg.Serial.PollInterval != 20*time.Millisecond {
		t.Fatalf("unexpected serial defaults %+v", cfg.Serial)
	}
	if cfg.Transport.ReadTimeout != 2*time.Second || cfg.Transport.Capacity != 1024 {
		t.Fatalf("unexpected transport defaults %+v", cfg.Transport)
	}
	if cfg.Session.Handshake.Timeout.Backoff.InitialDelay != time.Second {
		t.Fatalf("unexpected timeout delay %v", cfg.Session.Handshake.Timeout.Backoff.InitialDelay)
	}
	if cfg.Stream.MaxChunk != 11025 || cfg.Session.HeaderWidth != 2 {
		t.Fatalf("unexpected stream defaults %+v width=%d", cfg.Stream, cfg.Session.HeaderWidth)
	}
}

func TestLoadOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
name = "studio"
playlist = "lists/morning.txt"
status_addr = "127.0.0.1:9300"
cors_origins = [" http://dash.local ", ""]

[serial]
port = "/dev/ttyACM1"
baud_rate = 115200
poll_interval = "5ms"

[transport]
read_timeout = "3s"

[handshake]
mismatch_delay = "250ms"
max_attempts = 8
max_elapsed = "1m"

[pull]
retry_delay = "100ms"
max_attempts = 3

[stream]
max_chunk = 4096
header_width = 4
max_playlist_entries = 25
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "studio" || cfg.StatusAddr != "127.0.0.1:9300" {
		t.Fatalf("unexpected top-level fields %+v", cfg)
	}
	if want := filepath.Join(filepath.Dir(path), "lists", "morning.txt"); cfg.PlaylistPath != want {
		t.Fatalf("playlist=%q want=%q", cfg.PlaylistPath, want)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://dash.local" {
		t.Fatalf("unexpected cors origins %q", cfg.CorsOrigins)
	}
	if cfg.Serial.Port != "/dev/ttyACM1" || cfg.Serial.BaudRate != 115200 || cfg.Serial.PollInterval != 5*time.Millisecond {
		t.Fatalf("unexpected serial %+v", cfg.Serial)
	}
	if cfg.Transport.ReadTimeout != 3*time.Second {
		t.Fatalf("unexpected read timeout %v", cfg.Transport.ReadTimeout)
	}
	hs := cfg.Session.Handshake
	if hs.Mismatch.Backoff.InitialDelay != 250*time.Millisecond || hs.Timeout.Backoff.InitialDelay != time.Second {
		t.Fatalf("unexpected handshake delays %+v", hs)
	}
	if hs.Mismatch.MaxAttempts != 8 || hs.Timeout.MaxAttempts != 8 || hs.Timeout.MaxElapsed != time.Minute {
		t.Fatalf("unexpected handshake bounds %+v", hs)
	}
	if cfg.Session.Pull.Retry.Backoff.InitialDelay != 100*time.Millisecond || cfg.Session.Pull.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected pull policy %+v", cfg.Session.Pull.Retry)
	}
	if cfg.Stream.MaxChunk != 4096 || cfg.Session.HeaderWidth != 4 || cfg.Playlist.MaxEntries != 25 {
		t.Fatalf("unexpected stream overrides %+v", cfg.Stream)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad duration":  "[transport]\nread_timeout = \"soon\"\n",
		"unknown key":   "volume = 11\n",
		"header width":  "[stream]\nheader_width = 3\n",
		"parity":        "[serial]\nparity = \"sideways\"\n",
		"slow poll":     "[serial]\npoll_interval = \"5s\"\n",
		"negative wait": "[pull]\nretry_delay = \"-1s\"\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	_, err := Load(writeConfig(t, "volume = 11\n"))
	if !errors.Is(err, ErrUnknownKeys) || !strings.Contains(err.Error(), "volume") {
		t.Fatalf("expected ErrUnknownKeys naming the key, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load failure, got %v", err)
	}
}

func TestTemplateLoadsBack(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	def := host.DefaultServiceConfig()
	if cfg.Serial.Port != "/dev/ttyUSB0" || cfg.Serial.BaudRate != def.Serial.BaudRate {
		t.Fatalf("unexpected serial %+v", cfg.Serial)
	}
	if cfg.Session.Handshake.SettleDelay != def.Session.Handshake.SettleDelay ||
		cfg.Session.Pull.Retry.Backoff.InitialDelay != def.Session.Pull.Retry.Backoff.InitialDelay {
		t.Fatalf("unexpected session %+v", cfg.Session)
	}
	if cfg.Stream != def.Stream || cfg.Playlist != def.Playlist {
		t.Fatalf("stream=%+v playlist=%+v", cfg.Stream, cfg.Playlist)
	}
	if !cfg.Session.Handshake.Mismatch.Unbounded() || !cfg.Session.Pull.Retry.Unbounded() {
		t.Fatalf("template policies should stay unbounded")
	}
}
