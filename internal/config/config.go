// Package config loads the streamer's TOML configuration.
//
// Every key is optional. Keys that are present override the defaults from
// host.DefaultServiceConfig; durations are Go duration strings.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/audifi/internal/host"
)

var ErrUnknownKeys = errors.New("config: unknown keys")

// File mirrors the on-disk layout.
type File struct {
	Name        string           `toml:"name"`
	Playlist    string           `toml:"playlist"`
	StatusAddr  string           `toml:"status_addr"`
	CorsOrigins []string         `toml:"cors_origins"`
	Serial      SerialSection    `toml:"serial"`
	Transport   TransportSection `toml:"transport"`
	Handshake   HandshakeSection `toml:"handshake"`
	Pull        PullSection      `toml:"pull"`
	Stream      StreamSection    `toml:"stream"`
}

type SerialSection struct {
	Port         string `toml:"port"`
	BaudRate     int    `toml:"baud_rate"`
	DataBits     int    `toml:"data_bits"`
	Parity       string `toml:"parity"`
	StopBits     int    `toml:"stop_bits"`
	PollInterval string `toml:"poll_interval"`
}

type TransportSection struct {
	BufferCapacity int    `toml:"buffer_capacity"`
	ReadTimeout    string `toml:"read_timeout"`
}

type HandshakeSection struct {
	SettleDelay       string  `toml:"settle_delay"`
	MismatchDelay     string  `toml:"mismatch_delay"`
	TimeoutDelay      string  `toml:"timeout_delay"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	BackoffMaxDelay   string  `toml:"backoff_max_delay"`
	BackoffJitter     bool    `toml:"backoff_jitter"`
	MaxAttempts       int     `toml:"max_attempts"`
	MaxElapsed        string  `toml:"max_elapsed"`
}

type PullSection struct {
	RetryDelay  string `toml:"retry_delay"`
	MaxAttempts int    `toml:"max_attempts"`
	MaxElapsed  string `toml:"max_elapsed"`
}

type StreamSection struct {
	HeaderLen          int   `toml:"header_len"`
	MaxChunk           int   `toml:"max_chunk"`
	HeaderWidth        int   `toml:"header_width"`
	MaxTrackBytes      int64 `toml:"max_track_bytes"`
	MaxPlaylistEntries int   `toml:"max_playlist_entries"`
	MaxPathLength      int   `toml:"max_path_length"`
}

// Load decodes path over the defaults and validates the result. A relative
// playlist path resolves against the config file's directory.
func Load(path string) (host.ServiceConfig, error) {
	var raw File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return host.ServiceConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return host.ServiceConfig{}, fmt.Errorf("config parse failed (%s): %w: %s", path, ErrUnknownKeys, strings.Join(keys, ", "))
	}

	cfg, err := apply(host.DefaultServiceConfig(), raw, meta)
	if err != nil {
		return host.ServiceConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if meta.IsDefined("playlist") && !filepath.IsAbs(cfg.PlaylistPath) {
		cfg.PlaylistPath = filepath.Join(filepath.Dir(path), cfg.PlaylistPath)
	}
	if err := Validate(cfg); err != nil {
		return host.ServiceConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks a service config. The serial port name is not required here
// since the CLI may supply it.
func Validate(cfg host.ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := cfg.Serial.Mode(); err != nil {
		return err
	}
	if cfg.Serial.PollInterval <= 0 {
		return fmt.Errorf("serial poll_interval must be positive")
	}
	if cfg.Transport.ReadTimeout < 0 || cfg.Transport.Capacity < 0 {
		return fmt.Errorf("transport settings must not be negative")
	}
	if cfg.Transport.ReadTimeout > 0 && cfg.Serial.PollInterval > cfg.Transport.ReadTimeout {
		return fmt.Errorf("serial poll_interval %v exceeds transport read_timeout %v",
			cfg.Serial.PollInterval, cfg.Transport.ReadTimeout)
	}
	return nil
}
