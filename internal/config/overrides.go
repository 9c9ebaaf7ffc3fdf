package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/audifi/internal/host"
	"github.com/danmuck/audifi/internal/protocol/session"
)

func apply(cfg host.ServiceConfig, raw File, meta toml.MetaData) (host.ServiceConfig, error) {
	if meta.IsDefined("name") {
		if v := strings.TrimSpace(raw.Name); v != "" {
			cfg.Name = v
		}
	}
	if meta.IsDefined("playlist") {
		cfg.PlaylistPath = strings.TrimSpace(raw.Playlist)
	}
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	// [serial]
	if meta.IsDefined("serial", "port") {
		cfg.Serial.Port = strings.TrimSpace(raw.Serial.Port)
	}
	if meta.IsDefined("serial", "baud_rate") {
		cfg.Serial.BaudRate = raw.Serial.BaudRate
	}
	if meta.IsDefined("serial", "data_bits") {
		cfg.Serial.DataBits = raw.Serial.DataBits
	}
	if meta.IsDefined("serial", "parity") {
		cfg.Serial.Parity = strings.TrimSpace(raw.Serial.Parity)
	}
	if meta.IsDefined("serial", "stop_bits") {
		cfg.Serial.StopBits = raw.Serial.StopBits
	}
	if err := setDuration(meta, &cfg.Serial.PollInterval, raw.Serial.PollInterval, "serial", "poll_interval"); err != nil {
		return cfg, err
	}

	// [transport]
	if meta.IsDefined("transport", "buffer_capacity") {
		cfg.Transport.Capacity = raw.Transport.BufferCapacity
	}
	if err := setDuration(meta, &cfg.Transport.ReadTimeout, raw.Transport.ReadTimeout, "transport", "read_timeout"); err != nil {
		return cfg, err
	}

	// [handshake]
	hs := &cfg.Session.Handshake
	if err := setDuration(meta, &hs.SettleDelay, raw.Handshake.SettleDelay, "handshake", "settle_delay"); err != nil {
		return cfg, err
	}
	if err := setDelay(meta, &hs.Mismatch, raw.Handshake.MismatchDelay, "handshake", "mismatch_delay"); err != nil {
		return cfg, err
	}
	if err := setDelay(meta, &hs.Timeout, raw.Handshake.TimeoutDelay, "handshake", "timeout_delay"); err != nil {
		return cfg, err
	}
	for _, p := range []*session.RetryPolicy{&hs.Mismatch, &hs.Timeout} {
		if meta.IsDefined("handshake", "backoff_multiplier") {
			p.Backoff.Multiplier = raw.Handshake.BackoffMultiplier
		}
		if err := setDuration(meta, &p.Backoff.MaxDelay, raw.Handshake.BackoffMaxDelay, "handshake", "backoff_max_delay"); err != nil {
			return cfg, err
		}
		if meta.IsDefined("handshake", "backoff_jitter") {
			p.Backoff.Jitter = raw.Handshake.BackoffJitter
		}
		if meta.IsDefined("handshake", "max_attempts") {
			p.MaxAttempts = raw.Handshake.MaxAttempts
		}
		if err := setDuration(meta, &p.MaxElapsed, raw.Handshake.MaxElapsed, "handshake", "max_elapsed"); err != nil {
			return cfg, err
		}
	}

	// [pull]
	pull := &cfg.Session.Pull.Retry
	if err := setDelay(meta, pull, raw.Pull.RetryDelay, "pull", "retry_delay"); err != nil {
		return cfg, err
	}
	if meta.IsDefined("pull", "max_attempts") {
		pull.MaxAttempts = raw.Pull.MaxAttempts
	}
	if err := setDuration(meta, &pull.MaxElapsed, raw.Pull.MaxElapsed, "pull", "max_elapsed"); err != nil {
		return cfg, err
	}

	// [stream]
	if meta.IsDefined("stream", "header_len") {
		cfg.Stream.HeaderLen = raw.Stream.HeaderLen
	}
	if meta.IsDefined("stream", "max_chunk") {
		cfg.Stream.MaxChunk = raw.Stream.MaxChunk
	}
	if meta.IsDefined("stream", "header_width") {
		cfg.Session.HeaderWidth = raw.Stream.HeaderWidth
	}
	if meta.IsDefined("stream", "max_track_bytes") {
		cfg.Stream.MaxTrackBytes = raw.Stream.MaxTrackBytes
	}
	if meta.IsDefined("stream", "max_playlist_entries") {
		cfg.Playlist.MaxEntries = raw.Stream.MaxPlaylistEntries
	}
	if meta.IsDefined("stream", "max_path_length") {
		cfg.Playlist.MaxPathLength = raw.Stream.MaxPathLength
	}
	return cfg, nil
}

func setDuration(meta toml.MetaData, dst *time.Duration, raw string, key ...string) error {
	if !meta.IsDefined(key...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse %s: %w", strings.Join(key, "."), err)
	}
	if d < 0 {
		return fmt.Errorf("parse %s: negative duration %v", strings.Join(key, "."), d)
	}
	*dst = d
	return nil
}

// setDelay replaces the policy's base delay and keeps its max delay at least as
// large.
func setDelay(meta toml.MetaData, p *session.RetryPolicy, raw string, key ...string) error {
	if !meta.IsDefined(key...) {
		return nil
	}
	var d time.Duration
	if err := setDuration(meta, &d, raw, key...); err != nil {
		return err
	}
	p.Backoff.InitialDelay = d
	if p.Backoff.MaxDelay < d {
		p.Backoff.MaxDelay = d
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
