package config

import (
	"fmt"
	"os"

	"github.com/danmuck/audifi/internal/host"
	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "audifi.toml"

// DefaultFile renders the default service config in file form.
func DefaultFile() File {
	cfg := host.DefaultServiceConfig()
	hs := cfg.Session.Handshake
	return File{
		Name:        cfg.Name,
		Playlist:    cfg.PlaylistPath,
		StatusAddr:  "",
		CorsOrigins: []string{},
		Serial: SerialSection{
			Port:         "/dev/ttyUSB0",
			BaudRate:     cfg.Serial.BaudRate,
			DataBits:     cfg.Serial.DataBits,
			Parity:       cfg.Serial.Parity,
			StopBits:     cfg.Serial.StopBits,
			PollInterval: cfg.Serial.PollInterval.String(),
		},
		Transport: TransportSection{
			BufferCapacity: cfg.Transport.Capacity,
			ReadTimeout:    cfg.Transport.ReadTimeout.String(),
		},
		Handshake: HandshakeSection{
			SettleDelay:       hs.SettleDelay.String(),
			MismatchDelay:     hs.Mismatch.Backoff.InitialDelay.String(),
			TimeoutDelay:      hs.Timeout.Backoff.InitialDelay.String(),
			BackoffMultiplier: hs.Mismatch.Backoff.Multiplier,
			BackoffMaxDelay:   hs.Timeout.Backoff.MaxDelay.String(),
			BackoffJitter:     hs.Mismatch.Backoff.Jitter,
			MaxAttempts:       hs.Mismatch.MaxAttempts,
			MaxElapsed:        hs.Mismatch.MaxElapsed.String(),
		},
		Pull: PullSection{
			RetryDelay:  cfg.Session.Pull.Retry.Backoff.InitialDelay.String(),
			MaxAttempts: cfg.Session.Pull.Retry.MaxAttempts,
			MaxElapsed:  cfg.Session.Pull.Retry.MaxElapsed.String(),
		},
		Stream: StreamSection{
			HeaderLen:          cfg.Stream.HeaderLen,
			MaxChunk:           cfg.Stream.MaxChunk,
			HeaderWidth:        cfg.Session.HeaderWidth,
			MaxTrackBytes:      cfg.Stream.MaxTrackBytes,
			MaxPlaylistEntries: cfg.Playlist.MaxEntries,
			MaxPathLength:      cfg.Playlist.MaxPathLength,
		},
	}
}

func Template() (string, error) {
	out, err := toml.Marshal(DefaultFile())
	if err != nil {
		return "", fmt.Errorf("config template marshal failed: %w", err)
	}
	return string(out), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
