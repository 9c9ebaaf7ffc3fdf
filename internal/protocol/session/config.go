package session

import (
	"fmt"
	"time"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// RetryPolicy bounds one retry loop. Zero MaxAttempts and MaxElapsed mean the
// loop never gives up.
type RetryPolicy struct {
	Backoff     BackoffConfig
	MaxAttempts int
	MaxElapsed  time.Duration
}

// FixedDelay is an unbounded policy that waits d between attempts.
func FixedDelay(d time.Duration) RetryPolicy {
	return RetryPolicy{
		Backoff: BackoffConfig{InitialDelay: d, Multiplier: 1.0, MaxDelay: d},
	}
}

// Unbounded reports whether the policy can block forever.
func (p RetryPolicy) Unbounded() bool {
	return p.MaxAttempts <= 0 && p.MaxElapsed <= 0
}

// HandshakeConfig times the READY?/YES! exchange.
type HandshakeConfig struct {
	SettleDelay time.Duration
	Mismatch    RetryPolicy
	Timeout     RetryPolicy
}

// PullConfig times the wait for RD? requests.
type PullConfig struct {
	Retry RetryPolicy
}

// Config defines protocol timing and header layout.
type Config struct {
	Handshake   HandshakeConfig
	Pull        PullConfig
	HeaderWidth int
}

func DefaultConfig() Config {
	return Config{
		Handshake: HandshakeConfig{
			SettleDelay: 500 * time.Millisecond,
			Mismatch:    FixedDelay(500 * time.Millisecond),
			Timeout:     FixedDelay(1000 * time.Millisecond),
		},
		Pull: PullConfig{
			Retry: FixedDelay(500 * time.Millisecond),
		},
		HeaderWidth: HeaderWidthLegacy,
	}
}

// WithDefaults fills zero-valued fields. A policy with no delay configured
// takes the default backoff and keeps its own bounds.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.HeaderWidth == 0 {
		c.HeaderWidth = d.HeaderWidth
	}
	if c.Handshake.SettleDelay == 0 {
		c.Handshake.SettleDelay = d.Handshake.SettleDelay
	}
	c.Handshake.Mismatch = c.Handshake.Mismatch.withBackoff(d.Handshake.Mismatch.Backoff)
	c.Handshake.Timeout = c.Handshake.Timeout.withBackoff(d.Handshake.Timeout.Backoff)
	c.Pull.Retry = c.Pull.Retry.withBackoff(d.Pull.Retry.Backoff)
	return c
}

func (p RetryPolicy) withBackoff(def BackoffConfig) RetryPolicy {
	if p.Backoff.InitialDelay == 0 && p.Backoff.MaxDelay == 0 {
		p.Backoff = def
	}
	return p
}

func (c Config) Validate() error {
	if c.HeaderWidth != HeaderWidthLegacy && c.HeaderWidth != HeaderWidthReserved {
		return fmt.Errorf("%w: %d", ErrInvalidHeaderWidth, c.HeaderWidth)
	}
	if c.Handshake.SettleDelay < 0 {
		return fmt.Errorf("session: negative handshake settle delay")
	}
	for name, p := range map[string]RetryPolicy{
		"handshake mismatch": c.Handshake.Mismatch,
		"handshake timeout":  c.Handshake.Timeout,
		"pull":               c.Pull.Retry,
	} {
		if p.Backoff.InitialDelay < 0 || p.Backoff.MaxDelay < 0 {
			return fmt.Errorf("session: %s retry has negative delay", name)
		}
		if p.MaxAttempts < 0 || p.MaxElapsed < 0 {
			return fmt.Errorf("session: %s retry has negative bound", name)
		}
	}
	return nil
}
