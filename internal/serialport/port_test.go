package serialport

import (
	"errors"
	"testing"

	"github.com/danmuck/audifi/internal/testutil/testlog"
	"go.bug.st/serial"
)

func TestDefaultMode(t *testing.T) {
	testlog.Start(t)
	mode, err := DefaultConfig().Mode()
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	if mode.BaudRate != 500000 || mode.DataBits != 8 {
		t.Fatalf("unexpected mode %+v", mode)
	}
	if mode.Parity != serial.NoParity || mode.StopBits != serial.OneStopBit {
		t.Fatalf("expected 8N1, got parity=%v stop=%v", mode.Parity, mode.StopBits)
	}
}

func TestModeMapping(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Parity = "Even"
	cfg.StopBits = 2
	mode, err := cfg.Mode()
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	if mode.Parity != serial.EvenParity || mode.StopBits != serial.TwoStopBits {
		t.Fatalf("unexpected mode %+v", mode)
	}

	cfg.Parity = "sideways"
	if _, err := cfg.Mode(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.DataBits = 9
	if _, err := cfg.Mode(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for data bits, got %v", err)
	}
}

func TestValidateRequiresPort(t *testing.T) {
	testlog.Start(t)
	if err := DefaultConfig().Validate(); !errors.Is(err, ErrPortRequired) {
		t.Fatalf("expected ErrPortRequired, got %v", err)
	}
	cfg := DefaultConfig()
	cfg.Port = "/dev/null-port"
	cfg.PollInterval = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOpenMissingPort(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Port = "/dev/audifi-test-does-not-exist"
	if _, err := Open(cfg); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestInfoString(t *testing.T) {
	testlog.Start(t)
	if got := (Info{Name: "/dev/ttyS0"}).String(); got != "/dev/ttyS0" {
		t.Fatalf("got=%q", got)
	}
	got := (Info{Name: "/dev/ttyUSB0", USB: true, VID: "0403", PID: "6001", Product: "FT232R "}).String()
	if got != "/dev/ttyUSB0 (usb 0403:6001 FT232R)" {
		t.Fatalf("got=%q", got)
	}
}
