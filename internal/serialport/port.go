// Package serialport opens the device link over a local serial port.
package serialport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/audifi/internal/logging"
	"github.com/danmuck/audifi/internal/protocol/frame"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	DefaultBaudRate     = 500000
	DefaultDataBits     = 8
	DefaultParity       = "none"
	DefaultStopBits     = 1
	DefaultPollInterval = 20 * time.Millisecond
)

var (
	ErrOpen          = errors.New("serialport: open failed")
	ErrPortRequired  = errors.New("serialport: port name required")
	ErrInvalidConfig = errors.New("serialport: invalid config")
)

// Config selects and configures the port.
type Config struct {
	Port         string
	BaudRate     int
	DataBits     int
	Parity       string
	StopBits     int
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaudRate:     DefaultBaudRate,
		DataBits:     DefaultDataBits,
		Parity:       DefaultParity,
		StopBits:     DefaultStopBits,
		PollInterval: DefaultPollInterval,
	}
}

// Mode maps the config onto the driver's mode settings.
func (c Config) Mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
	}
	if c.BaudRate <= 0 {
		return nil, fmt.Errorf("%w: baud rate %d", ErrInvalidConfig, c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return nil, fmt.Errorf("%w: data bits %d", ErrInvalidConfig, c.DataBits)
	}

	switch strings.ToLower(strings.TrimSpace(c.Parity)) {
	case "", "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("%w: parity %q", ErrInvalidConfig, c.Parity)
	}

	switch c.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: stop bits %d", ErrInvalidConfig, c.StopBits)
	}
	return mode, nil
}

// Validate checks the settings Open needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return ErrPortRequired
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval %v", ErrInvalidConfig, c.PollInterval)
	}
	_, err := c.Mode()
	return err
}

var _ frame.Channel = (*Port)(nil)

// Port is an open serial link. Reads return 0, nil when nothing arrives within
// the poll interval so the caller can apply its own deadline.
type Port struct {
	name string
	port serial.Port
}

func Open(cfg Config) (*Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	p, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrOpen, cfg.Port, err)
	}
	if err := p.SetReadTimeout(cfg.PollInterval); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w (%s): set read timeout: %v", ErrOpen, cfg.Port, err)
	}

	log := logging.Component("serialport")
	log.Info().
		Str("port", cfg.Port).
		Int("baud", cfg.BaudRate).
		Dur("poll", cfg.PollInterval).
		Msg("serial port open")
	return &Port{name: cfg.Port, port: p}, nil
}

func (p *Port) Name() string {
	return p.name
}

func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *Port) ResetInputBuffer() error {
	return p.port.ResetInputBuffer()
}

func (p *Port) Close() error {
	return p.port.Close()
}

// Info describes one port found on the host.
type Info struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

func (i Info) String() string {
	if !i.USB {
		return i.Name
	}
	return fmt.Sprintf("%s (usb %s:%s %s)", i.Name, i.VID, i.PID, strings.TrimSpace(i.Product))
}

// List enumerates serial ports, with USB details where the platform has them.
func List() ([]Info, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil && len(details) > 0 {
		out := make([]Info, 0, len(details))
		for _, d := range details {
			out = append(out, Info{
				Name:    d.Name,
				USB:     d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Serial:  d.SerialNumber,
				Product: d.Product,
			})
		}
		return out, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: list ports: %w", err)
	}
	out := make([]Info, 0, len(names))
	for _, name := range names {
		out = append(out, Info{Name: name})
	}
	return out, nil
}
