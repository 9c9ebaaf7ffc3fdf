package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/audifi/internal/host"
	"github.com/danmuck/audifi/internal/logging"
	"github.com/danmuck/audifi/internal/serialport"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

const version = "0.1.0"

func main() {
	var opts options
	flag.StringVarP(&opts.configPath, "config", "c", "", "path to config file (default ./audifi.toml when present)")
	flag.StringVarP(&opts.port, "port", "p", "", "serial port of the playback device")
	flag.StringVar(&opts.playlist, "playlist", "", "playlist file, one track path per line")
	flag.StringVar(&opts.statusAddr, "status-addr", "", "serve /health, /ready, /status and /metrics on <addr>")
	flag.IntVar(&opts.baud, "baud", 0, "serial baud rate")
	flag.IntVar(&opts.headerWidth, "header-width", 0, "chunk header width in bytes (2 or 4)")
	listPorts := flag.Bool("list-ports", false, "list serial ports and exit")
	showVersion := flag.BoolP("version", "v", false, "print version and exit")
	flag.Parse()

	logging.ConfigureRuntime()

	if *showVersion {
		fmt.Println("audifictl", version)
		return
	}
	if *listPorts {
		if err := printPorts(); err != nil {
			fmt.Fprintf(os.Stderr, "audifictl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := resolveServiceConfig(opts, flag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audifictl: %v\n", err)
		os.Exit(1)
	}
	if cfg.Serial.Port == "" {
		fmt.Fprintln(os.Stderr, "audifictl: no serial port given; use --port or [serial].port")
		_ = printPorts()
		os.Exit(2)
	}

	svc := host.NewService(cfg)
	sum, err := svc.Run()
	if err != nil {
		if errors.Is(err, serialport.ErrOpen) {
			fmt.Fprintf(os.Stderr, "audifictl: could not open the serial port: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "audifictl: %v\n", err)
		}
		os.Exit(1)
	}
	log.Info().Int("streamed", sum.Streamed).Int("skipped", sum.Skipped).Msg("done")
}

func printPorts() error {
	ports, err := serialport.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	fmt.Println("available ports:")
	for _, p := range ports {
		fmt.Println("  " + p.String())
	}
	return nil
}
