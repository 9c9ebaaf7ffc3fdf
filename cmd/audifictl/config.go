package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/danmuck/audifi/internal/config"
	"github.com/danmuck/audifi/internal/host"
	flag "github.com/spf13/pflag"
)

type options struct {
	configPath  string
	port        string
	playlist    string
	statusAddr  string
	baud        int
	headerWidth int
}

// resolveServiceConfig loads the config file, if any, and applies the flags
// that were set on the command line.
func resolveServiceConfig(opts options, flags *flag.FlagSet) (host.ServiceConfig, error) {
	cfg := host.DefaultServiceConfig()

	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return host.ServiceConfig{}, err
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return host.ServiceConfig{}, err
		}
		cfg = loaded
	}

	if flags.Changed("port") {
		cfg.Serial.Port = opts.port
	}
	if flags.Changed("playlist") {
		cfg.PlaylistPath = opts.playlist
	}
	if flags.Changed("status-addr") {
		cfg.StatusAddr = opts.statusAddr
	}
	if flags.Changed("baud") {
		cfg.Serial.BaudRate = opts.baud
	}
	if flags.Changed("header-width") {
		cfg.Session.HeaderWidth = opts.headerWidth
	}
	if err := config.Validate(cfg); err != nil {
		return host.ServiceConfig{}, err
	}
	return cfg, nil
}
