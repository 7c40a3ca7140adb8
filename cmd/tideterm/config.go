package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tidehq/tideterm"
)

// configEnv names the config file when --config is not given.
const configEnv = "TIDETERM_CONFIG"

// Config is the tideterm.yaml file. Every field is optional.
type Config struct {
	// Shell is the program to run. Empty means the user's login shell.
	Shell string   `yaml:"shell"`
	Args  []string `yaml:"args"`
	Login bool     `yaml:"login"`
	Dir   string   `yaml:"dir"`
	// Env replaces the inherited environment when set.
	Env []string `yaml:"env"`

	// Scrollback is the number of lines kept; negative disables it.
	Scrollback int  `yaml:"scrollback"`
	Dark       bool `yaml:"dark"`

	// ResizeDebounce delays PTY resizes; zero applies them at once.
	ResizeDebounce time.Duration `yaml:"resize_debounce"`
	// SyncInterval is the minimum time between two redraws.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// Addr is the listen address for serve.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Scrollback:     tideterm.DefaultScrollbackLines,
		Dark:           true,
		ResizeDebounce: tideterm.DefaultResizeDebounce,
		SyncInterval:   16 * time.Millisecond,
		Addr:           "127.0.0.1:8080",
	}
}

// LoadConfig reads path, or the file named by TIDETERM_CONFIG when path is
// empty. With neither set it returns DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(configEnv)
	}
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return c.validate()
}

func (c *Config) validate() error {
	if c.ResizeDebounce < 0 {
		return errors.New("resize_debounce must not be negative")
	}
	if c.SyncInterval <= 0 {
		return errors.New("sync_interval must be positive")
	}
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	return nil
}

// SessionOptions builds the options for a session of the given size.
func (c *Config) SessionOptions(rows, cols int, logger *slog.Logger) tideterm.SessionOptions {
	debounce := c.ResizeDebounce
	if debounce == 0 {
		debounce = -1
	}
	return tideterm.SessionOptions{
		Rows:           rows,
		Cols:           cols,
		Command:        c.Shell,
		Args:           c.Args,
		Login:          c.Login,
		Dir:            c.Dir,
		Env:            c.Env,
		Dark:           c.Dark,
		Scrollback:     c.Scrollback,
		ResizeDebounce: debounce,
		Logger:         logger,
	}
}
