// Package config loads the session settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gregLibert/mifare-session/pkg/mifare"
)

type Config struct {
	Reader ReaderConfig `yaml:"reader"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
}

type ReaderConfig struct {
	Index           int           `yaml:"index"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

type AuthConfig struct {
	KeyType string `yaml:"key_type"`
	Key     string `yaml:"key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when no file is given: first reader,
// transport key B and twelve one-second connect attempts.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			Index:           0,
			ConnectTimeout:  time.Second,
			ConnectAttempts: 12,
			PollInterval:    200 * time.Millisecond,
		},
		Auth: AuthConfig{
			KeyType: "B",
			Key:     "FFFFFFFFFFFF",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value; unknown keys are an error.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	cfg := Default()
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Reader.Index < 0 {
		return fmt.Errorf("config.reader.index must be >= 0")
	}
	if c.Reader.ConnectTimeout <= 0 {
		return fmt.Errorf("config.reader.connect_timeout must be positive")
	}
	if c.Reader.ConnectAttempts < 1 {
		return fmt.Errorf("config.reader.connect_attempts must be >= 1")
	}
	if c.Reader.PollInterval <= 0 {
		return fmt.Errorf("config.reader.poll_interval must be positive")
	}
	if _, err := c.SectorKey(); err != nil {
		return fmt.Errorf("config.auth: %w", err)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("config.log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// SectorKey returns the key used to authenticate every sector.
func (c *Config) SectorKey() (mifare.Key, error) {
	kt, err := mifare.ParseKeyType(c.Auth.KeyType)
	if err != nil {
		return mifare.Key{}, err
	}
	return mifare.ParseKey(kt, c.Auth.Key)
}

func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.Log.Level))
	return lvl, err
}
