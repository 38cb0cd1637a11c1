// Package config loads the coordinator configuration from $EMPACY_HOME,
// layering defaults, the config file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"empacy/pkg/logging"
	"empacy/pkg/protocol"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config file names, in lookup order. The first one found wins.
const (
	YAMLFile = "config.yaml"
	TOMLFile = "config.toml"
)

// Defaults.
const (
	DefaultMaxAge      = "24h"
	DefaultParallelism = 4
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config is the coordinator configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Context  ContextConfig  `yaml:"context" toml:"context"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Projects ProjectsConfig `yaml:"projects" toml:"projects"`
	Journal  JournalConfig  `yaml:"journal" toml:"journal"`

	// Source is the file the config was read from; empty for defaults only.
	Source string `yaml:"-" toml:"-"`
}

// ServerConfig configures the coordinator transport.
type ServerConfig struct {
	Socket      string `yaml:"socket" toml:"socket"`
	MetricsAddr string `yaml:"metrics_addr,omitempty" toml:"metrics_addr,omitempty"`
}

// ContextConfig configures context distribution.
type ContextConfig struct {
	MaxAge      string `yaml:"max_age" toml:"max_age"`
	Watch       bool   `yaml:"watch" toml:"watch"`
	Parallelism int    `yaml:"parallelism" toml:"parallelism"`
}

// LoggingConfig maps onto logging.Options.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// ProjectsConfig configures scaffolding.
type ProjectsConfig struct {
	Root string `yaml:"root" toml:"root"`
}

// JournalConfig configures the SQLite operation journal.
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Path    string `yaml:"path" toml:"path"`
}

// On reports whether the journal is enabled; unset means enabled.
func (j JournalConfig) On() bool {
	return j.Enabled == nil || *j.Enabled
}

// Load reads the config file from paths.Home, fills defaults from paths and
// applies environment overrides. A missing file is not an error.
func Load(paths Paths) (*Config, error) {
	cfg := &Config{}
	if err := cfg.readFile(paths.Home); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.withDefaults(paths)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(home string) error {
	type decoder func([]byte, any) error
	candidates := []struct {
		name   string
		decode decoder
	}{
		{YAMLFile, yaml.Unmarshal},
		{TOMLFile, toml.Unmarshal},
	}
	for _, cand := range candidates {
		path := filepath.Join(home, cand.name)
		data, err := os.ReadFile(path) //nolint:gosec // path is built from EMPACY_HOME
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := cand.decode(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		c.Source = path
		return nil
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(protocol.EnvSocketPath); v != "" {
		c.Server.Socket = v
	}
	if v := os.Getenv(protocol.EnvDBPath); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv(protocol.EnvProjectsDir); v != "" {
		c.Projects.Root = v
	}
	if v := os.Getenv(protocol.EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) withDefaults(paths Paths) {
	if c.Server.Socket == "" {
		c.Server.Socket = paths.SocketPath
	}
	if c.Journal.Path == "" {
		c.Journal.Path = paths.DBPath
	}
	if c.Projects.Root == "" {
		c.Projects.Root = paths.ProjectsDir
	}
	if c.Context.MaxAge == "" {
		c.Context.MaxAge = DefaultMaxAge
	}
	if c.Context.Parallelism == 0 {
		c.Context.Parallelism = DefaultParallelism
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.MaxAge(); err != nil {
		return err
	}
	if c.Context.Parallelism < 0 {
		return fmt.Errorf("context.parallelism: must not be negative, got %d", c.Context.Parallelism)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	return nil
}

// MaxAge parses context.max_age; empty means DefaultMaxAge.
func (c *Config) MaxAge() (time.Duration, error) {
	s := c.Context.MaxAge
	if s == "" {
		s = DefaultMaxAge
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("context.max_age: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("context.max_age: must not be negative, got %s", s)
	}
	return d, nil
}

// LoggingOptions returns the logging.Options the config describes.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Logging.Level, Format: c.Logging.Format, File: c.Logging.File}
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
