// Package config loads the client configuration: built-in defaults, then
// an optional YAML file, then environment overrides. The result is checked
// against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/creditors/internal/interact"
	"github.com/roach88/creditors/internal/logstream"
	"github.com/roach88/creditors/internal/tasks"
	"github.com/roach88/creditors/internal/transport"
)

//go:embed schema.cue
var schema string

// Environment variables that override file settings.
const (
	EnvServerURL = "CREDITORS_SERVER_URL"
	EnvDatabase  = "CREDITORS_DB"
	EnvToken     = "CREDITORS_TOKEN"
	EnvDebug     = "CREDITORS_DEBUG"
)

// Config is the client configuration.
type Config struct {
	// ServerURL is the wallet URI used by provision when none is given.
	ServerURL string `yaml:"server_url" json:"server_url,omitempty"`
	Database  string `yaml:"database" json:"database"`
	Token     string `yaml:"token" json:"token,omitempty"`
	TokenFile string `yaml:"token_file" json:"token_file,omitempty"`
	LogLevel  string `yaml:"log_level" json:"log_level"`

	HTTP        HTTPConfig        `yaml:"http" json:"http"`
	Sync        SyncConfig        `yaml:"sync" json:"sync"`
	Tasks       TasksConfig       `yaml:"tasks" json:"tasks"`
	Interaction InteractionConfig `yaml:"interaction" json:"interaction"`
	Update      UpdateConfig      `yaml:"update" json:"update"`
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type SyncConfig struct {
	MaxParallelFetches int           `yaml:"max_parallel_fetches" json:"max_parallel_fetches"`
	FetchTimeoutBase   time.Duration `yaml:"fetch_timeout_base" json:"fetch_timeout_base"`
	PageTimeout        time.Duration `yaml:"page_timeout" json:"page_timeout"`
}

type TasksConfig struct {
	BatchSize   int           `yaml:"batch_size" json:"batch_size"`
	RetryDelay  time.Duration `yaml:"retry_delay" json:"retry_delay"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
}

type InteractionConfig struct {
	WaitingDelay time.Duration `yaml:"waiting_delay" json:"waiting_delay"`
}

type UpdateConfig struct {
	// Interval between periodic updates in watch mode. Zero disables them.
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: "creditors.db",
		LogLevel: "info",
		HTTP:     HTTPConfig{Timeout: transport.DefaultTimeout},
		Sync: SyncConfig{
			MaxParallelFetches: logstream.DefaultMaxParallel,
			FetchTimeoutBase:   logstream.DefaultFetchTimeoutBase,
			PageTimeout:        logstream.DefaultPageTimeout,
		},
		Tasks: TasksConfig{
			BatchSize:   tasks.DefaultBatchSize,
			RetryDelay:  tasks.DefaultRetryDelay,
			MaxAttempts: tasks.DefaultMaxAttempts,
		},
		Interaction: InteractionConfig{WaitingDelay: interact.DefaultWaitingDelay},
		Update:      UpdateConfig{Interval: time.Minute},
	}
}

// Load reads the configuration file at path (none when empty) and applies
// the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode reads YAML over the values already in cfg, rejecting unknown
// fields.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvServerURL); ok && v != "" {
		cfg.ServerURL = v
	}
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		cfg.Database = v
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		cfg.Token = v
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		if debug {
			cfg.LogLevel = "debug"
		}
	}
	return nil
}

// Validate checks cfg against the schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Token != "" && c.TokenFile != "" {
		return errors.New("invalid config: token and token_file are mutually exclusive")
	}
	return nil
}

// ResolveToken returns the bearer token, reading token_file when set.
func (c Config) ResolveToken() (string, error) {
	if c.TokenFile == "" {
		return c.Token, nil
	}
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
