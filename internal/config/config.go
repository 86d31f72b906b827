// Package config loads fluxo.yaml and applies FLUXO_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/fluxo-dev/fluxo/internal/projection"
)

// FileName is the config file at the workspace root.
const FileName = "fluxo.yaml"

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config represents the top-level fluxo.yaml configuration.
type Config struct {
	Business   BusinessConfig   `yaml:"business"`
	Storage    StorageConfig    `yaml:"storage"`
	Projection ProjectionConfig `yaml:"projection"`
	Server     ServerConfig     `yaml:"server"`
	Git        GitConfig        `yaml:"git"`
	Log        LogConfig        `yaml:"log"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // company or individual; picks the default accounts
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

// ProjectionConfig holds dashboard defaults.
type ProjectionConfig struct {
	DefaultWindow string `yaml:"default_window"`
}

// ServerConfig controls `fluxo serve`.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// LogConfig controls the zerolog setup.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// Env holds the FLUXO_* overrides. Unset variables leave the file value.
type Env struct {
	StorageDriver string `envconfig:"STORAGE_DRIVER"`
	StorageDSN    string `envconfig:"STORAGE_DSN"`
	ServerAddr    string `envconfig:"SERVER_ADDR"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	LogFormat     string `envconfig:"LOG_FORMAT"`
	LogOutput     string `envconfig:"LOG_OUTPUT"`
	GitAutoCommit *bool  `envconfig:"GIT_AUTO_COMMIT"`
}

// LoadEnv reads FLUXO_* variables.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("fluxo", &env); err != nil {
		return Env{}, fmt.Errorf("reading environment: %w", err)
	}
	return env, nil
}

// Apply overlays the set variables onto cfg.
func (e Env) Apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Storage.Driver, e.StorageDriver)
	set(&cfg.Storage.DSN, e.StorageDSN)
	set(&cfg.Server.Addr, e.ServerAddr)
	set(&cfg.Log.Level, e.LogLevel)
	set(&cfg.Log.Format, e.LogFormat)
	set(&cfg.Log.Output, e.LogOutput)
	if e.GitAutoCommit != nil {
		cfg.Git.AutoCommit = *e.GitAutoCommit
	}
}

// Load reads a fluxo.yaml file from disk. Missing sections keep defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("", "")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Resolve loads path, applies the environment and validates the result.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	env.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverFile:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: want %s or %s", c.Storage.Driver, DriverFile, DriverPostgres))
	}
	if _, err := projection.ParseWindow(c.Projection.DefaultWindow); err != nil {
		errs = append(errs, fmt.Errorf("projection.default_window: %w", err))
	}
	return errors.Join(errs...)
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(businessName, businessType string) *Config {
	if businessType == "" {
		businessType = "company"
	}
	return &Config{
		Business: BusinessConfig{
			Name: businessName,
			Type: businessType,
		},
		Storage: StorageConfig{
			Driver: DriverFile,
		},
		Projection: ProjectionConfig{
			DefaultWindow: string(projection.Window30d),
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Fluxo",
			AuthorEmail: "books@fluxo.dev",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}
