// Package logger builds the zerolog loggers used across fluxo.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr, or a file path
}

// DefaultConfig returns the configuration used before fluxo.yaml is read.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: "stderr"}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from cfg. The returned Closer releases the log file
// when Output is a path.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var out io.Writer
	var closer io.Closer = nopCloser{}
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		out, closer = f, f
	}

	l, err := NewWriter(cfg.Level, cfg.Format, out)
	if err != nil {
		closer.Close()
		return zerolog.Nop(), nil, err
	}
	return l, closer, nil
}

// NewWriter builds a logger writing to w.
func NewWriter(level, format string, w io.Writer) (zerolog.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), err
	}
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Setup builds a logger from cfg and installs it as the global logger.
func Setup(cfg Config) (io.Closer, error) {
	l, closer, err := New(cfg)
	if err != nil {
		return nil, err
	}
	log.Logger = l
	return closer, nil
}

// WithComponent returns l tagged with a component field.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
