package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig selects the slog handler and minimum level.
type LogConfig struct {
	Level     slog.Level
	Format    string // "text" or "json"
	AddSource bool
}

// LoadLogConfig reads LOG_LEVEL (debug, info, warn, error), LOG_FORMAT and
// LOG_ADD_SOURCE.
func LoadLogConfig() LogConfig {
	cfg := LogConfig{
		Format:    strings.ToLower(envStr("LOG_FORMAT", "text")),
		AddSource: envBool("LOG_ADD_SOURCE", false),
	}
	if err := cfg.Level.UnmarshalText([]byte(envStr("LOG_LEVEL", "info"))); err != nil {
		cfg.Level = slog.LevelInfo
	}
	return cfg
}

// NewLogger builds a logger writing to w (stdout when nil).
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
