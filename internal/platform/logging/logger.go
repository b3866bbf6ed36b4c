// Package logging provides structured logging using Go's slog package.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below debug. The request-context stack logs every push
// and pop at this level.
const LevelTrace = slog.Level(-8)

// Config holds logging configuration.
type Config struct {
	Level   string     // trace, debug, info, warn, error
	Format  string     // json, text, pretty
	Service string     // service name for default attrs
	Version string     // service version for default attrs
	File    FileConfig // optional rolling JSON file sink
}

// FileConfig configures the rolling log file.
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New creates a new configured slog.Logger writing to stdout.
func New(cfg *Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a new configured slog.Logger with a custom writer.
// The pretty format is meant for terminals; when a log file is enabled every
// record is also written to it as JSON, whatever the terminal format.
func NewWithWriter(cfg *Config, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: NewReplaceAttr(),
	}

	var handler slog.Handler

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "pretty":
		handler = newPrettyHandler(w, level)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	if cfg.File.Enabled && cfg.File.Path != "" {
		fileHandler := slog.NewJSONHandler(newFileWriter(cfg.File), opts)
		handler = NewMultiHandler(handler, fileHandler)
	}

	return slog.New(handler).With(
		slog.String("service_name", cfg.Service),
		slog.String("service_version", cfg.Version),
	)
}

// newPrettyHandler returns a colorized charmbracelet handler.
func newPrettyHandler(w io.Writer, level slog.Level) slog.Handler {
	return log.NewWithOptions(w, log.Options{
		Level:           slogToCharmLevel(level),
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

// newFileWriter returns a size-rotated writer for the log file.
func newFileWriter(cfg FileConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// slogToCharmLevel clamps a slog level onto the charm level range.
func slogToCharmLevel(level slog.Level) log.Level {
	switch {
	case level < slog.LevelInfo:
		return log.DebugLevel
	case level < slog.LevelWarn:
		return log.InfoLevel
	case level < slog.LevelError:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}
