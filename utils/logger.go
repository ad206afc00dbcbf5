package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger provides leveled, printf-style logging throughout the application.
// Records go through slog so stdout and the rotated file share one format.
type Logger struct {
	s *slog.Logger
}

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Level string // debug, info, warn, error
	File  string // empty disables file output
}

// NewLogger creates a Logger writing to stdout and, when a file path is
// given, to a size- and age-rotated log file.
func NewLogger(opts LoggerOptions) *Logger {
	var w io.Writer = os.Stdout
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "[logger] cannot create log dir, file output disabled: %v\n", err)
		} else {
			w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    10, // MB
				MaxBackups: 2,
				MaxAge:     2, // days
				Compress:   true,
			})
		}
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	return &Logger{s: slog.New(h)}
}

// NewNopLogger discards everything. Intended for tests.
func NewNopLogger() *Logger {
	return &Logger{s: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the underlying structured logger.
func (l *Logger) Slog() *slog.Logger {
	return l.s
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	if !l.s.Enabled(context.Background(), level) {
		return
	}
	l.s.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}
