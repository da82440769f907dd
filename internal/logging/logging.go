// Package logging sets up structured logging for the application.
// Two root loggers are maintained: a JSON logger on stdout for machine
// consumption and a human-readable text logger on stderr. Service-scoped
// file loggers with rotation are created on demand via NewFileLogger.
package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Custom log levels beyond the slog defaults.
const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	initOnce sync.Once

	structured *slog.Logger
	human      *slog.Logger

	defaultLevel = new(slog.LevelVar)
)

// Init configures the root loggers. Safe to call more than once; only the
// first call takes effect. Call before any logging helper.
func Init() {
	initOnce.Do(func() {
		opts := &slog.HandlerOptions{
			Level:       defaultLevel,
			ReplaceAttr: replaceLevelNames,
		}
		structured = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		human = slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(structured)
	})
}

// replaceLevelNames renders the custom TRACE and FATAL levels by name.
func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		if name, found := levelNames[level]; found {
			a.Value = slog.StringValue(name)
		}
	}
	return a
}

// SetLevel adjusts the minimum level for both root loggers.
func SetLevel(level slog.Level) {
	defaultLevel.Set(level)
}

// Structured returns the JSON logger writing to stdout.
func Structured() *slog.Logger {
	Init()
	return structured
}

// HumanReadable returns the text logger writing to stderr.
func HumanReadable() *slog.Logger {
	Init()
	return human
}

// ForService returns a structured logger scoped to a named service.
func ForService(service string) *slog.Logger {
	return Structured().With("service", service)
}

func Debug(msg string, args ...any) { Structured().Debug(msg, args...) }

func Info(msg string, args ...any) { Structured().Info(msg, args...) }

func Warn(msg string, args ...any) { Structured().Warn(msg, args...) }

func Error(msg string, args ...any) { Structured().Error(msg, args...) }

// Trace logs at the custom TRACE level, below DEBUG.
func Trace(msg string, args ...any) {
	Structured().Log(context.Background(), LevelTrace, msg, args...)
}

// Fatal logs at the custom FATAL level and exits the process.
func Fatal(msg string, args ...any) {
	Structured().Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// FileLoggerOptions control rotation for service log files.
type FileLoggerOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileLoggerOptions returns the rotation settings used when the
// caller passes a zero options value.
func DefaultFileLoggerOptions() FileLoggerOptions {
	return FileLoggerOptions{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// NewFileLogger creates a JSON logger writing to a rotated file. The
// returned close function flushes and closes the underlying writer. The
// log directory is created when missing.
func NewFileLogger(filePath, service string, level slog.Leveler, opts ...FileLoggerOptions) (*slog.Logger, func() error, error) {
	opt := DefaultFileLoggerOptions()
	if len(opts) > 0 && opts[0] != (FileLoggerOptions{}) {
		opt = opts[0]
	}

	dir := filepath.Dir(filePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}

	writer := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    opt.MaxSizeMB,
		MaxBackups: opt.MaxBackups,
		MaxAge:     opt.MaxAgeDays,
		Compress:   opt.Compress,
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})

	logger := slog.New(handler)
	if service != "" {
		logger = logger.With("service", service)
	}
	return logger, writer.Close, nil
}

// SanitizeServiceName normalizes a service name for use in file paths.
func SanitizeServiceName(service string) string {
	s := strings.ToLower(strings.TrimSpace(service))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, string(filepath.Separator), "-")
	return s
}
