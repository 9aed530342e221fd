package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the logging surface shared by condkv binaries.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger

	// Slog returns the underlying *slog.Logger for components that take one.
	Slog() *slog.Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error (default: info).
	Level string
	// Format is json or text (default: json). "console" is an alias of text.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// Service, when set, is attached to every entry as "service".
	Service string
	// AddSource records the calling file and line.
	AddSource bool
}

// level is shared by every logger built with New, so SetLevel affects
// loggers already handed out to components.
var level = new(slog.LevelVar)

type slogLogger struct {
	sl *slog.Logger
}

// New builds a logger with credential redaction. It also sets the shared
// level to cfg.Level.
func New(cfg Config) (Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}

	level.Set(lvl)
	sl := slog.New(h)
	if cfg.Service != "" {
		sl = sl.With("service", cfg.Service)
	}
	return &slogLogger{sl: sl}, nil
}

// ParseLevel converts a level name to a slog.Level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logger: unknown level %q", name)
}

// SetLevel changes the level of every logger built with New.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// GetLevel returns the current level name.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

func (l *slogLogger) Debug(msg string, args ...any) { l.sl.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.sl.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.sl.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.sl.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{sl: l.sl.With(args...)}
}

func (l *slogLogger) Slog() *slog.Logger {
	return l.sl
}

// Wrap adapts a *slog.Logger handed to a component back into a Logger,
// for example to carry it in a context.
func Wrap(sl *slog.Logger) Logger {
	return &slogLogger{sl: sl}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	l, _ := New(Config{})
	defaultLogger.Store(l.(*slogLogger))
}

// SetDefault installs l as the process logger and as slog's default, so
// plain slog calls are redacted too. Loggers not built by New are ignored.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
		slog.SetDefault(sl.sl)
	}
}

// Default returns the process logger.
func Default() Logger {
	return defaultLogger.Load()
}
