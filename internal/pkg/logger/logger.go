package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	global *slog.Logger
	once   sync.Once
)

// Init configures the process-wide JSON logger. Every record carries the
// service attribute so settlement logs stay attributable once aggregated.
// Unknown level strings fall back to info.
func Init(level, service string) {
	once.Do(func() {
		var lv slog.Level
		if err := lv.UnmarshalText([]byte(level)); err != nil {
			lv = slog.LevelInfo
		}
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv})
		global = slog.New(handler).With(slog.String("service", service))
		slog.SetDefault(global)
	})
}

// Get returns the global logger, initializing it with defaults when Init
// was never called (tests, tools).
func Get() *slog.Logger {
	if global == nil {
		Init("info", "mintgate")
	}
	return global
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func With(args ...any) *slog.Logger {
	return Get().With(args...)
}

// LogError records err under the error attribute; a nil err is a no-op.
func LogError(ctx context.Context, err error, msg string, args ...any) {
	if err == nil {
		return
	}
	args = append(args, slog.String("error", err.Error()))
	Get().ErrorContext(ctx, msg, args...)
}
