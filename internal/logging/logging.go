package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	pionlogging "github.com/pion/logging"
)

// ParseLevel maps LOG_LEVEL style names onto slog levels. Unknown names
// fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Init installs a text logger on stderr as the slog default and returns it.
func Init(level string) *slog.Logger {
	return initTo(os.Stderr, level)
}

func initTo(w io.Writer, level string) *slog.Logger {
	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: ParseLevel(level),
		}),
	)
	slog.SetDefault(logger)
	return logger
}

// PionFactory returns a pion logger factory writing to w at the level named
// by level, for the peer connection side of the code.
func PionFactory(w io.Writer, level string) pionlogging.LoggerFactory {
	factory := pionlogging.NewDefaultLoggerFactory()
	factory.Writer = w
	switch ParseLevel(level) {
	case slog.LevelDebug:
		factory.DefaultLogLevel = pionlogging.LogLevelDebug
	case slog.LevelWarn:
		factory.DefaultLogLevel = pionlogging.LogLevelWarn
	case slog.LevelError:
		factory.DefaultLogLevel = pionlogging.LogLevelError
	default:
		factory.DefaultLogLevel = pionlogging.LogLevelInfo
	}
	return factory
}
