package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey string

const LoggerKey contextKey = "logger"

// InitLogger builds the process logger and stores it in the context.
func InitLogger(ctx context.Context, logLevel string, warnings []string) (context.Context, *zerolog.Logger) {
	log := NewLogger(logLevel)
	for _, warn := range warnings {
		log.Warn().Msg(warn)
	}
	ctx = context.WithValue(ctx, LoggerKey, log)
	return ctx, log
}

// NewLogger creates a zerolog console logger and sets the global log level.
func NewLogger(logLevel string) *zerolog.Logger {
	zerolog.SetGlobalLevel(getLogLevel(logLevel))

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}
	output.FormatLevel = func(i interface{}) string {
		ll, ok := i.(string)
		if !ok {
			return "| ??? |"
		}
		var l string
		switch ll {
		case "debug":
			l = colorize(ll, 36) // cyan
		case "info":
			l = colorize(ll, 34) // blue
		case "warn":
			l = colorize(ll, 33) // yellow
		case "error":
			l = colorize(ll, 31) // red
		case "fatal":
			l = colorize(ll, 35) // magenta
		default:
			l = colorize(strings.ToUpper(ll), 37) // white
		}
		return fmt.Sprintf("| %s |", l)
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	return &logger
}

// SetGlobalLevel applies a new log level to every logger in the process.
// Unknown level names fall back to info.
func SetGlobalLevel(logLevel string) {
	zerolog.SetGlobalLevel(getLogLevel(logLevel))
}

// FromContext extracts the main logger from the context.
func FromContext(ctx context.Context) *zerolog.Logger {
	logger, ok := ctx.Value(LoggerKey).(*zerolog.Logger)
	if !ok {
		defaultLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		return &defaultLogger
	}
	return logger
}

func getLogLevel(logLevel string) zerolog.Level {
	switch logLevel {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func colorize(s string, color int) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}
