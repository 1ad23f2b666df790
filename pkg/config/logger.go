package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log encodings accepted by LOG_FORMAT.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// LoggerOptions selects the level and encoding of a logger.
type LoggerOptions struct {
	Level  string // debug, info, warn, error; empty means info
	Format string // json or console; empty means json
}

// NewLogger creates a logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger() (*zap.Logger, error) {
	return NewLoggerWithOptions(LoggerOptions{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// NewLoggerWithLevel creates a JSON logger at the given level.
func NewLoggerWithLevel(level string) (*zap.Logger, error) {
	return NewLoggerWithOptions(LoggerOptions{Level: level})
}

// NewLoggerWithOptions builds a production logger writing to stderr with an
// ISO8601 "timestamp" key.
func NewLoggerWithOptions(opts LoggerOptions) (*zap.Logger, error) {
	if opts.Level == "" {
		opts.Level = "info"
	}
	if opts.Format == "" {
		opts.Format = LogFormatJSON
	}

	var level zapcore.Level
	err := level.UnmarshalText([]byte(opts.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	if opts.Format != LogFormatJSON && opts.Format != LogFormatConsole {
		return nil, fmt.Errorf("invalid log format %q (want %s or %s)", opts.Format, LogFormatJSON, LogFormatConsole)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = opts.Format
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Format == LogFormatConsole {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}
