package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level      string    `yaml:"level"`
	Format     string    `yaml:"format"` // "pretty" or "json"
	WithCaller bool      `yaml:"caller"`
	Output     io.Writer `yaml:"-"`
}

// DefaultConfig logs warnings and above in console form on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "warn",
		Format: "pretty",
		Output: os.Stderr,
	}
}

// InitLogger builds the root logger and sets the global level.
func InitLogger(config *Config) zerolog.Logger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(config.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	if config.Format == "pretty" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).With().Timestamp().Str("app", "sqlhttp")
	if config.WithCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// parseLevel accepts zerolog level names plus "warning". Anything else is info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zerolog.WarnLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// ForComponent creates a logger with component context
func ForComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// ForSession tags a logger with the transport session it belongs to.
func ForSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session_id", sessionID).Logger()
}

// ForRequest creates a logger scoped to one HTTP transaction
func ForRequest(logger zerolog.Logger, requestID, method, uri string) zerolog.Logger {
	return logger.With().
		Str("request_id", requestID).
		Str("method", method).
		Str("uri", uri).
		Logger()
}

// ForMCP creates a logger with MCP context
func ForMCP(logger zerolog.Logger, tool string) zerolog.Logger {
	return logger.With().
		Str("mcp_tool", tool).
		Str("component", "mcp").
		Logger()
}
