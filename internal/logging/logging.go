package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format selects how log lines are written
type Format int

const (
	// Console is human-readable output for terminals
	Console Format = iota
	// JSON is one object per line, for agents and log shippers
	JSON
)

// New builds the application logger writing to w. Unknown levels fall
// back to info.
func New(app string, w io.Writer, format Format, level string) zerolog.Logger {
	if format == Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().Timestamp().Str("app", app).
		Logger()
}

// Init returns the logger for a binary. Logs go to stderr: stdout
// carries command output and, for the MCP server, the protocol.
func Init(app string, format Format, level string) zerolog.Logger {
	return New(app, os.Stderr, format, level)
}

// ParseLevel maps a configured level name to a zerolog level
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
