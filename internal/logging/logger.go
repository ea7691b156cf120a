// Package logging builds the structured logger shared by threadsearch
// components. It wraps log/slog with the level and format names used in
// configuration files and flags.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/vnykmshr/threadsearch/pkg/common/validation"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats supported by the logger
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger that writes to w at the given level and format.
// Level and format names are case-insensitive; unknown values are rejected.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	if err := ValidateLevel(level); err != nil {
		return nil, err
	}
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ValidateLevel checks a level name. An empty name means INFO.
func ValidateLevel(level string) error {
	if level == "" {
		return nil
	}
	return validation.ValidateOneOf("logging", "level", level, LevelDebug, LevelInfo, LevelWarn, LevelError)
}

// ValidateFormat checks a format name. An empty name means text.
func ValidateFormat(format string) error {
	if format == "" {
		return nil
	}
	return validation.ValidateOneOf("logging", "format", format, FormatText, FormatJSON)
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
