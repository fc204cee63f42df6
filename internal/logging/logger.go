// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// New builds the structured logger shared by the CLI and its services.
// level is one of trace, debug, info, warn, error or disabled; format is
// "json" or anything else for the colourful text formatter. Logs go to
// stderr so they never interleave with command output on stdout.
func New(level, format string) *pterm.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) *pterm.Logger {
	l := pterm.DefaultLogger.
		WithWriter(w).
		WithLevel(ParseLevel(level)).
		WithTime(false)
	if strings.EqualFold(format, "json") {
		l = l.WithFormatter(pterm.LogFormatterJSON).WithTime(true)
	}
	return l
}

// Discard returns a logger that drops everything. Used by tests and as the
// fallback when a component is constructed without a logger.
func Discard() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard).WithLevel(pterm.LogLevelDisabled)
}

// ParseLevel maps a config level name to a pterm level; unknown names mean info.
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "off", "disabled", "none":
		return pterm.LogLevelDisabled
	default:
		return pterm.LogLevelInfo
	}
}
