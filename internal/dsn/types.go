// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dsn parses and normalizes the PostgreSQL connection strings accepted by
// the postgres identity backend. Passwords containing unencoded special characters
// are accepted and re-encoded.
package dsn

import "fmt"

// DefaultPort is assumed when the DSN names none.
const DefaultPort = "5432"

// Info contains parsed information from a DSN string.
type Info struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Params   map[string]string
}

// ParseError represents an error that occurred during DSN parsing.
type ParseError struct {
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid DSN format: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid DSN format: %s", e.Reason)
}

func newParseError(reason, hint string) *ParseError {
	return &ParseError{Reason: reason, Hint: hint}
}
