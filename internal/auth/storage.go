// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
)

// SessionStore persists the "logged in" flag. session.Store satisfies it.
type SessionStore interface {
	Read(ctx context.Context) (bool, error)
	Write(ctx context.Context, loggedIn bool) error
}

// readFlag reads the flag; read errors are logged and count as signed out.
func (m *Manager) readFlag(ctx context.Context) bool {
	v, err := m.store.Read(ctx)
	if err != nil {
		m.log.Warn("session flag unreadable, treating as signed out", m.log.Args("error", err))
		return false
	}
	m.log.Trace("session flag read", m.log.Args("logged_in", v))
	return v
}

func (m *Manager) writeFlag(ctx context.Context, v bool) error {
	if err := m.store.Write(ctx, v); err != nil {
		m.log.Error("session flag write failed", m.log.Args("logged_in", v, "error", err))
		return err
	}
	m.log.Debug("session flag written", m.log.Args("logged_in", v))
	return nil
}
