// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the flag in process memory. Used by --ephemeral and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	loggedIn bool
	written  bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Read(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn, nil
}

func (s *MemoryStore) Write(ctx context.Context, loggedIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = loggedIn
	s.written = true
	return nil
}

// Written reports whether Write was ever called.
func (s *MemoryStore) Written() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.written
}
