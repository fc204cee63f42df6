// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session persists the single "logged in" flag that decides where the
// CLI starts. The flag is an advisory local cache: the identity backend's own
// tokens stay authoritative.
package session

import (
	"context"
	"fmt"
	"strconv"

	"storefront/cli/internal/config"
	apperrors "storefront/cli/internal/errors"
	"storefront/cli/internal/keychain"
	"storefront/cli/internal/xdg"
)

// Fixed location of the flag.
const (
	Namespace   = "MyPrefs"
	KeyLoggedIn = "isLoggedIn"
)

// Store reads and writes the flag. Read returns false when the flag was never written.
// Write must be durable before it returns.
type Store interface {
	Read(ctx context.Context) (bool, error)
	Write(ctx context.Context, loggedIn bool) error
}

// Open builds the store selected by cfg. The returned close func releases any
// connection the store holds and is never nil.
func Open(cfg config.Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Session.Store {
	case config.StoreMemory:
		return NewMemoryStore(), noop, nil
	case config.StoreRedis:
		s := NewRedisStore(RedisOptions{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		return s, s.Close, nil
	case config.StoreKeyring, "":
		km, err := OpenKeychain(cfg)
		if err != nil {
			return nil, noop, apperrors.Wrap(apperrors.StoreUnavailable, "open OS keychain", err)
		}
		return NewKeyringStore(km), noop, nil
	default:
		return nil, noop, apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("unknown session store %q", cfg.Session.Store))
	}
}

// OpenKeychain opens the OS keychain using the keyring section of cfg.
// The file backend keeps its items under the XDG state dir.
func OpenKeychain(cfg config.Config) (*keychain.Manager, error) {
	opts := keychain.Options{
		Backends:     cfg.Keyring.Backends,
		FilePassword: cfg.Keyring.FilePassword,
	}
	if dir, err := xdg.StateDir(); err == nil {
		opts.FileDir = dir
	}
	return keychain.NewManager(opts)
}

func parseFlag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
