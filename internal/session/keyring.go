// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"errors"
	"strconv"

	apperrors "storefront/cli/internal/errors"
	"storefront/cli/internal/keychain"
)

// KeyringStore keeps the flag in the OS keychain under Namespace/KeyLoggedIn.
type KeyringStore struct {
	km *keychain.Manager
}

func NewKeyringStore(km *keychain.Manager) *KeyringStore {
	return &KeyringStore{km: km}
}

func (s *KeyringStore) Read(ctx context.Context) (bool, error) {
	v, err := s.km.Get(Namespace, KeyLoggedIn)
	if errors.Is(err, keychain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.StoreUnavailable, "read session flag", err)
	}
	return parseFlag(v), nil
}

func (s *KeyringStore) Write(ctx context.Context, loggedIn bool) error {
	if err := s.km.Set(Namespace, KeyLoggedIn, strconv.FormatBool(loggedIn)); err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "write session flag", err)
	}
	return nil
}
