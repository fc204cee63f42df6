// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides the identity backend adapters used by auth.Manager.
// Each adapter implements auth.Backend and reports refusals as *auth.RejectedError
// so the backend's diagnostic reaches the user unchanged.
//
// Adapters: Firebase (Identity Toolkit REST, the default), a generic gRPC
// identity service, and a self-hosted Postgres account table.
package backend

import (
	"storefront/cli/internal/auth"
)

// TokenCache persists an adapter's own session tokens between runs.
// keychain.Manager satisfies it.
type TokenCache interface {
	SaveAuthTokens(accessToken, refreshToken string) error
	LoadAccessToken() (string, error)
	LoadRefreshToken() (string, error)
	ClearAuth() error
}

// Compile-time checks.
var (
	_ auth.Backend = (*HTTP)(nil)
	_ auth.Backend = (*GRPC)(nil)
	_ auth.Backend = (*Postgres)(nil)
)

func reject(code, message string) *auth.RejectedError {
	return &auth.RejectedError{Code: code, Message: message}
}
