// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"time"
)

// Credentials is an identifier/secret pair. It is used for one attempt and never stored.
type Credentials struct {
	Identifier string
	Secret     string
}

// Principal is the identity the backend reports after a successful sign-in.
// Empty fields mean the backend did not provide them.
type Principal struct {
	UID         string
	DisplayName string
	Email       string
}

// Greeting returns the user-facing name: display name, then email, then "".
func (p Principal) Greeting() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

// Handoff describes what the caller must present to start a federated sign-in,
// plus what the provider needs to validate the result afterwards.
type Handoff struct {
	// Provider is the backend's identifier for the provider, e.g. "google.com".
	Provider    string
	URL         string
	State       string
	Verifier    string
	RedirectURL string
	ExpiresAt   time.Time
}

// HandoffResult carries the provider's callback parameters. A nil *HandoffResult
// means the provider returned nothing.
type HandoffResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Backend is the external identity backend.
//
// Rejections should be returned as *RejectedError so the diagnostic reaches the user.
type Backend interface {
	SignIn(ctx context.Context, identifier, secret string) (Principal, error)
	ExchangeFederatedToken(ctx context.Context, provider, token string) (Principal, error)
	SignOut(ctx context.Context) error
	// CurrentPrincipal returns the signed-in identity; ok is false when there is none.
	CurrentPrincipal(ctx context.Context) (p Principal, ok bool, err error)
}

// FederatedProvider is the OAuth/OIDC provider used for federated sign-in.
type FederatedProvider interface {
	// Name is the human-readable provider name used in messages, e.g. "Google".
	Name() string
	BuildHandoff(ctx context.Context) (Handoff, error)
	// ExtractToken validates the callback against h and returns the federated token.
	ExtractToken(ctx context.Context, h Handoff, result *HandoffResult) (string, error)
	SignOut(ctx context.Context) error
}

// RejectedError is a refusal reported by a backend or provider.
// Code is machine-readable (e.g. "INVALID_PASSWORD"); Message is the diagnostic.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}
