// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"errors"
	"time"

	"storefront/cli/internal/auth"
)

// CurrentPrincipal returns the identity behind the stored ID token.
// An expired token is refreshed first. When the backend refuses the session the
// stored tokens are dropped and ok is false. Network failures fall back to the
// last principal seen, if any.
func (h *HTTP) CurrentPrincipal(ctx context.Context) (auth.Principal, bool, error) {
	if h.tokens == nil {
		return auth.Principal{}, false, nil
	}
	token, err := h.tokens.LoadAccessToken()
	if err != nil {
		// No stored session
		return auth.Principal{}, false, nil
	}

	if tokenExpired(token, h.now(), expirySkew) {
		token, err = h.RefreshToken(ctx)
		if err != nil {
			return h.fallback(err)
		}
	}

	if p, ok := h.fresh(token); ok {
		return p, true, nil
	}

	p, err := h.lookup(ctx, token)
	if err != nil {
		return h.fallback(err)
	}

	h.mu.Lock()
	h.cached = &p
	h.cachedToken = token
	h.cachedAt = h.now()
	h.mu.Unlock()
	return p, true, nil
}

// lookup calls POST /v1/accounts:lookup with the ID token.
func (h *HTTP) lookup(ctx context.Context, idToken string) (auth.Principal, error) {
	var out struct {
		Users []struct {
			LocalID     string `json:"localId"`
			Email       string `json:"email"`
			DisplayName string `json:"displayName"`
		} `json:"users"`
	}
	if err := h.postJSON(ctx, h.endpoint(h.identityURL, "/v1/accounts:lookup"), map[string]string{"idToken": idToken}, &out); err != nil {
		return auth.Principal{}, err
	}
	if len(out.Users) == 0 {
		return auth.Principal{}, reject("USER_NOT_FOUND", friendlyMessages["USER_NOT_FOUND"])
	}
	u := out.Users[0]
	return auth.Principal{UID: u.LocalID, DisplayName: u.DisplayName, Email: u.Email}, nil
}

// fresh returns the cached principal when it belongs to token and is recent.
func (h *HTTP) fresh(token string) (auth.Principal, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cached == nil || h.cachedToken != token || h.now().Sub(h.cachedAt) >= principalCacheTTL {
		return auth.Principal{}, false
	}
	return *h.cached, true
}

// fallback handles a failed refresh or lookup.
func (h *HTTP) fallback(err error) (auth.Principal, bool, error) {
	var rej *auth.RejectedError
	if errors.As(err, &rej) {
		h.log.Debug("identity session rejected, clearing tokens", h.log.Args("code", rej.Code))
		h.forget()
		return auth.Principal{}, false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cached != nil {
		return *h.cached, true, nil
	}
	return auth.Principal{}, false, err
}

// SignOut drops the stored tokens. The Identity Toolkit has no client-side
// revocation endpoint, so this is purely local.
func (h *HTTP) SignOut(ctx context.Context) error {
	return h.forget()
}

func (h *HTTP) forget() error {
	h.mu.Lock()
	h.cached = nil
	h.cachedToken = ""
	h.cachedAt = time.Time{}
	h.mu.Unlock()

	if h.tokens == nil {
		return nil
	}
	return h.tokens.ClearAuth()
}
