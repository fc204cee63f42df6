// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"net/url"

	"storefront/cli/internal/auth"
)

// Redirect URI reported to signInWithIdp; the ID token is already verified, so
// Firebase only needs a syntactically valid URI.
const idpRequestURI = "http://localhost"

// signInResponse is shared by signInWithPassword and signInWithIdp.
type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (r signInResponse) principal() auth.Principal {
	return auth.Principal{UID: r.LocalID, DisplayName: r.DisplayName, Email: r.Email}
}

// SignIn calls POST /v1/accounts:signInWithPassword.
func (h *HTTP) SignIn(ctx context.Context, identifier, secret string) (auth.Principal, error) {
	body := map[string]any{
		"email":             identifier,
		"password":          secret,
		"returnSecureToken": true,
	}
	var out signInResponse
	if err := h.postJSON(ctx, h.endpoint(h.identityURL, "/v1/accounts:signInWithPassword"), body, &out); err != nil {
		return auth.Principal{}, err
	}
	h.remember(out)
	return out.principal(), nil
}

// ExchangeFederatedToken calls POST /v1/accounts:signInWithIdp with the provider's ID token.
// provider is the Firebase provider ID, e.g. "google.com".
func (h *HTTP) ExchangeFederatedToken(ctx context.Context, provider, token string) (auth.Principal, error) {
	postBody := url.Values{}
	postBody.Set("id_token", token)
	postBody.Set("providerId", provider)

	body := map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          idpRequestURI,
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}
	var out signInResponse
	if err := h.postJSON(ctx, h.endpoint(h.identityURL, "/v1/accounts:signInWithIdp"), body, &out); err != nil {
		return auth.Principal{}, err
	}
	h.remember(out)
	return out.principal(), nil
}

// remember persists the session tokens and caches the principal.
func (h *HTTP) remember(out signInResponse) {
	if h.tokens != nil {
		if err := h.tokens.SaveAuthTokens(out.IDToken, out.RefreshToken); err != nil {
			h.log.Warn("could not persist identity tokens", h.log.Args("error", err))
		}
	}
	p := out.principal()
	h.mu.Lock()
	h.cached = &p
	h.cachedToken = out.IDToken
	h.cachedAt = h.now()
	h.mu.Unlock()
}
