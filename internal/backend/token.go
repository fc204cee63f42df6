// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew refreshes tokens slightly before they expire.
const expirySkew = time.Minute

// refreshResponse is the Secure Token API reply.
type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// RefreshToken calls POST /v1/token to exchange the stored refresh token for a new ID token.
// The new tokens replace the stored ones. Returns the new ID token.
func (h *HTTP) RefreshToken(ctx context.Context) (string, error) {
	if h.tokens == nil {
		return "", errors.New("no token cache configured")
	}
	refreshToken, err := h.tokens.LoadRefreshToken()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var out refreshResponse
	if err := h.postForm(ctx, h.endpoint(h.tokenURL, "/v1/token"), form, &out); err != nil {
		return "", err
	}
	if out.IDToken == "" {
		return "", errors.New("no id_token in refresh response")
	}
	if err := h.tokens.SaveAuthTokens(out.IDToken, out.RefreshToken); err != nil {
		return "", err
	}
	h.log.Debug("identity token refreshed", h.log.Args("uid", out.UserID))
	return out.IDToken, nil
}

// tokenExpired reports whether the JWT's exp claim is within skew of now.
// The signature is not checked; the backend validates the token on use.
// Tokens without a readable exp count as expired.
func tokenExpired(raw string, now time.Time, skew time.Duration) bool {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, &jwt.RegisteredClaims{})
	if err != nil {
		return true
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return !now.Add(skew).Before(exp.Time)
}
