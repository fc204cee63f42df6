// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package google

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"storefront/cli/internal/auth"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://issuer.example"
	testClientID = "client-1"
)

type fixture struct {
	provider *Provider
	key      *rsa.PrivateKey
	idToken  string
	revoked  atomic.Int32
	exchange atomic.Int32
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, aud string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            aud,
		"sub":            "google-sub-1",
		"email":          "ana@x.com",
		"email_verified": true,
		"iat":            time.Now().Unix(),
		"exp":            exp.Unix(),
	})
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fixture{key: key}
	f.idToken = signIDToken(t, key, testClientID, time.Now().Add(time.Hour))

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.exchange.Add(1)
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
			return
		}
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.NotEmpty(t, r.PostForm.Get("code_verifier"))
		assert.Equal(t, RedirectURL(8085), r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     f.idToken,
		})
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "access-1", r.PostForm.Get("token"))
		f.revoked.Add(1)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	verifier := oidc.NewVerifier(testIssuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}, &oidc.Config{ClientID: testClientID})
	f.provider = NewWithVerifier(Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectPort: 8085,
	}, oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}, verifier, srv.URL+"/revoke", nil)
	return f
}

func TestBuildHandoff(t *testing.T) {
	f := newFixture(t)

	h1, err := f.provider.BuildHandoff(context.Background())
	require.NoError(t, err)
	h2, err := f.provider.BuildHandoff(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ProviderID, h1.Provider)
	assert.Equal(t, "http://127.0.0.1:8085/callback", h1.RedirectURL)
	assert.NotEqual(t, h1.State, h2.State)
	assert.NotEqual(t, h1.Verifier, h2.Verifier)

	u, err := url.Parse(h1.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, h1.State, q.Get("state"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(h1.Verifier), q.Get("code_challenge"))
	assert.Equal(t, h1.RedirectURL, q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestExtractTokenRejectsBadCallbacks(t *testing.T) {
	f := newFixture(t)
	h, err := f.provider.BuildHandoff(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name    string
		result  *auth.HandoffResult
		wantErr string
	}{
		{name: "absent", result: nil, wantErr: "no response from provider"},
		{name: "provider error", result: &auth.HandoffResult{Error: "access_denied", ErrorDescription: "User cancelled", State: h.State}, wantErr: "access_denied: User cancelled"},
		{name: "provider error without description", result: &auth.HandoffResult{Error: "server_error"}, wantErr: "server_error"},
		{name: "state mismatch", result: &auth.HandoffResult{Code: "good-code", State: "forged"}, wantErr: "state mismatch"},
		{name: "empty state", result: &auth.HandoffResult{Code: "good-code"}, wantErr: "state mismatch"},
		{name: "missing code", result: &auth.HandoffResult{State: h.State}, wantErr: "missing authorization code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.provider.ExtractToken(context.Background(), h, tt.result)
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
	assert.Equal(t, int32(0), f.exchange.Load(), "bad callbacks must not reach the token endpoint")
}

func TestExtractTokenExchangeErrors(t *testing.T) {
	f := newFixture(t)
	h, err := f.provider.BuildHandoff(context.Background())
	require.NoError(t, err)

	_, err = f.provider.ExtractToken(context.Background(), h, &auth.HandoffResult{Code: "expired-code", State: h.State})
	var rej *auth.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "invalid_grant", rej.Code)
	assert.Equal(t, "invalid_grant: Bad Request", rej.Message)
}

func TestExtractTokenVerifiesIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name    string
		idToken func() string
		wantErr bool
	}{
		{name: "valid", idToken: func() string { return signIDToken(t, key, testClientID, time.Now().Add(time.Hour)) }},
		{name: "wrong audience", idToken: func() string { return signIDToken(t, key, "someone-else", time.Now().Add(time.Hour)) }, wantErr: true},
		{name: "expired", idToken: func() string { return signIDToken(t, key, testClientID, time.Now().Add(-time.Hour)) }, wantErr: true},
		{name: "missing", idToken: func() string { return "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.idToken()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				body := map[string]any{"access_token": "access-1", "token_type": "Bearer", "expires_in": 3600}
				if raw != "" {
					body["id_token"] = raw
				}
				_ = json.NewEncoder(w).Encode(body)
			}))
			defer srv.Close()

			verifier := oidc.NewVerifier(testIssuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}, &oidc.Config{ClientID: testClientID})
			p := NewWithVerifier(Config{ClientID: testClientID, RedirectPort: 8085},
				oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}, verifier, "", nil)

			h, err := p.BuildHandoff(context.Background())
			require.NoError(t, err)
			got, err := p.ExtractToken(context.Background(), h, &auth.HandoffResult{Code: "c", State: h.State})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}

func TestSignOutRevokesLastToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	raw := signIDToken(t, key, testClientID, time.Now().Add(time.Hour))

	var revoked atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "access-1", "token_type": "Bearer", "id_token": raw})
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "access-1", r.PostForm.Get("token"))
		revoked.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	verifier := oidc.NewVerifier(testIssuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}, &oidc.Config{ClientID: testClientID})
	p := NewWithVerifier(Config{ClientID: testClientID}, oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}, verifier, srv.URL+"/revoke", nil)

	// Nothing to revoke before a sign-in.
	require.NoError(t, p.SignOut(context.Background()))
	assert.Equal(t, int32(0), revoked.Load())

	h, _ := p.BuildHandoff(context.Background())
	_, err = p.ExtractToken(context.Background(), h, &auth.HandoffResult{Code: "c", State: h.State})
	require.NoError(t, err)

	require.NoError(t, p.SignOut(context.Background()))
	require.NoError(t, p.SignOut(context.Background()))
	assert.Equal(t, int32(1), revoked.Load())
}

func TestName(t *testing.T) {
	p := NewWithVerifier(Config{ClientID: testClientID}, oauth2.Endpoint{}, nil, "", nil)
	assert.Equal(t, "Google", p.Name())
	assert.Equal(t, []string{"openid", "email", "profile"}, p.oauth.Scopes)
}

func TestExtractTokenSuccess(t *testing.T) {
	f := newFixture(t)
	h, err := f.provider.BuildHandoff(context.Background())
	require.NoError(t, err)

	got, err := f.provider.ExtractToken(context.Background(), h, &auth.HandoffResult{Code: "good-code", State: h.State})
	require.NoError(t, err)
	assert.Equal(t, f.idToken, got)
	assert.Equal(t, int32(1), f.exchange.Load())

	require.NoError(t, f.provider.SignOut(context.Background()))
	assert.Equal(t, int32(1), f.revoked.Load())
}
