// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package google implements auth.FederatedProvider for Google sign-in using the
// OAuth 2.0 authorization code flow with PKCE and a loopback redirect. The ID
// token returned by the token endpoint is verified with OpenID Connect before it
// is handed to the identity backend.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/logging"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pterm/pterm"
	"golang.org/x/oauth2"
)

const (
	// ProviderID is how identity backends name Google.
	ProviderID = "google.com"

	displayName  = "Google"
	callbackPath = "/callback"
)

// Config holds Google OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Issuer       string
	RedirectPort int
	Scopes       []string
	HTTPClient   *http.Client
}

// DefaultScopes returns the scopes requested when none are configured.
func DefaultScopes() []string {
	return []string{oidc.ScopeOpenID, "email", "profile"}
}

// Provider implements auth.FederatedProvider.
type Provider struct {
	oauth     *oauth2.Config
	verifier  *oidc.IDTokenVerifier
	revokeURL string
	client    *http.Client
	log       *pterm.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

var _ auth.FederatedProvider = (*Provider)(nil)

// New discovers the issuer's endpoints and builds the provider.
func New(ctx context.Context, cfg Config, log *pterm.Logger) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google oauth config missing client id")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "https://accounts.google.com"
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}

	op, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}
	var meta struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	_ = op.Claims(&meta)

	verifier := op.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return NewWithVerifier(cfg, op.Endpoint(), verifier, meta.RevocationEndpoint, log), nil
}

// NewWithVerifier builds a provider from explicit endpoints, skipping discovery.
func NewWithVerifier(cfg Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier, revokeURL string, log *pterm.Logger) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	if log == nil {
		log = logging.Discard()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  RedirectURL(cfg.RedirectPort),
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		verifier:  verifier,
		revokeURL: revokeURL,
		client:    client,
		log:       log,
	}
}

// RedirectURL is the loopback address Google redirects the browser to.
func RedirectURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath)
}

func (p *Provider) Name() string { return displayName }

// BuildHandoff returns the authorization URL with a fresh state and PKCE verifier.
func (p *Provider) BuildHandoff(ctx context.Context) (auth.Handoff, error) {
	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()

	u := p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return auth.Handoff{
		Provider:    ProviderID,
		URL:         u,
		State:       state,
		Verifier:    verifier,
		RedirectURL: p.oauth.RedirectURL,
	}, nil
}

// ExtractToken checks the callback against h, exchanges the code and returns
// the verified raw ID token. Provider-reported errors are returned verbatim.
func (p *Provider) ExtractToken(ctx context.Context, h auth.Handoff, r *auth.HandoffResult) (string, error) {
	switch {
	case r == nil:
		return "", errors.New("no response from provider")
	case r.Error != "":
		msg := r.Error
		if r.ErrorDescription != "" {
			msg += ": " + r.ErrorDescription
		}
		return "", &auth.RejectedError{Code: r.Error, Message: msg}
	case r.State == "" || r.State != h.State:
		return "", errors.New("state mismatch")
	case strings.TrimSpace(r.Code) == "":
		return "", errors.New("missing authorization code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.oauth.Exchange(ctx, r.Code, oauth2.VerifierOption(h.Verifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return "", &auth.RejectedError{Code: re.ErrorCode, Message: strings.TrimSpace(re.ErrorCode + ": " + re.ErrorDescription)}
		}
		return "", fmt.Errorf("google token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", errors.New("google did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("google id_token verification failed: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("google id_token claims parse failed: %w", err)
	}
	p.log.Debug("google oidc verified", p.log.Args(
		"issuer", idToken.Issuer,
		"email", logging.MaskEmail(claims.Email),
		"email_verified", claims.EmailVerified,
		"expiry_unix", idToken.Expiry.Unix(),
	))

	p.mu.Lock()
	p.last = token
	p.mu.Unlock()
	return rawIDToken, nil
}

// SignOut revokes the access token from the last sign-in, if this process holds one.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	tok := p.last
	p.last = nil
	p.mu.Unlock()

	if tok == nil || tok.AccessToken == "" || p.revokeURL == "" {
		return nil
	}

	form := url.Values{"token": {tok.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("google revoke: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google revoke: status %d", resp.StatusCode)
	}
	return nil
}
