// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/backend"
	"storefront/cli/internal/config"
	"storefront/cli/internal/federated/google"
	"storefront/cli/internal/httperrors"
	"storefront/cli/internal/keychain"
	"storefront/cli/internal/logging"
	"storefront/cli/internal/session"

	"github.com/99designs/keyring"
	"github.com/pterm/pterm"
)

// app holds everything a command needs, wired from configuration.
type app struct {
	cfg     config.Config
	log     *pterm.Logger
	mgr     *auth.Manager
	closers []func() error
}

// newApp loads configuration, applies flags, and wires the session manager
// with its backend, provider, and store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logging.New(cfg.LogLevel, cfg.LogFormat)}

	store, closeStore, err := session.Open(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	tokens, err := openTokenCache(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	be, closeBackend, err := backend.New(ctx, cfg, tokens, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { closeBackend(); return nil })

	var provider auth.FederatedProvider
	if cfg.GoogleEnabled() {
		g, err := google.New(ctx, google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Issuer:       cfg.Google.Issuer,
			RedirectPort: cfg.Google.RedirectPort,
			Scopes:       cfg.Google.Scopes,
		}, a.log)
		if err != nil {
			// Password sign-in still works without the provider.
			reason := err.Error()
			if httperrors.IsNetworkError(err) {
				reason = httperrors.Describe(err, "discovering Google sign-in", httperrors.ExtractHostFromURL(cfg.Google.Issuer)).Title
			}
			a.log.Warn("Google sign-in unavailable", a.log.Args("error", reason))
		} else {
			provider = g
		}
	}

	a.mgr = auth.NewManager(be, provider, store,
		auth.WithLogger(a.log),
		auth.WithHandoffTTL(cfg.HandoffTTL()),
	)
	a.log.Debug("storefront ready", a.log.Args(
		"backend", cfg.Backend.Kind,
		"session_store", cfg.Session.Store,
		"google", provider != nil,
	))
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Debug("cleanup failed", a.log.Args("error", err.Error()))
	}
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if backendKind != "" {
		cfg.Backend.Kind = backendKind
	}
	if ephemeral {
		cfg.Session.Store = config.StoreMemory
	}
}

// openTokenCache returns where the backend keeps its own tokens. Ephemeral
// sessions use an in-memory keyring that disappears with the process.
func openTokenCache(cfg config.Config) (backend.TokenCache, error) {
	if cfg.Session.Store == config.StoreMemory {
		return keychain.NewManagerWithKeyring(keyring.NewArrayKeyring(nil)), nil
	}
	return session.OpenKeychain(cfg)
}
