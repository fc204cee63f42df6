// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"fmt"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/config"
	apperrors "storefront/cli/internal/errors"

	"github.com/pterm/pterm"
)

// New creates the identity backend selected by cfg.Backend.Kind.
// The returned close func is never nil.
func New(ctx context.Context, cfg config.Config, tokens TokenCache, log *pterm.Logger) (auth.Backend, func(), error) {
	noop := func() {}

	switch cfg.Backend.Kind {
	case config.BackendFirebase:
		return NewHTTP(HTTPOptions{
			IdentityURL: cfg.Backend.Firebase.IdentityURL,
			TokenURL:    cfg.Backend.Firebase.TokenURL,
			APIKey:      cfg.Backend.Firebase.APIKey,
			Timeout:     cfg.BackendTimeout(),
			Tokens:      tokens,
			Logger:      log,
		}), noop, nil

	case config.BackendGRPC:
		g, err := DialGRPC(GRPCOptions{
			Addr:     cfg.Backend.GRPC.Addr,
			Insecure: cfg.Backend.GRPC.Insecure,
			Timeout:  cfg.BackendTimeout(),
			Tokens:   tokens,
			Logger:   log,
		})
		if err != nil {
			return nil, noop, err
		}
		return g, func() { _ = g.Close() }, nil

	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(ctx, cfg.BackendTimeout())
		defer cancel()
		p, closeFn, err := OpenPostgres(ctx, cfg.Backend.Postgres.DSN, tokens, log)
		if err != nil {
			return nil, noop, err
		}
		return p, closeFn, nil

	default:
		return nil, noop, apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("unknown backend kind %q", cfg.Backend.Kind))
	}
}
