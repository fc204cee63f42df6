// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/dsn"
	"storefront/cli/internal/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pterm/pterm"
	"golang.org/x/crypto/bcrypt"
)

// Queries against the self-hosted account schema:
//
//	accounts(id text primary key, email text unique, display_name text, password_hash text)
//	federated_identities(provider text, subject text, account_id text references accounts(id))
const (
	queryByEmail = `SELECT id, email, display_name, password_hash
		FROM accounts WHERE lower(email) = lower($1)`
	queryByID = `SELECT id, email, display_name
		FROM accounts WHERE id = $1`
	queryByFederated = `SELECT a.id, a.email, a.display_name
		FROM federated_identities f JOIN accounts a ON a.id = f.account_id
		WHERE f.provider = $1 AND f.subject = $2`
)

// Same diagnostic for unknown email and wrong password.
const invalidCredentials = "The email or password is incorrect."

// Querier is the subset of pgxpool.Pool the adapter uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements auth.Backend over a local account table with bcrypt hashes.
// The signed-in account id is kept in the TokenCache.
type Postgres struct {
	db     Querier
	tokens TokenCache
	log    *pterm.Logger
}

// OpenPostgres normalizes rawDSN, connects a pool and returns the adapter with its close func.
func OpenPostgres(ctx context.Context, rawDSN string, tokens TokenCache, log *pterm.Logger) (*Postgres, func(), error) {
	info, err := dsn.Parse(rawDSN)
	if err != nil {
		return nil, nil, err
	}
	if log == nil {
		log = logging.Discard()
	}

	cfg, err := pgxpool.ParseConfig(info.String())
	if err != nil {
		return nil, nil, fmt.Errorf("postgres config: %w", err)
	}
	cfg.MaxConns = 2
	cfg.MaxConnIdleTime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", info.Redacted(), err)
	}
	log.Debug("postgres identity backend ready", log.Args("dsn", info.Redacted()))
	return NewPostgres(pool, tokens, log), pool.Close, nil
}

// NewPostgres wraps an existing pool or fake.
func NewPostgres(db Querier, tokens TokenCache, log *pterm.Logger) *Postgres {
	if log == nil {
		log = logging.Discard()
	}
	return &Postgres{db: db, tokens: tokens, log: log}
}

func (p *Postgres) SignIn(ctx context.Context, identifier, secret string) (auth.Principal, error) {
	var (
		pr   auth.Principal
		name *string
		hash string
	)
	err := p.db.QueryRow(ctx, queryByEmail, identifier).Scan(&pr.UID, &pr.Email, &name, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Principal{}, reject("INVALID_LOGIN_CREDENTIALS", invalidCredentials)
	}
	if err != nil {
		return auth.Principal{}, fmt.Errorf("look up account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return auth.Principal{}, reject("INVALID_LOGIN_CREDENTIALS", invalidCredentials)
	}
	if name != nil {
		pr.DisplayName = *name
	}
	p.remember(pr.UID)
	return pr, nil
}

// ExchangeFederatedToken links the ID token's subject to an account.
// The token's signature and audience were verified by the provider adapter that
// produced it; only the claims are read here.
func (p *Postgres) ExchangeFederatedToken(ctx context.Context, provider, token string) (auth.Principal, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.Subject == "" {
		return auth.Principal{}, reject("INVALID_IDP_RESPONSE", "The supplied auth credential is malformed or has expired.")
	}

	pr, err := p.scanPrincipal(p.db.QueryRow(ctx, queryByFederated, provider, claims.Subject))
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Principal{}, reject("USER_NOT_FOUND", "No account is linked to this "+provider+" identity.")
	}
	if err != nil {
		return auth.Principal{}, fmt.Errorf("look up federated identity: %w", err)
	}
	p.remember(pr.UID)
	return pr, nil
}

func (p *Postgres) SignOut(ctx context.Context) error {
	if p.tokens == nil {
		return nil
	}
	return p.tokens.ClearAuth()
}

func (p *Postgres) CurrentPrincipal(ctx context.Context) (auth.Principal, bool, error) {
	if p.tokens == nil {
		return auth.Principal{}, false, nil
	}
	id, err := p.tokens.LoadAccessToken()
	if err != nil {
		return auth.Principal{}, false, nil
	}
	pr, err := p.scanPrincipal(p.db.QueryRow(ctx, queryByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		_ = p.tokens.ClearAuth()
		return auth.Principal{}, false, nil
	}
	if err != nil {
		return auth.Principal{}, false, err
	}
	return pr, true, nil
}

func (p *Postgres) scanPrincipal(row pgx.Row) (auth.Principal, error) {
	var (
		pr   auth.Principal
		name *string
	)
	if err := row.Scan(&pr.UID, &pr.Email, &name); err != nil {
		return auth.Principal{}, err
	}
	if name != nil {
		pr.DisplayName = *name
	}
	return pr, nil
}

func (p *Postgres) remember(accountID string) {
	if p.tokens == nil {
		return
	}
	if err := p.tokens.SaveAuthTokens(accountID, ""); err != nil {
		p.log.Warn("could not persist account session", p.log.Args("error", err))
	}
}
