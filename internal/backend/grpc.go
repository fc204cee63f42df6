// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/logging"

	"github.com/pterm/pterm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of the identity service. Requests and responses are
// google.protobuf.Struct so no generated stubs are needed.
const (
	methodSignIn        = "/storefront.identity.v1.Identity/SignIn"
	methodExchangeToken = "/storefront.identity.v1.Identity/ExchangeToken"
	methodSignOut       = "/storefront.identity.v1.Identity/SignOut"
	methodLookup        = "/storefront.identity.v1.Identity/Lookup"
)

// GRPC implements auth.Backend against a gRPC identity service.
// The session token it returns is kept in the TokenCache and sent as a bearer
// token on SignOut and Lookup.
type GRPC struct {
	conn    *grpc.ClientConn
	tokens  TokenCache
	timeout time.Duration
	log     *pterm.Logger
}

// GRPCOptions configures DialGRPC.
type GRPCOptions struct {
	Addr     string
	Insecure bool
	Timeout  time.Duration
	Tokens   TokenCache
	Logger   *pterm.Logger
}

// DialGRPC creates a client for the identity service at opts.Addr.
// The connection is established lazily on the first call.
func DialGRPC(opts GRPCOptions) (*GRPC, error) {
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if opts.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(opts.Addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", opts.Addr, err)
	}
	return NewGRPC(conn, opts.Tokens, opts.Timeout, opts.Logger), nil
}

// NewGRPC wraps an existing connection.
func NewGRPC(conn *grpc.ClientConn, tokens TokenCache, timeout time.Duration, log *pterm.Logger) *GRPC {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logging.Discard()
	}
	return &GRPC{conn: conn, tokens: tokens, timeout: timeout, log: log}
}

// Close releases the connection.
func (g *GRPC) Close() error { return g.conn.Close() }

func (g *GRPC) SignIn(ctx context.Context, identifier, secret string) (auth.Principal, error) {
	resp, err := g.call(ctx, methodSignIn, map[string]any{
		"identifier": identifier,
		"secret":     secret,
	}, false)
	if err != nil {
		return auth.Principal{}, err
	}
	g.remember(resp)
	return principalFromStruct(resp), nil
}

func (g *GRPC) ExchangeFederatedToken(ctx context.Context, provider, token string) (auth.Principal, error) {
	resp, err := g.call(ctx, methodExchangeToken, map[string]any{
		"provider": provider,
		"id_token": token,
	}, false)
	if err != nil {
		return auth.Principal{}, err
	}
	g.remember(resp)
	return principalFromStruct(resp), nil
}

// SignOut revokes the session remotely, then drops the local token even if that failed.
func (g *GRPC) SignOut(ctx context.Context) error {
	var remoteErr error
	if g.hasSession() {
		_, remoteErr = g.call(ctx, methodSignOut, map[string]any{}, true)
	}
	if g.tokens != nil {
		if err := g.tokens.ClearAuth(); err != nil {
			return err
		}
	}
	return remoteErr
}

func (g *GRPC) CurrentPrincipal(ctx context.Context) (auth.Principal, bool, error) {
	if !g.hasSession() {
		return auth.Principal{}, false, nil
	}
	resp, err := g.call(ctx, methodLookup, map[string]any{}, true)
	if err != nil {
		if _, ok := err.(*auth.RejectedError); ok {
			_ = g.tokens.ClearAuth()
			return auth.Principal{}, false, nil
		}
		return auth.Principal{}, false, err
	}
	return principalFromStruct(resp), true, nil
}

// call invokes method with req encoded as a Struct. withSession attaches the stored token.
func (g *GRPC) call(ctx context.Context, method string, req map[string]any, withSession bool) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if withSession && g.tokens != nil {
		if token, err := g.tokens.LoadAccessToken(); err == nil {
			ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		}
	}

	out := &structpb.Struct{}
	g.log.Trace("identity rpc", g.log.Args("method", method))
	if err := g.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, grpcError(err)
	}
	return out, nil
}

func (g *GRPC) hasSession() bool {
	if g.tokens == nil {
		return false
	}
	_, err := g.tokens.LoadAccessToken()
	return err == nil
}

func (g *GRPC) remember(resp *structpb.Struct) {
	if g.tokens == nil {
		return
	}
	fields := resp.GetFields()
	access := fields["session_token"].GetStringValue()
	refresh := fields["refresh_token"].GetStringValue()
	if access == "" {
		return
	}
	if err := g.tokens.SaveAuthTokens(access, refresh); err != nil {
		g.log.Warn("could not persist identity tokens", g.log.Args("error", err))
	}
}

func principalFromStruct(s *structpb.Struct) auth.Principal {
	f := s.GetFields()
	return auth.Principal{
		UID:         f["uid"].GetStringValue(),
		DisplayName: f["display_name"].GetStringValue(),
		Email:       f["email"].GetStringValue(),
	}
}

// grpcError maps refusal status codes to *auth.RejectedError; other errors pass through.
func grpcError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument, codes.NotFound:
		return reject(st.Code().String(), st.Message())
	default:
		return err
	}
}
