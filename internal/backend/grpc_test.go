// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/keychain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// identityServer answers Struct-encoded identity RPCs without generated stubs.
type identityServer struct {
	mu       sync.Mutex
	authz    map[string]string
	handlers map[string]func(req *structpb.Struct) (map[string]any, error)
}

func (s *identityServer) handle(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)

	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	s.mu.Lock()
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			s.authz[method] = v[0]
		}
	}
	h := s.handlers[method]
	s.mu.Unlock()

	if h == nil {
		return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}
	resp, err := h(req)
	if err != nil {
		return err
	}
	out, err := structpb.NewStruct(resp)
	if err != nil {
		return err
	}
	return stream.SendMsg(out)
}

func (s *identityServer) authHeader(method string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.authz[method]
	return v, ok
}

func newGRPCBackend(t *testing.T, handlers map[string]func(*structpb.Struct) (map[string]any, error)) (*GRPC, *identityServer, *keychain.Manager) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := &identityServer{handlers: handlers, authz: map[string]string{}}
	gs := grpc.NewServer(grpc.UnknownServiceHandler(srv.handle))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	tokens := newTokenCache()
	g := NewGRPC(conn, tokens, 2*time.Second, nil)
	t.Cleanup(func() { _ = g.Close() })
	return g, srv, tokens
}

func TestGRPCSignIn(t *testing.T) {
	g, srv, tokens := newGRPCBackend(t, map[string]func(*structpb.Struct) (map[string]any, error){
		methodSignIn: func(req *structpb.Struct) (map[string]any, error) {
			f := req.GetFields()
			if f["identifier"].GetStringValue() != "user@x.com" || f["secret"].GetStringValue() != "secret" {
				return nil, status.Error(codes.Unauthenticated, "invalid email or password")
			}
			return map[string]any{
				"uid":           "uid-ana",
				"display_name":  "Ana",
				"email":         "user@x.com",
				"session_token": "sess-1",
			}, nil
		},
		methodLookup: func(*structpb.Struct) (map[string]any, error) {
			return map[string]any{"uid": "uid-ana", "display_name": "Ana"}, nil
		},
	})
	ctx := context.Background()

	p, err := g.SignIn(ctx, "user@x.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.DisplayName)

	access, err := tokens.LoadAccessToken()
	require.NoError(t, err)
	assert.Equal(t, "sess-1", access)

	cur, ok, err := g.CurrentPrincipal(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "uid-ana", cur.UID)
	lookupAuth, _ := srv.authHeader(methodLookup)
	assert.Equal(t, "Bearer sess-1", lookupAuth)
	_, sentOnSignIn := srv.authHeader(methodSignIn)
	assert.False(t, sentOnSignIn, "sign-in must not carry a session token")

	_, err = g.SignIn(ctx, "user@x.com", "wrong")
	var rej *auth.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Unauthenticated", rej.Code)
	assert.Equal(t, "invalid email or password", rej.Message)
}

func TestGRPCErrorMapping(t *testing.T) {
	tests := []struct {
		code       codes.Code
		wantReject bool
	}{
		{codes.Unauthenticated, true},
		{codes.PermissionDenied, true},
		{codes.InvalidArgument, true},
		{codes.NotFound, true},
		{codes.Unavailable, false},
		{codes.Internal, false},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := grpcError(status.Error(tt.code, "boom"))
			_, isReject := err.(*auth.RejectedError)
			assert.Equal(t, tt.wantReject, isReject)
		})
	}
}

func TestGRPCExchangeAndSignOut(t *testing.T) {
	g, srv, tokens := newGRPCBackend(t, map[string]func(*structpb.Struct) (map[string]any, error){
		methodExchangeToken: func(req *structpb.Struct) (map[string]any, error) {
			f := req.GetFields()
			if f["provider"].GetStringValue() != "google.com" || f["id_token"].GetStringValue() != "tok" {
				return nil, status.Error(codes.PermissionDenied, "token not accepted")
			}
			return map[string]any{"uid": "u1", "email": "ana@x.com", "session_token": "sess-2"}, nil
		},
		methodSignOut: func(*structpb.Struct) (map[string]any, error) {
			return nil, status.Error(codes.Unavailable, "identity service draining")
		},
	})
	ctx := context.Background()

	p, err := g.ExchangeFederatedToken(ctx, "google.com", "tok")
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", p.Email)

	_, err = g.ExchangeFederatedToken(ctx, "google.com", "forged")
	var rej *auth.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "token not accepted", rej.Message)

	// Remote failure is reported but the local session is gone regardless.
	err = g.SignOut(ctx)
	require.Error(t, err)
	signOutAuth, _ := srv.authHeader(methodSignOut)
	assert.Equal(t, "Bearer sess-2", signOutAuth)
	_, err = tokens.LoadAccessToken()
	assert.ErrorIs(t, err, keychain.ErrNotFound)

	// Without a session, sign-out does not call the service.
	require.NoError(t, g.SignOut(ctx))
	_, ok, err := g.CurrentPrincipal(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGRPCLookupRejectedClearsSession(t *testing.T) {
	g, _, tokens := newGRPCBackend(t, map[string]func(*structpb.Struct) (map[string]any, error){
		methodLookup: func(*structpb.Struct) (map[string]any, error) {
			return nil, status.Error(codes.Unauthenticated, "session expired")
		},
	})
	require.NoError(t, tokens.SaveAuthTokens("stale", ""))

	_, ok, err := g.CurrentPrincipal(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = tokens.LoadAccessToken()
	assert.ErrorIs(t, err, keychain.ErrNotFound)
}
