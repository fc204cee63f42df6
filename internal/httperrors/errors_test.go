// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package httperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "context deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: Timeout},
		{name: "grpc deadline", err: status.Error(codes.DeadlineExceeded, "slow"), want: Timeout},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "identitytoolkit.googleapis.com"}, want: DNS},
		{name: "refused", err: errors.New("dial tcp 127.0.0.1:50051: connect: connection refused"), want: ConnectionRefused},
		{name: "tls", err: errors.New("x509: certificate signed by unknown authority"), want: TLS},
		{name: "server", err: errors.New("identity backend: 503 service unavailable"), want: Server},
		{name: "other", err: errors.New("unexpected EOF"), want: Generic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Describe(tt.err, "signing in", "")
			if d.Category != tt.want {
				t.Errorf("Describe() category = %q, want %q", d.Category, tt.want)
			}
			if d.Title == "" {
				t.Errorf("Describe() title is empty")
			}
		})
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "no healthy upstream"), want: true},
		{name: "grpc unauthenticated", err: status.Error(codes.Unauthenticated, "bad password"), want: false},
		{name: "refused", err: errors.New("connection refused"), want: true},
		{name: "rejection text", err: errors.New("The password is invalid."), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNetworkError(tt.err); got != tt.want {
				t.Errorf("IsNetworkError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractHostFromURL(t *testing.T) {
	if got := ExtractHostFromURL("https://identitytoolkit.googleapis.com/v1"); got != "identitytoolkit.googleapis.com" {
		t.Errorf("ExtractHostFromURL() = %q", got)
	}
	if got := ExtractHostFromURL("::bad"); got != "server" {
		t.Errorf("ExtractHostFromURL(bad) = %q", got)
	}
}
