// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package flow

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"storefront/cli/internal/auth"
)

// preboundReceiver returns a receiver that serves on an already bound listener,
// and the redirect URL pointing at it.
func preboundReceiver(t *testing.T) (*LoopbackReceiver, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	r := NewLoopbackReceiver(nil)
	r.listen = func(network, addr string) (net.Listener, error) { return ln, nil }
	return r, "http://" + ln.Addr().String() + "/callback"
}

type received struct {
	res *auth.HandoffResult
	err error
}

func waitAsync(cb PendingCallback) <-chan received {
	done := make(chan received, 1)
	go func() {
		res, err := cb.Wait(context.Background())
		done <- received{res, err}
	}()
	return done
}

func get(t *testing.T, u string) int {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoopbackReceiverDeliversCallback(t *testing.T) {
	r, redirect := preboundReceiver(t)
	h := auth.Handoff{RedirectURL: redirect, State: "s1", ExpiresAt: time.Now().Add(time.Minute)}

	cb, err := r.Listen(h)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := waitAsync(cb)

	if code := get(t, redirect+"?code=abc&state=s1"); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("Wait() error = %v", got.err)
		}
		if got.res == nil || got.res.Code != "abc" || got.res.State != "s1" {
			t.Errorf("Wait() = %+v", got.res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return")
	}
}

func TestLoopbackReceiverIgnoresForeignState(t *testing.T) {
	r, redirect := preboundReceiver(t)
	h := auth.Handoff{RedirectURL: redirect, State: "s1", ExpiresAt: time.Now().Add(time.Minute)}

	cb, err := r.Listen(h)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := waitAsync(cb)

	if code := get(t, redirect+"?code=stray&state=other"); code != http.StatusBadRequest {
		t.Errorf("foreign state status = %d, want 400", code)
	}
	select {
	case got := <-done:
		t.Fatalf("Wait() returned %+v for a foreign state", got.res)
	case <-time.After(50 * time.Millisecond):
	}

	if code := get(t, redirect+"?error=access_denied&state=s1"); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	select {
	case got := <-done:
		if got.res == nil || got.res.Error != "access_denied" {
			t.Errorf("Wait() = %+v, want the matching callback", got.res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return")
	}
}

func TestLoopbackReceiverExpires(t *testing.T) {
	r, redirect := preboundReceiver(t)
	h := auth.Handoff{RedirectURL: redirect, ExpiresAt: time.Now().Add(50 * time.Millisecond)}

	cb, err := r.Listen(h)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	res, err := cb.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if res != nil {
		t.Errorf("Wait() = %+v, want nil", res)
	}
}

func TestLoopbackReceiverPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	r := NewLoopbackReceiver(nil)
	_, err = r.Listen(auth.Handoff{RedirectURL: "http://" + busy.Addr().String() + "/callback"})
	if err == nil || !strings.Contains(err.Error(), "listen for callback") {
		t.Fatalf("Listen() error = %v, want a listen failure", err)
	}
}

func TestLoopbackReceiverRejectsRemoteRedirect(t *testing.T) {
	tests := []string{
		"https://storefront.example/callback",
		"::not a url",
	}
	for _, u := range tests {
		t.Run(u, func(t *testing.T) {
			r := NewLoopbackReceiver(nil)
			if _, err := r.Listen(auth.Handoff{RedirectURL: u}); err == nil {
				t.Errorf("Listen(%q) should fail", u)
			}
		})
	}
}
