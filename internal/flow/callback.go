// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package flow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/logging"

	"github.com/pterm/pterm"
)

const callbackPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Storefront</title></head>
<body style="font-family:sans-serif;text-align:center;margin-top:4em">
<h2>%s</h2><p>You can close this tab and return to the terminal.</p>
</body></html>`

// LoopbackReceiver accepts the provider's redirect on the handoff's loopback
// redirect URL. Each Listen serves one callback.
type LoopbackReceiver struct {
	log *pterm.Logger
	// listen is net.Listen, replaceable in tests.
	listen func(network, addr string) (net.Listener, error)
}

// NewLoopbackReceiver builds a receiver. log may be nil.
func NewLoopbackReceiver(log *pterm.Logger) *LoopbackReceiver {
	if log == nil {
		log = logging.Discard()
	}
	return &LoopbackReceiver{log: log, listen: net.Listen}
}

// loopbackCallback is a bound listener waiting for one matching callback.
type loopbackCallback struct {
	srv     *http.Server
	h       auth.Handoff
	results chan *auth.HandoffResult
	log     *pterm.Logger
	once    sync.Once
}

// Listen binds h.RedirectURL so the callback cannot arrive before anyone listens.
// Requests whose state does not match h are answered and ignored.
func (r *LoopbackReceiver) Listen(h auth.Handoff) (PendingCallback, error) {
	u, err := url.Parse(h.RedirectURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid redirect URL %q", h.RedirectURL)
	}
	if host := u.Hostname(); host != "127.0.0.1" && host != "localhost" && host != "::1" {
		return nil, fmt.Errorf("redirect URL %q is not a loopback address", h.RedirectURL)
	}

	ln, err := r.listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("listen for callback: %w", err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	cb := &loopbackCallback{h: h, results: make(chan *auth.HandoffResult, 1), log: r.log}
	mux := http.NewServeMux()
	mux.HandleFunc(path, cb.handle)
	cb.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := cb.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Warn("callback server stopped", r.log.Args("error", err.Error()))
		}
	}()
	r.log.Debug("listening for federated callback", r.log.Args("addr", ln.Addr().String(), "path", path))
	return cb, nil
}

func (cb *loopbackCallback) handle(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := req.URL.Query()
	res := &auth.HandoffResult{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
	if cb.h.State != "" && res.State != cb.h.State {
		cb.log.Debug("ignoring callback with unexpected state")
		http.Error(w, "this sign-in response does not belong to the running sign-in", http.StatusBadRequest)
		return
	}

	title := "Sign-in received"
	if res.Error != "" {
		title = "Sign-in was not completed"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, callbackPage, title)

	cb.once.Do(func() { cb.results <- res })
}

// Wait returns the callback. It returns nil, nil when the handoff expires or
// ctx ends first. The listener is closed either way.
func (cb *loopbackCallback) Wait(ctx context.Context) (*auth.HandoffResult, error) {
	defer cb.Close()

	var expired <-chan time.Time
	if !cb.h.ExpiresAt.IsZero() {
		t := time.NewTimer(time.Until(cb.h.ExpiresAt))
		defer t.Stop()
		expired = t.C
	}

	select {
	case res := <-cb.results:
		return res, nil
	case <-expired:
		cb.log.Debug("federated callback timed out")
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Close stops the listener.
func (cb *loopbackCallback) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return cb.srv.Shutdown(shutdownCtx)
}
