// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package auth provides the sign-in session manager for the storefront CLI.
// It forwards credentials or a federated token to the identity backend, keeps
// the local "logged in" flag in step with the outcome, and reports each attempt
// exactly once over a channel.
//
// The manager is constructed explicitly with its backend, federated provider and
// session store. At most one attempt may be pending at a time.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "storefront/cli/internal/errors"
	"storefront/cli/internal/logging"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

// DefaultHandoffTTL bounds how long a federated sign-in waits for its callback.
const DefaultHandoffTTL = 5 * time.Minute

// Fallback diagnostic when the backend gives no reason.
const unknownPasswordError = "unknown error signing in with email"

// ErrSignInInProgress is returned when a sign-in starts while another is pending.
var ErrSignInInProgress = apperrors.New(apperrors.SignInInProgress, "a sign-in attempt is already in progress")

// Manager coordinates sign-in, sign-out and the session flag.
type Manager struct {
	backend  Backend
	provider FederatedProvider
	store    SessionStore
	log      *pterm.Logger
	ttl      time.Duration
	now      func() time.Time

	// settle orders the end of a sign-in (flag write, state, delivery) against
	// SignOut's flag write. Acquired before mu.
	settle sync.Mutex

	mu       sync.Mutex
	pending  *Attempt
	awaiting *handoffAttempt
	state    AttemptState
}

// handoffAttempt is a federated attempt waiting for its callback.
type handoffAttempt struct {
	id      string
	handoff Handoff
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *pterm.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithHandoffTTL sets how long a federated handoff stays valid.
func WithHandoffTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager. provider may be nil when federated sign-in is not configured.
func NewManager(backend Backend, provider FederatedProvider, store SessionStore, opts ...Option) *Manager {
	m := &Manager{
		backend:  backend,
		provider: provider,
		store:    store,
		log:      logging.Discard(),
		ttl:      DefaultHandoffTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SignInWithPassword forwards creds to the backend. On success the session flag
// is set before the outcome is delivered. Failures carry kind BackendRejected.
func (m *Manager) SignInWithPassword(ctx context.Context, creds Credentials) (*Attempt, error) {
	a, err := m.start()
	if err != nil {
		return nil, err
	}
	m.log.Debug("password sign-in started", m.log.Args("attempt", a.ID(), "identifier", logging.MaskEmail(creds.Identifier)))

	go m.run(ctx, a, func(ctx context.Context) (Principal, error) {
		p, err := m.backend.SignIn(ctx, creds.Identifier, creds.Secret)
		if err != nil {
			return Principal{}, apperrors.Wrap(apperrors.BackendRejected, diagnostic(err, unknownPasswordError), err)
		}
		return p, nil
	})
	return a, nil
}

// BeginFederatedSignIn asks the provider for a handoff descriptor. The caller
// presents it and later passes the provider's callback to CompleteFederatedSignIn.
// A previous attempt still awaiting its handoff is abandoned.
func (m *Manager) BeginFederatedSignIn(ctx context.Context) (Handoff, error) {
	if m.provider == nil {
		return Handoff{}, apperrors.New(apperrors.ProviderHandoffFailed, "federated sign-in is not configured")
	}

	m.mu.Lock()
	busy := m.pending != nil
	m.mu.Unlock()
	if busy {
		return Handoff{}, ErrSignInInProgress
	}

	h, err := m.provider.BuildHandoff(ctx)
	if err != nil {
		return Handoff{}, apperrors.Wrap(apperrors.ProviderHandoffFailed, m.providerFailure(diagnostic(err, "could not start sign-in")), err)
	}
	if h.ExpiresAt.IsZero() {
		h.ExpiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		return Handoff{}, ErrSignInInProgress
	}
	m.abandonLocked()
	m.awaiting = &handoffAttempt{id: uuid.NewString(), handoff: h}
	m.state = AwaitingHandoff
	m.log.Debug("federated sign-in awaiting handoff", m.log.Args("attempt", m.awaiting.id, "provider", h.Provider, "expires_at", h.ExpiresAt))
	return h, nil
}

// CompleteFederatedSignIn validates the provider's callback and exchanges the
// token with the backend. Without a usable token the attempt fails with
// ProviderHandoffFailed and the backend is never called. A refused exchange
// fails with TokenExchangeRejected.
func (m *Manager) CompleteFederatedSignIn(ctx context.Context, result *HandoffResult) (*Attempt, error) {
	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return nil, ErrSignInInProgress
	}
	aw := m.awaiting
	m.awaiting = nil
	id := uuid.NewString()
	if aw != nil {
		id = aw.id
	}
	a := newAttempt(id)
	m.pending = a
	m.state = Pending
	m.mu.Unlock()

	go m.run(ctx, a, func(ctx context.Context) (Principal, error) {
		token, err := m.extract(ctx, aw, result)
		if err != nil {
			return Principal{}, err
		}
		p, err := m.backend.ExchangeFederatedToken(ctx, aw.handoff.Provider, token)
		if err != nil {
			msg := fmt.Sprintf("%s authentication with backend failed: %s", m.providerName(), diagnostic(err, "unknown error"))
			return Principal{}, apperrors.Wrap(apperrors.TokenExchangeRejected, msg, err)
		}
		return p, nil
	})
	return a, nil
}

// extract turns the callback into a federated token or a ProviderHandoffFailed error.
func (m *Manager) extract(ctx context.Context, aw *handoffAttempt, result *HandoffResult) (string, error) {
	fail := func(reason string, err error) (string, error) {
		return "", apperrors.Wrap(apperrors.ProviderHandoffFailed, m.providerFailure(reason), err)
	}

	switch {
	case m.provider == nil:
		return fail("federated sign-in is not configured", nil)
	case aw == nil:
		return fail("no sign-in is awaiting a response", nil)
	case !m.now().Before(aw.handoff.ExpiresAt):
		return fail("the sign-in request expired", nil)
	case result == nil:
		return fail("no response from provider", nil)
	}

	token, err := m.provider.ExtractToken(ctx, aw.handoff, result)
	if err != nil {
		return fail(diagnostic(err, "invalid response from provider"), err)
	}
	if token == "" {
		return fail("provider returned no token", nil)
	}
	return token, nil
}

// AbandonFederatedSignIn drops a federated attempt still waiting for its
// callback, for example when the callback cannot be received at all.
func (m *Manager) AbandonFederatedSignIn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandonLocked()
}

// start registers a new pending attempt or rejects it when one is already pending.
func (m *Manager) start() (*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		return nil, ErrSignInInProgress
	}
	m.abandonLocked()
	a := newAttempt(uuid.NewString())
	m.pending = a
	m.state = Pending
	return a, nil
}

// abandonLocked drops an attempt still waiting for its handoff. It never gets an outcome.
func (m *Manager) abandonLocked() {
	if m.awaiting == nil {
		return
	}
	m.log.Debug("abandoning federated sign-in", m.log.Args("attempt", m.awaiting.id))
	m.awaiting = nil
	m.state = Idle
}

// run executes call, updates the flag on success, then delivers the one outcome.
// A sign-out that lands while call runs turns a success into a failure.
func (m *Manager) run(ctx context.Context, a *Attempt, call func(context.Context) (Principal, error)) {
	p, err := call(ctx)

	m.settle.Lock()
	defer m.settle.Unlock()

	m.mu.Lock()
	superseded := a.superseded
	m.mu.Unlock()

	if err == nil && superseded {
		// The user asked to be signed out; do not leave a live backend session behind.
		if soErr := m.backend.SignOut(ctx); soErr != nil {
			m.log.Warn("backend sign-out after superseded sign-in failed", m.log.Args("error", logging.Mask(soErr.Error())))
		}
		err = apperrors.New(apperrors.SignInSuperseded, "signed out before sign-in completed")
	}

	out := Outcome{State: Succeeded}
	if err != nil {
		out.State = Failed
		out.Err = err
		m.log.Info("sign-in failed", m.log.Args("attempt", a.ID(), "kind", apperrors.KindOf(err), "reason", logging.Mask(apperrors.MessageOf(err))))
	} else {
		out.Principal = p
		// The backend session is authoritative; a failed flag write only costs a
		// prompt on the next launch.
		_ = m.writeFlag(ctx, true)
		m.log.Info("signed in", m.log.Args("attempt", a.ID(), "uid", p.UID))
	}

	m.mu.Lock()
	if m.pending == a {
		m.pending = nil
	}
	m.state = out.State
	m.mu.Unlock()

	a.finish(out)
}

// IsSignedIn reports the local session flag. It never calls the backend.
func (m *Manager) IsSignedIn(ctx context.Context) bool {
	return m.readFlag(ctx)
}

// SignOut signs out of the backend and the provider, then clears the flag.
// Remote failures are logged and ignored; only a failed flag write is returned.
// A sign-in still pending ends in failure with kind SignInSuperseded; one that
// already settled is simply followed by this sign-out. Calling it again is harmless.
func (m *Manager) SignOut(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		if err := m.backend.SignOut(ctx); err != nil {
			m.log.Warn("backend sign-out failed", m.log.Args("error", logging.Mask(err.Error())))
		}
		return nil
	})
	if m.provider != nil {
		g.Go(func() error {
			if err := m.provider.SignOut(ctx); err != nil {
				m.log.Warn("provider sign-out failed", m.log.Args("provider", m.provider.Name(), "error", logging.Mask(err.Error())))
			}
			return nil
		})
	}
	_ = g.Wait()

	m.settle.Lock()
	defer m.settle.Unlock()

	m.mu.Lock()
	m.abandonLocked()
	if m.pending != nil {
		m.pending.superseded = true
	} else {
		m.state = Idle
	}
	m.mu.Unlock()

	return m.writeFlag(ctx, false)
}

// CurrentPrincipal returns the backend's signed-in identity, if any.
func (m *Manager) CurrentPrincipal(ctx context.Context) (Principal, bool) {
	p, ok, err := m.backend.CurrentPrincipal(ctx)
	if err != nil {
		m.log.Debug("current principal unavailable", m.log.Args("error", logging.Mask(err.Error())))
		return Principal{}, false
	}
	return p, ok
}

// State returns the state of the latest attempt. An expired handoff reads as Idle.
func (m *Manager) State() AttemptState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.awaiting != nil && !m.now().Before(m.awaiting.handoff.ExpiresAt) {
		m.log.Debug("federated handoff expired", m.log.Args("attempt", m.awaiting.id))
		m.awaiting = nil
		m.state = Idle
	}
	return m.state
}

func (m *Manager) providerName() string {
	if m.provider == nil {
		return "Federated"
	}
	return m.provider.Name()
}

func (m *Manager) providerFailure(reason string) string {
	return fmt.Sprintf("%s sign-in failed: %s", m.providerName(), reason)
}

// diagnostic extracts the user-facing reason from err, or fallback when there is none.
func diagnostic(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := apperrors.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}
