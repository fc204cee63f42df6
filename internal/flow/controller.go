// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package flow drives the interactive login screen. It decides at startup
// whether to show the login prompt at all, forwards what the user enters to
// the session manager, and turns each outcome into a message or a move to the
// home view.
package flow

import (
	"context"
	"strings"

	"storefront/cli/internal/auth"
	apperrors "storefront/cli/internal/errors"
	"storefront/cli/internal/logging"

	"github.com/pterm/pterm"
)

// User-facing messages.
const (
	MsgMissingCredentials = "Please enter your email and password."
	MsgSignedIn           = "Signed in successfully."
	msgWelcome            = "Welcome, "
	msgFailed             = "Authentication failed: "
)

// SessionManager is the part of auth.Manager the controller drives.
type SessionManager interface {
	IsSignedIn(ctx context.Context) bool
	SignInWithPassword(ctx context.Context, creds auth.Credentials) (*auth.Attempt, error)
	BeginFederatedSignIn(ctx context.Context) (auth.Handoff, error)
	CompleteFederatedSignIn(ctx context.Context, result *auth.HandoffResult) (*auth.Attempt, error)
	AbandonFederatedSignIn()
}

// Presenter shows transient messages and federated handoffs to the user.
type Presenter interface {
	Message(text string)
	PresentHandoff(h auth.Handoff)
}

// Navigator leaves the login screen for the authenticated area.
type Navigator interface {
	Home(ctx context.Context) error
}

// ActionKind is what the user chose on the login prompt.
type ActionKind int

const (
	ActionPassword ActionKind = iota
	ActionFederated
	ActionQuit
)

// Action is one submission from the login prompt.
type Action struct {
	Kind        ActionKind
	Credentials auth.Credentials
}

// Prompt is the login input. Next blocks until the user submits something.
type Prompt interface {
	Next(ctx context.Context) (Action, error)
}

// PromptFactory builds the login input. It is only called when the user is signed out.
type PromptFactory func() (Prompt, error)

// HandoffReceiver accepts the provider's callback for a handoff. Listen is
// called before the handoff is presented.
type HandoffReceiver interface {
	Listen(h auth.Handoff) (PendingCallback, error)
}

// PendingCallback is a receiver ready for one callback.
type PendingCallback interface {
	// Wait returns the callback. A nil result with a nil error means the
	// provider never answered.
	Wait(ctx context.Context) (*auth.HandoffResult, error)
	Close() error
}

// Controller is the login screen.
type Controller struct {
	mgr       SessionManager
	present   Presenter
	nav       Navigator
	newPrompt PromptFactory
	receiver  HandoffReceiver
	log       *pterm.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithReceiver sets the federated callback receiver. Without one, federated
// sign-in is reported as unavailable.
func WithReceiver(r HandoffReceiver) Option {
	return func(c *Controller) { c.receiver = r }
}

// WithLogger sets the logger.
func WithLogger(l *pterm.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a Controller.
func New(mgr SessionManager, present Presenter, nav Navigator, newPrompt PromptFactory, opts ...Option) *Controller {
	c := &Controller{
		mgr:       mgr,
		present:   present,
		nav:       nav,
		newPrompt: newPrompt,
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start routes the launch. A signed-in user goes straight home and the prompt
// is never built; everyone else gets the login loop.
func (c *Controller) Start(ctx context.Context) error {
	if c.mgr.IsSignedIn(ctx) {
		c.log.Debug("session flag set, skipping login")
		return c.nav.Home(ctx)
	}

	prompt, err := c.newPrompt()
	if err != nil {
		return err
	}
	return c.loop(ctx, prompt)
}

// loop reads submissions until one signs the user in, the user quits, or ctx ends.
func (c *Controller) loop(ctx context.Context, prompt Prompt) error {
	for {
		action, err := prompt.Next(ctx)
		if err != nil {
			return err
		}

		var ok bool
		switch action.Kind {
		case ActionQuit:
			return nil
		case ActionPassword:
			ok, err = c.SubmitPassword(ctx, action.Credentials)
		case ActionFederated:
			ok, err = c.SignInWithProvider(ctx)
		}
		if err != nil {
			return err
		}
		if ok {
			return c.nav.Home(ctx)
		}
	}
}

// SubmitPassword signs in with creds and reports whether it succeeded. Empty
// fields are rejected locally and never reach the manager. The returned error
// is only set when ctx ends while waiting.
func (c *Controller) SubmitPassword(ctx context.Context, creds auth.Credentials) (bool, error) {
	creds.Identifier = strings.TrimSpace(creds.Identifier)
	creds.Secret = strings.TrimSpace(creds.Secret)
	if creds.Identifier == "" || creds.Secret == "" {
		c.present.Message(MsgMissingCredentials)
		return false, nil
	}

	attempt, err := c.mgr.SignInWithPassword(ctx, creds)
	if err != nil {
		c.fail(err)
		return false, nil
	}
	return c.await(ctx, attempt)
}

// SignInWithProvider runs the federated sign-in: start listening, present the
// handoff, wait for the callback, then exchange it.
func (c *Controller) SignInWithProvider(ctx context.Context) (bool, error) {
	if c.receiver == nil {
		c.fail(apperrors.New(apperrors.ProviderHandoffFailed, "federated sign-in is not available here"))
		return false, nil
	}

	h, err := c.mgr.BeginFederatedSignIn(ctx)
	if err != nil {
		c.fail(err)
		return false, nil
	}

	pending, err := c.receiver.Listen(h)
	if err != nil {
		c.mgr.AbandonFederatedSignIn()
		c.fail(apperrors.Wrap(apperrors.ProviderHandoffFailed, "cannot receive the sign-in response: "+err.Error(), err))
		return false, nil
	}
	c.present.PresentHandoff(h)

	result, err := pending.Wait(ctx)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		c.log.Warn("federated callback failed", c.log.Args("error", logging.Mask(err.Error())))
		result = nil
	}

	attempt, err := c.mgr.CompleteFederatedSignIn(ctx, result)
	if err != nil {
		c.fail(err)
		return false, nil
	}
	return c.await(ctx, attempt)
}

func (c *Controller) await(ctx context.Context, attempt *auth.Attempt) (bool, error) {
	out, err := attempt.Wait(ctx)
	if err != nil {
		return false, err
	}
	if !out.OK() {
		c.fail(out.Err)
		return false, nil
	}
	c.present.Message(WelcomeMessage(out.Principal))
	return true, nil
}

func (c *Controller) fail(err error) {
	c.present.Message(FailureMessage(err))
}

// WelcomeMessage greets p by display name, then email, then generically.
func WelcomeMessage(p auth.Principal) string {
	if name := p.Greeting(); name != "" {
		return msgWelcome + name
	}
	return MsgSignedIn
}

// FailureMessage renders a failed attempt for the user. Secrets are masked.
func FailureMessage(err error) string {
	msg := apperrors.MessageOf(err)
	if msg == "" {
		msg = "unknown error"
	}
	return msgFailed + logging.Mask(msg)
}
