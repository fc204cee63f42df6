// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. This enables better error categorization, logging,
// and user experience by providing context-aware error information.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// making it easier to handle different types of failures appropriately.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// BackendRejected indicates the identity backend refused the credentials
	// or failed while checking them.
	BackendRejected Kind = "backend_rejected"
	// ProviderHandoffFailed indicates the federated provider result was absent,
	// malformed, or carried a provider-reported error.
	ProviderHandoffFailed Kind = "provider_handoff_failed"
	// TokenExchangeRejected indicates the backend refused a well-formed federated token.
	TokenExchangeRejected Kind = "token_exchange_rejected"
	// SignInInProgress indicates another sign-in attempt is still pending.
	SignInInProgress Kind = "sign_in_in_progress"
	// SignInSuperseded indicates a sign-out landed while the sign-in was pending.
	SignInSuperseded Kind = "sign_in_superseded"
	// StoreUnavailable indicates the local session store could not be opened or written.
	StoreUnavailable Kind = "store_unavailable"
	// ConfigInvalid indicates the CLI configuration is incomplete or inconsistent.
	ConfigInvalid Kind = "config_invalid"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

// Is matches any *E of the same kind, so callers can test against the
// package-level sentinels with errors.Is.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the human-friendly message of the first *E in err's chain,
// falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
