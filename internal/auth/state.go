// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
)

// AttemptState is the lifecycle of one sign-in attempt.
type AttemptState int

const (
	Idle AttemptState = iota
	AwaitingHandoff
	Pending
	Succeeded
	Failed
)

func (s AttemptState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingHandoff:
		return "awaiting_handoff"
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal signal of an attempt: Success when Err is nil, Failure otherwise.
type Outcome struct {
	AttemptID string
	State     AttemptState
	Principal Principal
	Err       error
}

// OK reports whether the attempt succeeded.
func (o Outcome) OK() bool { return o.Err == nil && o.State == Succeeded }

// Attempt is a running sign-in. Its Result channel delivers exactly one
// Outcome and is then closed.
type Attempt struct {
	id string
	ch chan Outcome
	// superseded is set by SignOut while the attempt is pending. Guarded by Manager.mu.
	superseded bool
}

func newAttempt(id string) *Attempt {
	return &Attempt{id: id, ch: make(chan Outcome, 1)}
}

func (a *Attempt) ID() string { return a.id }

// Result returns the channel the outcome is delivered on.
// Use either Result or Wait, not both.
func (a *Attempt) Result() <-chan Outcome { return a.ch }

// Wait blocks until the outcome arrives or ctx is done.
func (a *Attempt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o, ok := <-a.ch:
		if !ok {
			return Outcome{}, context.Canceled
		}
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (a *Attempt) finish(o Outcome) {
	o.AttemptID = a.id
	a.ch <- o
	close(a.ch)
}
