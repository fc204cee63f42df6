// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides utilities for terminal operations such as clearing
// prompts and reading hidden input.
package terminal

import (
	"context"
	"math"
	"os"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

// Width returns the terminal width, or 80 when stdout is not a terminal.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// LinesFor returns how many terminal lines textLength characters occupy at width,
// plus the line the cursor moved to when the user pressed Enter.
func LinesFor(textLength, width int) int {
	if width <= 0 {
		width = 80
	}
	lines := int(math.Ceil(float64(textLength) / float64(width)))
	if lines < 1 {
		lines = 1
	}
	return lines + 1
}

// ClearPreviousLines clears a prompt and the user's answer after Enter.
// textLength is the prompt length plus the input length.
func ClearPreviousLines(textLength int) {
	cursor.ClearLinesUp(LinesFor(textLength, Width()))
	cursor.StartOfLine()
}

// ttyOps are the terminal calls ReadSecret makes; replaced in tests.
type ttyOps struct {
	getState func(fd int) (*term.State, error)
	restore  func(fd int, st *term.State) error
	read     func(fd int) ([]byte, error)
}

var stdinTTY = ttyOps{getState: term.GetState, restore: term.Restore, read: term.ReadPassword}

// ReadSecret reads a line from the terminal without echo. If ctx ends first the
// terminal state saved before the read is restored, so an interrupt never
// leaves the shell with echo off.
func ReadSecret(ctx context.Context) (string, error) {
	return stdinTTY.readSecret(ctx, int(os.Stdin.Fd()))
}

func (o ttyOps) readSecret(ctx context.Context, fd int) (string, error) {
	st, err := o.getState(fd)
	if err != nil {
		return "", err
	}

	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := o.read(fd)
		ch <- result{b: b, err: err}
	}()

	select {
	case r := <-ch:
		return string(r.b), r.err
	case <-ctx.Done():
		_ = o.restore(fd, st)
		return "", ctx.Err()
	}
}
