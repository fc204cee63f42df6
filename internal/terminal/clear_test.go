// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package terminal

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/term"
)

func TestLinesFor(t *testing.T) {
	tests := []struct {
		name   string
		length int
		width  int
		want   int
	}{
		{name: "empty", length: 0, width: 80, want: 2},
		{name: "fits one line", length: 40, width: 80, want: 2},
		{name: "exact width", length: 80, width: 80, want: 2},
		{name: "wraps", length: 81, width: 80, want: 3},
		{name: "unknown width", length: 100, width: 0, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LinesFor(tt.length, tt.width); got != tt.want {
				t.Errorf("LinesFor(%d, %d) = %d, want %d", tt.length, tt.width, got, tt.want)
			}
		})
	}
}

func TestReadSecretRestoresOnCancel(t *testing.T) {
	saved := &term.State{}
	var restored *term.State
	block := make(chan struct{})
	defer close(block)

	ops := ttyOps{
		getState: func(int) (*term.State, error) { return saved, nil },
		restore:  func(_ int, st *term.State) error { restored = st; return nil },
		read: func(int) ([]byte, error) {
			<-block
			return nil, errors.New("read interrupted")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ops.readSecret(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("readSecret() error = %v, want context.Canceled", err)
	}
	if restored != saved {
		t.Errorf("terminal state was not restored after cancel")
	}
}

func TestReadSecretReturnsInput(t *testing.T) {
	restoreCalls := 0
	ops := ttyOps{
		getState: func(int) (*term.State, error) { return &term.State{}, nil },
		restore:  func(int, *term.State) error { restoreCalls++; return nil },
		read:     func(int) ([]byte, error) { return []byte("hunter2"), nil },
	}

	got, err := ops.readSecret(context.Background(), 0)
	if err != nil || got != "hunter2" {
		t.Fatalf("readSecret() = %q, %v", got, err)
	}
	if restoreCalls != 0 {
		t.Errorf("restore called %d times after a completed read", restoreCalls)
	}
}

func TestReadSecretNotATerminal(t *testing.T) {
	ops := ttyOps{
		getState: func(int) (*term.State, error) { return nil, errors.New("inappropriate ioctl for device") },
		read: func(int) ([]byte, error) {
			t.Fatal("read must not start without a saved state")
			return nil, nil
		},
	}
	if _, err := ops.readSecret(context.Background(), 0); err == nil {
		t.Fatal("readSecret() should fail when the state cannot be saved")
	}
}
