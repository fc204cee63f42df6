// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/flow"
	"storefront/cli/internal/terminal"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startInlineSpinner starts a simple inline spinner animation on a single line.
// It displays rotating animation frames followed by the provided text, updating
// the same line in the terminal. The cursor is hidden while it spins.
//
// Returns a function that stops the spinner and cleans up when called.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	cursor.Hide()
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				// Clear the spinner line completely, then return
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], text)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cursor.Show()
		})
	}
}

// withSpinner runs fn behind a spinner in interactive sessions.
func withSpinner(text string, fn func()) {
	if !terminal.IsInteractive() {
		fn()
		return
	}
	stop := startInlineSpinner(os.Stdout, text, spinnerFrames, 120*time.Millisecond)
	defer stop()
	fn()
}

// openBrowser attempts to open the provided URL in the user's default browser.
// It uses platform-specific commands to launch the default browser:
//   - Windows: rundll32 url.dll,FileProtocolHandler
//   - macOS: open command
//   - Linux: xdg-open command
//
// The function starts the browser process but does not wait for it to complete.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}

// terminalUI is the login screen's presenter, navigator and prompt factory.
type terminalUI struct {
	app *app
	in  *bufio.Reader
}

func newTerminalUI(a *app) *terminalUI {
	return &terminalUI{app: a, in: bufio.NewReader(os.Stdin)}
}

// Message shows a transient notice.
func (u *terminalUI) Message(text string) {
	switch {
	case strings.HasPrefix(text, "Authentication failed"):
		pterm.Println("❌ " + text)
	case text == flow.MsgMissingCredentials:
		pterm.Println("⚠️  " + text)
	default:
		pterm.Println("✅ " + text)
	}
}

// PresentHandoff prints the provider link and tries to open it.
func (u *terminalUI) PresentHandoff(h auth.Handoff) {
	pterm.Println("Open this link to continue in your browser:")
	pterm.Printf("%s\n\n", h.URL)
	openBrowser(h.URL)
	pterm.Println(pterm.NewStyle(pterm.FgGray).Sprint("Waiting for the browser to finish. Press Ctrl+C to cancel."))
}

// Home renders the storefront home view.
func (u *terminalUI) Home(ctx context.Context) error {
	var p auth.Principal
	var ok bool
	withSpinner("Loading your account", func() {
		p, ok = u.app.mgr.CurrentPrincipal(ctx)
	})

	who := "Signed in"
	if ok {
		switch {
		case p.Greeting() != "":
			who = "Signed in as " + p.Greeting()
		case p.UID != "":
			who = "Signed in as " + p.UID
		}
	}

	pterm.Println()
	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Storefront")).
		Println(who + "\n\n" +
			"  storefront whoami   show your account\n" +
			"  storefront logout   sign out of this device")
	pterm.Println()
	return nil
}

// newPrompt builds the login input. It needs an interactive terminal.
func (u *terminalUI) newPrompt() (flow.Prompt, error) {
	if !terminal.IsInteractive() {
		return nil, errors.New("login needs an interactive terminal; run 'storefront login' from a terminal")
	}
	pterm.Println(pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("Sign in to Storefront"))
	pterm.Println("  • Enter your email and password")
	if u.app.cfg.GoogleEnabled() {
		pterm.Println("  • Type " + pterm.NewStyle(pterm.FgGreen).Sprint("google") + " to continue with Google")
	}
	pterm.Println("  • Type " + pterm.NewStyle(pterm.FgRed).Sprint("q") + " to quit")
	pterm.Println()
	return &terminalPrompt{in: u.in}, nil
}

// terminalPrompt reads one submission per call from stdin.
type terminalPrompt struct {
	in *bufio.Reader
}

type lineResult struct {
	line string
	err  error
}

func (p *terminalPrompt) Next(ctx context.Context) (flow.Action, error) {
	email, err := p.readLine(ctx, "Email: ")
	if errors.Is(err, io.EOF) {
		return flow.Action{Kind: flow.ActionQuit}, nil
	}
	if err != nil {
		return flow.Action{}, err
	}

	switch strings.ToLower(email) {
	case "q", "quit", "exit":
		return flow.Action{Kind: flow.ActionQuit}, nil
	case "google", "g":
		return flow.Action{Kind: flow.ActionFederated}, nil
	}

	password, err := p.readSecret(ctx, "Password: ")
	if err != nil {
		return flow.Action{}, err
	}
	return flow.Action{
		Kind:        flow.ActionPassword,
		Credentials: auth.Credentials{Identifier: email, Secret: password},
	}, nil
}

// readLine prints prompt and reads a line; ctx cancellation abandons the read.
func (p *terminalPrompt) readLine(ctx context.Context, prompt string) (string, error) {
	fmt.Print(prompt)
	ch := make(chan lineResult, 1)
	go func() {
		s, err := p.in.ReadString('\n')
		ch <- lineResult{line: s, err: err}
	}()
	select {
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	case <-ctx.Done():
		fmt.Println()
		return "", ctx.Err()
	}
}

// readSecret reads without echo and clears the prompt afterwards.
func (p *terminalPrompt) readSecret(ctx context.Context, prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := terminal.ReadSecret(ctx)
	fmt.Println()
	if err != nil {
		return "", err
	}
	terminal.ClearPreviousLines(len(prompt))
	return secret, nil
}
