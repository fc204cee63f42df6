// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the storefront CLI.
// Running the bare command opens the storefront: signed-in users land on the
// home view straight away, everyone else gets the login screen. Subcommands
// cover login, logout, and inspecting the current session.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/cli/internal/flow"
	"storefront/cli/internal/httperrors"
	"storefront/cli/internal/logging"

	"github.com/spf13/cobra"
)

// Persistent flags shared by every command.
var (
	verbose     bool
	ephemeral   bool
	logLevel    string
	logFormat   string
	backendKind string
)

// rootCmd launches the storefront. Startup routing decides between the home
// view and the login screen from the local session flag alone.
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront CLI: sign in and browse the store from your terminal",
	Long: `Storefront opens the store in your terminal. If you signed in before, it goes
straight to the home view; otherwise it asks for your email and password, or lets
you continue with Google.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.controller().Start(ctx)
	},
}

// Execute runs the CLI application.
// Interrupts cancel the command context so waits for a callback or a backend
// reply end cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if interrupted(ctx, err) {
			stop()
			os.Exit(130)
		}
		if httperrors.IsNetworkError(err) {
			err = httperrors.FormatNetworkError(err, "contacting the identity service", "")
		}
		fmt.Fprintln(os.Stderr, logging.PresentError("storefront", err))
		stop()
		os.Exit(1)
	}
}

// interrupted reports whether err is just the command giving up after Ctrl+C.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&ephemeral, "ephemeral", false, "Keep the session in memory only; nothing is written to the keychain")
	pf.StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, off")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&backendKind, "backend", "", "Identity backend: firebase, grpc or postgres")
}

// controller builds the login screen for a.
func (a *app) controller() *flow.Controller {
	ui := newTerminalUI(a)
	return flow.New(a.mgr, ui, ui, ui.newPrompt,
		flow.WithReceiver(flow.NewLoopbackReceiver(a.log)),
		flow.WithLogger(a.log),
	)
}
