// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"storefront/cli/internal/auth"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// whoamiCmd shows the account the identity backend reports for this device.
var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"me"},
	Short:   "Show the signed-in account",
	Long: `The whoami command asks the identity service who is signed in on this device.

If the local session says you are signed out, the service is not contacted.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.mgr.IsSignedIn(ctx) {
			printSignedOut()
			return nil
		}

		var p auth.Principal
		var ok bool
		withSpinner("Checking your session", func() {
			p, ok = a.mgr.CurrentPrincipal(ctx)
		})
		if !ok {
			pterm.Println("⚠️  Your session is no longer valid.")
			pterm.Println("   Run 'storefront login' to sign in again.")
			return nil
		}

		name := p.Greeting()
		if name == "" {
			name = p.UID
		}
		pterm.Println("👤 Current user: " + name)
		if p.Email != "" && p.Email != name {
			pterm.Println("   Email: " + p.Email)
		}
		return nil
	},
}

func printSignedOut() {
	pterm.Println("🔒 You're not logged in yet!")
	pterm.Println("   Run 'storefront login' to get started.")
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
