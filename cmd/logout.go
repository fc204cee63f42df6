// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// logoutCmd signs out of the identity backend and Google, then clears the
// local session flag.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of this device",
	Long: `The logout command signs you out of the identity service and of Google, and
clears the local session so the next launch shows the login screen.

Remote sign-out is best-effort: if the service cannot be reached you are still
signed out locally.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		withSpinner("Signing out", func() {
			err = a.mgr.SignOut(ctx)
		})
		if err != nil {
			pterm.Println("⚠️  Could not clear the local session")
			return err
		}

		pterm.Println("✅ Signed out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
