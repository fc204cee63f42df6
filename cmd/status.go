// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// statusCmd prints the local session state and the active configuration
// without contacting the identity service.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local session state and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"Setting", "Value"},
			{"Signed in", strconv.FormatBool(a.mgr.IsSignedIn(ctx))},
			{"Sign-in state", a.mgr.State().String()},
			{"Backend", a.cfg.Backend.Kind},
			{"Session store", a.cfg.Session.Store},
			{"Google sign-in", strconv.FormatBool(a.cfg.GoogleEnabled())},
		}).Render()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
