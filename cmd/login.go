// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var loginWithGoogle bool

// loginCmd signs in with email and password, or with Google.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Sign in with email and password, or with Google",
	Long: `The login command signs you in to the storefront. By default it asks for your
email and password. With --google it opens Google sign-in in your browser and waits
for it to redirect back to this machine.

If this device is already signed in, the command goes straight to the home view.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		c := a.controller()
		if !loginWithGoogle {
			return c.Start(ctx)
		}

		if a.mgr.IsSignedIn(ctx) {
			pterm.Println("Already signed in.")
			return newTerminalUI(a).Home(ctx)
		}
		if err := googleLoginResult(c.SignInWithProvider(ctx)); err != nil {
			return err
		}
		return newTerminalUI(a).Home(ctx)
	},
}

// errGoogleLogin is returned when Google sign-in ends without a session; the
// reason has already been shown to the user.
var errGoogleLogin = errors.New("sign-in with Google did not complete")

// googleLoginResult makes a failed federated sign-in a failed command.
func googleLoginResult(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errGoogleLogin
	}
	return nil
}

func init() {
	loginCmd.Flags().BoolVar(&loginWithGoogle, "google", false, "Sign in with Google in your browser")
	rootCmd.AddCommand(loginCmd)
}
