// Package main is the entry point for the storefront CLI application.
// It signs users in to the store and routes them to the home view.
package main

import (
	"storefront/cli/cmd"
)

// main is the entry point for the storefront CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
