// Package main is gtdctl, the operator tool for a GTDKeeper installation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version holds the build version set via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gtdctl",
		Short:         "Maintenance commands for a GTDKeeper installation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migratePasswordsCmd())
	rootCmd.AddCommand(resetAdminCmd())
	rootCmd.AddCommand(certgenCmd())

	return rootCmd
}
