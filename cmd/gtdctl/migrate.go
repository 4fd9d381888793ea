package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atinyakov/GTDKeeper/internal/repository"
)

func migratePasswordsCmd() *cobra.Command {
	var usersPath string

	cmd := &cobra.Command{
		Use:   "migrate-passwords",
		Short: "Hash plaintext passwords left in a legacy users.json",
		Long: `Rewrites every plaintext password in users.json as a salted PBKDF2 hash.

A copy of the original file is written next to it with a .backup suffix.
To roll back, move the backup over users.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := repository.MigratePasswords(usersPath)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", usersPath, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup saved to %s\n", res.Backup)
			fmt.Fprintf(out, "Migrated:       %d %s\n", len(res.Migrated), names(res.Migrated))
			fmt.Fprintf(out, "Already hashed: %d %s\n", len(res.AlreadyHashed), names(res.AlreadyHashed))
			fmt.Fprintf(out, "Awaiting setup: %d %s\n", len(res.Pending), names(res.Pending))
			return nil
		},
	}

	cmd.Flags().StringVar(&usersPath, "users", "data/users.json", "path to users.json")

	return cmd
}

func names(list []string) string {
	if len(list) == 0 {
		return ""
	}
	sorted := slices.Clone(list)
	slices.Sort(sorted)
	return "(" + strings.Join(sorted, ", ") + ")"
}
