package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atinyakov/GTDKeeper/internal/db"
	"github.com/atinyakov/GTDKeeper/internal/models"
	"github.com/atinyakov/GTDKeeper/internal/repository"
	"github.com/atinyakov/GTDKeeper/internal/service"
)

func resetAdminCmd() *cobra.Command {
	var dataDir, dsn string

	cmd := &cobra.Command{
		Use:   "reset-admin",
		Short: "Clear the admin password so the next login sets a new one",
		Long: `Recovers a lost admin password without a running server.

The admin account is flagged for password setup; log in as admin with an
empty password afterwards to choose a new one. Point the command at the
same storage the server uses, either --data or --dsn.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var creds service.CredentialRepository
			switch {
			case dataDir != "" && dsn != "":
				return errors.New("use either --data or --dsn, not both")
			case dsn != "":
				conn, err := db.InitPostgres(dsn)
				if err != nil {
					return err
				}
				defer conn.Close()
				creds = repository.NewPostgresCredentialRepository(conn)
			case dataDir != "":
				creds = repository.NewFileCredentialRepository(dataDir)
			default:
				return errors.New("one of --data or --dsn is required")
			}

			if err := resetAdmin(cmd.Context(), creds); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "admin password cleared; log in as admin with an empty password to set a new one")
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", "", "data directory of the file backend")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string")

	return cmd
}

// resetAdmin flags the admin account for password setup, recreating it if
// it was lost.
func resetAdmin(ctx context.Context, creds service.CredentialRepository) error {
	err := creds.UpdateAccount(ctx, models.AdminUsername, func(acc *models.Account) error {
		acc.PasswordHash = nil
		acc.NeedsPasswordReset = true
		acc.IsAdmin = true
		return nil
	})
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return creds.CreateAccount(ctx, models.Account{
		Username:           models.AdminUsername,
		IsAdmin:            true,
		NeedsPasswordReset: true,
	})
}
