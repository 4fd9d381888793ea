package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atinyakov/GTDKeeper/internal/certgen"
)

func certgenCmd() *cobra.Command {
	var (
		dir      string
		hosts    []string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "certgen",
		Short: "Generate a self-signed TLS certificate for development",
		Example: `  gtdctl certgen --dir certs --host localhost --host 127.0.0.1
  gtd-server -tls-cert certs/server.crt -tls-key certs/server.key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			certPEM, keyPEM, err := certgen.GenerateSelfSigned(hosts, validFor)
			if err != nil {
				return err
			}
			certPath, keyPath, err := certgen.WriteKeyPair(dir, certPEM, keyPEM)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "certificate: %s\nkey:         %s\n", certPath, keyPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "certs", "output directory")
	cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost"}, "host name or IP the certificate is valid for (repeatable)")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "certificate lifetime")

	return cmd
}
