package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/authguard/internal/credentials"
)

func newCredentialsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "credentials",
		Short: "Print credentials in the credential_process format (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentials(cmd, opts)
		},
	}
}

// runCredentials writes exactly one JSON object to stdout on success and
// nothing otherwise.
func runCredentials(cmd *cobra.Command, opts *rootOptions) error {
	a, err := newApp(cmd, opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	f, err := a.fetcher()
	if err != nil {
		a.logger.Error("Failed to initialize", slog.String("error", err.Error()))
		return err
	}

	set, source, err := f.Fetch(cmd.Context())
	if err != nil {
		a.logger.Error("Failed to retrieve credentials", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("Credentials issued", slog.String("source", string(source)),
		slog.String("expiration", set.Expiration))

	return credentials.WriteProcessOutput(cmd.OutOrStdout(), set)
}
