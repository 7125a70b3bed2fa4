package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "authguard",
		Short: "Credential process helper for AWS IoT role aliases",
		Long: `authguard exchanges a device certificate for temporary AWS credentials
through the AWS IoT credentials provider and prints them in the
credential_process format. Credentials are cached on disk until shortly
before they expire, and a circuit breaker stops repeated calls to a failing
endpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentials(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to authguard.toml (default: /etc/authguard/authguard.toml or ./authguard.toml)")

	root.AddCommand(
		newCredentialsCmd(opts),
		newStatusCmd(opts),
		newBreakerCmd(opts),
		newCacheCmd(opts),
		newWhoamiCmd(opts),
		newDaemonCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the authguard version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "authguard %s\n", version)
		},
	}
}
