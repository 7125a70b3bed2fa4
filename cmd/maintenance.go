package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBreakerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breaker",
		Short: "Inspect or reset the circuit breaker",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Close the circuit breaker and clear its failure count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.breaker().Reset(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("Circuit breaker reset")
			fmt.Fprintln(cmd.OutOrStdout(), "circuit breaker reset")
			return nil
		},
	})
	return cmd
}

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the credential cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the cached credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cache().Clear(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("Credential cache cleared")
			fmt.Fprintln(cmd.OutOrStdout(), "credential cache cleared")
			return nil
		},
	})
	return cmd
}
