package main

import (
	endpoint "github.com/goliatone/go-webhook-endpoint"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	limit := 25
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List recorded registrations for the configured alias",
		Long:    "Print the registration ledger, newest first. Requires ledger.driver and ledger.dsn.",
		Example: "  webhookd history --limit 10",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig(ctx)
			if err != nil {
				return err
			}
			ep, err := endpoint.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer ep.Close()

			entries, err := ep.History(ctx, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", limit, "Maximum number of entries")
	return cmd
}
