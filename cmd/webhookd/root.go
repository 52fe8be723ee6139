package main

import (
	"context"
	"fmt"

	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	lookupEnv  func(string) (string, bool)
}

// newRootCmd returns the Cobra entrypoint for the endpoint and its tooling.
func newRootCmd() *cobra.Command {
	return newRootCmdWithOptions(&rootOptions{configPath: "webhookd.yaml"})
}

func newRootCmdWithOptions(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "webhookd",
		Short: "Webhook endpoint that keeps its remote subscription reconciled",
		Long: "webhookd receives events from the remote event source, dispatches them to built-in " +
			"handlers and registers its own webhook subscription on startup.",
		Example: "  webhookd serve --config webhookd.yaml\n" +
			"  webhookd register --verify=false\n" +
			"  webhookd history --limit 10",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "Path to config file (optional)")
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newRegisterCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	return root
}

// loadConfig resolves defaults < config file < environment.
func (o *rootOptions) loadConfig(ctx context.Context) (core.Config, error) {
	cfg, err := core.LoadConfig(ctx,
		core.YAMLFileLoader{Path: o.configPath, Optional: true},
		core.EnvLoader{Lookup: o.lookupEnv},
	)
	if err != nil {
		return core.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
