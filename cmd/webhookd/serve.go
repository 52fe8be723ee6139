package main

import (
	"context"
	"os/signal"
	"syscall"

	endpoint "github.com/goliatone/go-webhook-endpoint"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook endpoint",
		Long: "Listen for events, register the webhook subscription with the remote source and " +
			"send a verification event. Exits non-zero when registration fails.",
		Example: "  webhookd serve --config webhookd.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.ValidateForRegistration(); err != nil {
		return err
	}
	ep, err := endpoint.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer ep.Close()
	return ep.Run(ctx)
}
