package main

import (
	"time"

	endpoint "github.com/goliatone/go-webhook-endpoint"
	"github.com/spf13/cobra"
)

type registerOutput struct {
	Alias          string    `json:"alias"`
	SubscriptionID string    `json:"subscription_id"`
	Action         string    `json:"action"`
	Events         []string  `json:"events"`
	Verified       bool      `json:"verified"`
	VerifyError    string    `json:"verify_error,omitempty"`
	At             time.Time `json:"at"`
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	verify := true
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Reconcile the webhook subscription and exit",
		Long: "Create or update the remote webhook subscription so it matches this build's handlers, " +
			"optionally emitting a verification event.",
		Example: "  webhookd register --config webhookd.yaml",
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

			result, err := ep.Register(ctx)
			if err != nil {
				return err
			}
			out := registerOutput{
				Alias:          cfg.Webhook.Alias,
				SubscriptionID: result.Subscription.ID,
				Action:         string(result.Action),
				Events:         ep.Desired().Events,
				At:             time.Now().UTC(),
			}
			if verify {
				if err := ep.Verify(ctx, result.Subscription); err != nil {
					out.VerifyError = err.Error()
				} else {
					out.Verified = true
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", verify, "Emit a webhook.test event after registering")
	return cmd
}
