package command

import (
	"strings"

	"github.com/goliatone/go-webhook-endpoint/core"
)

const (
	TypeReconcile = "webhook.command.registration.reconcile"
	TypeVerify    = "webhook.command.registration.verify"
)

// ReconcileMessage converges the remote subscription to Desired.
type ReconcileMessage struct {
	Desired core.DesiredSubscription
}

func (ReconcileMessage) Type() string { return TypeReconcile }

func (m ReconcileMessage) Validate() error {
	if strings.TrimSpace(m.Desired.Alias) == "" {
		return commandValidationError("alias", "subscription alias is required")
	}
	if len(m.Desired.Normalized().Events) == 0 {
		return commandValidationError("events", "at least one event type is required")
	}
	return nil
}

// VerifyMessage emits the webhook.test event for Subscription.
type VerifyMessage struct {
	Subscription core.Subscription
}

func (VerifyMessage) Type() string { return TypeVerify }

func (m VerifyMessage) Validate() error {
	if strings.TrimSpace(m.Subscription.ID) == "" {
		return commandValidationError("subscription_id", "subscription id is required")
	}
	return nil
}
