package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/goliatone/go-webhook-endpoint/registration"
)

type Reconciler interface {
	Reconcile(ctx context.Context, desired core.DesiredSubscription) (registration.Result, error)
}

type Verifier interface {
	Verify(ctx context.Context, subscription core.Subscription) error
}

type ReconcileCommand struct {
	reconciler Reconciler
}

func NewReconcileCommand(reconciler Reconciler) *ReconcileCommand {
	return &ReconcileCommand{reconciler: reconciler}
}

func (c *ReconcileCommand) Execute(ctx context.Context, msg ReconcileMessage) error {
	if c == nil || c.reconciler == nil {
		return commandDependencyError("command: reconciler is required")
	}
	out, err := c.reconciler.Reconcile(ctx, msg.Desired)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type VerifyCommand struct {
	verifier Verifier
}

func NewVerifyCommand(verifier Verifier) *VerifyCommand {
	return &VerifyCommand{verifier: verifier}
}

func (c *VerifyCommand) Execute(ctx context.Context, msg VerifyMessage) error {
	if c == nil || c.verifier == nil {
		return commandDependencyError("command: verifier is required")
	}
	return c.verifier.Verify(ctx, msg.Subscription)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
