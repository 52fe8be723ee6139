package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-endpoint/registration"
)

var (
	_ gocmd.Commander[ReconcileMessage] = (*ReconcileCommand)(nil)
	_ gocmd.Commander[VerifyMessage]    = (*VerifyCommand)(nil)

	_ Reconciler = (*registration.Reconciler)(nil)
	_ Verifier   = (*registration.Verifier)(nil)
)
