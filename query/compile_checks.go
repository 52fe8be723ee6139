package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/goliatone/go-webhook-endpoint/registration"
)

var (
	_ gocmd.Querier[ListRegistrationsMessage, []core.RegistrationEntry] = (*ListRegistrationsQuery)(nil)
	_ gocmd.Querier[RegistrationStateMessage, registration.State]       = (*RegistrationStateQuery)(nil)

	_ StateReader = (*registration.Reconciler)(nil)
)
