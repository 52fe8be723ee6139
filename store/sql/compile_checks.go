package sqlstore

import "github.com/goliatone/go-webhook-endpoint/core"

var (
	_ core.RegistrationLedger = (*RegistrationStore)(nil)
	_ core.RegistrationLedger = (*Ledger)(nil)
)
