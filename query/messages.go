package query

import (
	"strings"
)

const (
	TypeListRegistrations = "webhook.query.registration.list"
	TypeRegistrationState = "webhook.query.registration.state"

	defaultHistoryLimit = 25
	maxHistoryLimit     = 500
)

// ListRegistrationsMessage asks for recorded reconcile outcomes of one alias,
// newest first. A zero limit uses the default page size.
type ListRegistrationsMessage struct {
	Alias string
	Limit int
}

func (ListRegistrationsMessage) Type() string { return TypeListRegistrations }

func (m ListRegistrationsMessage) Validate() error {
	if strings.TrimSpace(m.Alias) == "" {
		return queryValidationError("alias", "alias is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Limit > maxHistoryLimit {
		return queryValidationError("limit", "limit must be <= 500")
	}
	return nil
}

func (m ListRegistrationsMessage) limit() int {
	if m.Limit <= 0 {
		return defaultHistoryLimit
	}
	return m.Limit
}

type RegistrationStateMessage struct{}

func (RegistrationStateMessage) Type() string { return TypeRegistrationState }
