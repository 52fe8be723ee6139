package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/goliatone/go-webhook-endpoint/registration"
)

type RegistrationReader interface {
	List(ctx context.Context, alias string, limit int) ([]core.RegistrationEntry, error)
}

type StateReader interface {
	State() registration.State
}

type ListRegistrationsQuery struct {
	reader RegistrationReader
}

func NewListRegistrationsQuery(reader RegistrationReader) *ListRegistrationsQuery {
	return &ListRegistrationsQuery{reader: reader}
}

func (q *ListRegistrationsQuery) Query(ctx context.Context, msg ListRegistrationsMessage) ([]core.RegistrationEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryNotReadyError("query: registration ledger is not configured")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	entries, err := q.reader.List(ctx, strings.TrimSpace(msg.Alias), msg.limit())
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []core.RegistrationEntry{}
	}
	return entries, nil
}

type RegistrationStateQuery struct {
	reader StateReader
}

func NewRegistrationStateQuery(reader StateReader) *RegistrationStateQuery {
	return &RegistrationStateQuery{reader: reader}
}

func (q *RegistrationStateQuery) Query(_ context.Context, _ RegistrationStateMessage) (registration.State, error) {
	if q == nil || q.reader == nil {
		return registration.State{}, queryDependencyError("query: reconciler is required")
	}
	return q.reader.State(), nil
}
