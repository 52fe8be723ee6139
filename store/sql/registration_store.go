package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultListLimit = 25

// RegistrationStore is the SQL registration ledger.
type RegistrationStore struct {
	db   *bun.DB
	repo repository.Repository[*registrationRecord]
	now  func() time.Time
}

func NewRegistrationStore(db *bun.DB) (*RegistrationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*registrationRecord](db, registrationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid registration repository wiring: %w", err)
		}
	}
	return &RegistrationStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *RegistrationStore) Record(ctx context.Context, entry core.RegistrationEntry) (core.RegistrationEntry, error) {
	if s == nil || s.repo == nil {
		return core.RegistrationEntry{}, fmt.Errorf("sqlstore: registration store is not configured")
	}
	record := newRegistrationRecord(entry)
	if record.Alias == "" || record.SubscriptionID == "" {
		return core.RegistrationEntry{}, fmt.Errorf("sqlstore: alias and subscription id are required")
	}
	switch core.RegistrationAction(record.Action) {
	case core.RegistrationActionCreated, core.RegistrationActionUpdated:
	default:
		return core.RegistrationEntry{}, fmt.Errorf("sqlstore: unsupported registration action %q", record.Action)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.RegistrationEntry{}, err
	}
	if created == nil {
		return record.toDomain(), nil
	}
	return created.toDomain(), nil
}

// List returns the newest entries first. An empty alias lists every alias.
func (s *RegistrationStore) List(ctx context.Context, alias string, limit int) ([]core.RegistrationEntry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: registration store is not configured")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if alias = strings.TrimSpace(alias); alias != "" {
		selectors = append(selectors, repository.SelectBy("alias", "=", alias))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.RegistrationEntry, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// Latest returns the most recent entry for alias.
func (s *RegistrationStore) Latest(ctx context.Context, alias string) (core.RegistrationEntry, bool, error) {
	entries, err := s.List(ctx, alias, 1)
	if err != nil {
		return core.RegistrationEntry{}, false, err
	}
	if len(entries) == 0 {
		return core.RegistrationEntry{}, false, nil
	}
	return entries[0], true, nil
}
