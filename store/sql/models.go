package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/uptrace/bun"
)

type registrationRecord struct {
	bun.BaseModel `bun:"table:webhook_registrations,alias:wr"`

	ID             string    `bun:"id,pk"`
	Alias          string    `bun:"alias,notnull"`
	SubscriptionID string    `bun:"subscription_id,notnull"`
	Action         string    `bun:"action,notnull"`
	URL            string    `bun:"url,notnull"`
	Events         []string  `bun:"events,type:jsonb,notnull"`
	Enabled        bool      `bun:"enabled,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newRegistrationRecord(entry core.RegistrationEntry) *registrationRecord {
	events := append([]string(nil), entry.Events...)
	if events == nil {
		events = []string{}
	}
	return &registrationRecord{
		ID:             strings.TrimSpace(entry.ID),
		Alias:          strings.TrimSpace(entry.Alias),
		SubscriptionID: strings.TrimSpace(entry.SubscriptionID),
		Action:         strings.TrimSpace(string(entry.Action)),
		URL:            strings.TrimSpace(entry.URL),
		Events:         events,
		Enabled:        entry.Enabled,
		CreatedAt:      entry.CreatedAt.UTC(),
	}
}

func (r *registrationRecord) toDomain() core.RegistrationEntry {
	if r == nil {
		return core.RegistrationEntry{}
	}
	return core.RegistrationEntry{
		ID:             r.ID,
		Alias:          r.Alias,
		SubscriptionID: r.SubscriptionID,
		Action:         core.RegistrationAction(r.Action),
		URL:            r.URL,
		Events:         append([]string(nil), r.Events...),
		Enabled:        r.Enabled,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}
