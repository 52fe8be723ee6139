package core

import (
	"strings"
	"time"
)

const (
	// EventWebhookTest is the reserved self-test event type.
	EventWebhookTest = "webhook.test"
	// WebhooksModel is the remote collection that holds webhook subscriptions.
	WebhooksModel = ":webhooks"
)

// Subscription is the remote webhook record. ID is assigned by the remote
// source and never changes once created; Alias is the lookup key.
type Subscription struct {
	ID          string   `json:"id"`
	Alias       string   `json:"alias,omitempty"`
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Enabled     bool     `json:"enabled"`
	DateCreated string   `json:"date_created,omitempty"`
	DateUpdated string   `json:"date_updated,omitempty"`
}

// SubscriptionFields is the writable part of a subscription.
type SubscriptionFields struct {
	Alias   string
	URL     string
	Events  []string
	Enabled bool
}

// DesiredSubscription is the configuration a reconcile run converges the
// remote subscription to.
type DesiredSubscription struct {
	Alias   string
	URL     string
	Events  []string
	Enabled bool
}

func (d DesiredSubscription) Normalized() DesiredSubscription {
	out := DesiredSubscription{
		Alias:   strings.TrimSpace(d.Alias),
		URL:     strings.TrimSpace(d.URL),
		Enabled: d.Enabled,
		Events:  make([]string, 0, len(d.Events)),
	}
	seen := make(map[string]struct{}, len(d.Events))
	for _, event := range d.Events {
		trimmed := strings.TrimSpace(event)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out.Events = append(out.Events, trimmed)
	}
	return out
}

func (d DesiredSubscription) Validate() error {
	if strings.TrimSpace(d.Alias) == "" {
		return BadInputError("core: subscription alias is required", nil)
	}
	if len(d.Normalized().Events) == 0 {
		return BadInputError("core: at least one event type is required", map[string]any{
			"alias": strings.TrimSpace(d.Alias),
		})
	}
	return nil
}

func (d DesiredSubscription) Fields() SubscriptionFields {
	return SubscriptionFields{
		Alias:   d.Alias,
		URL:     d.URL,
		Events:  append([]string(nil), d.Events...),
		Enabled: d.Enabled,
	}
}

// EventRequest is an outbound event sent to the remote source.
type EventRequest struct {
	Type  string
	Model string
	Data  map[string]any
}

// Resource is a record fetched from a remote collection.
type Resource map[string]any

func (r Resource) ID() string {
	return stringValue(r["id"])
}

type RegistrationAction string

const (
	RegistrationActionCreated RegistrationAction = "created"
	RegistrationActionUpdated RegistrationAction = "updated"
)

// RegistrationEntry is one recorded reconcile outcome.
type RegistrationEntry struct {
	ID             string             `json:"id"`
	Alias          string             `json:"alias"`
	SubscriptionID string             `json:"subscription_id"`
	Action         RegistrationAction `json:"action"`
	URL            string             `json:"url"`
	Events         []string           `json:"events"`
	Enabled        bool               `json:"enabled"`
	CreatedAt      time.Time          `json:"created_at"`
}
