package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// SubscriptionClient reads and writes webhook subscriptions on the remote
// source. FindSubscription reports found=false when no subscription has the alias.
type SubscriptionClient interface {
	FindSubscription(ctx context.Context, alias string) (sub Subscription, found bool, err error)
	CreateSubscription(ctx context.Context, fields SubscriptionFields) (Subscription, error)
	UpdateSubscription(ctx context.Context, id string, fields SubscriptionFields) (Subscription, error)
}

type EventEmitter interface {
	EmitEvent(ctx context.Context, req EventRequest) error
}

type ResourceFetcher interface {
	FetchResource(ctx context.Context, collection string, id string) (Resource, error)
}

// RemoteClient is the full surface of the event-source API used by the
// endpoint. Implementations must be safe for concurrent use.
type RemoteClient interface {
	SubscriptionClient
	EventEmitter
	ResourceFetcher
}

// RegistrationLedger records reconcile outcomes for operators.
type RegistrationLedger interface {
	Record(ctx context.Context, entry RegistrationEntry) (RegistrationEntry, error)
	List(ctx context.Context, alias string, limit int) ([]RegistrationEntry, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}
