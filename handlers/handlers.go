// Package handlers holds the built-in event handlers and the default
// registry the endpoint serves and registers.
package handlers

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/goliatone/go-webhook-endpoint/inbound"
)

const (
	EventProductUpdated   = "product.updated"
	EventOrderSubmitted   = "order.submitted"
	EventPaymentSucceeded = "payment.succeeded"

	CollectionProducts = "products"
	CollectionOrders   = "orders"
	CollectionPayments = "payments"
)

// WebhookTest acknowledges the verification event.
func WebhookTest(logger core.Logger) inbound.Handler {
	logger = glog.Ensure(logger)
	return inbound.HandlerFunc(func(ctx context.Context, event core.Envelope) error {
		core.Log(ctx, logger, "info", "webhook test successful", map[string]any{
			"event_type":      event.Type,
			"subscription_id": event.ResourceID(),
		})
		return nil
	})
}

// FetchResource loads the record named by data.id from collection. Fetch
// errors are returned as they are.
func FetchResource(fetcher core.ResourceFetcher, collection string, logger core.Logger) inbound.Handler {
	logger = glog.Ensure(logger)
	collection = strings.TrimSpace(collection)
	return inbound.HandlerFunc(func(ctx context.Context, event core.Envelope) error {
		if fetcher == nil {
			return core.InternalError("handlers: resource fetcher is required", map[string]any{
				"collection": collection,
			})
		}
		id := event.ResourceID()
		if id == "" {
			return core.BadInputError("handlers: event data.id is required", map[string]any{
				"event_type": event.Type,
				"collection": collection,
			})
		}
		resource, err := fetcher.FetchResource(ctx, collection, id)
		if err != nil {
			return err
		}
		core.Log(ctx, logger, "info", "fetched "+collection+" resource", map[string]any{
			"event_type":  event.Type,
			"collection":  collection,
			"resource_id": id,
			"fields":      len(resource),
		})
		return nil
	})
}

// Entries lists the built-in handlers in registration order.
func Entries(fetcher core.ResourceFetcher, logger core.Logger) []inbound.Entry {
	return []inbound.Entry{
		inbound.On(core.EventWebhookTest, WebhookTest(logger)),
		inbound.On(EventProductUpdated, FetchResource(fetcher, CollectionProducts, logger)),
		inbound.On(EventOrderSubmitted, FetchResource(fetcher, CollectionOrders, logger)),
		inbound.On(EventPaymentSucceeded, FetchResource(fetcher, CollectionPayments, logger)),
	}
}

func Default(fetcher core.ResourceFetcher, logger core.Logger) (*inbound.Registry, error) {
	return inbound.NewRegistry(Entries(fetcher, logger)...)
}
