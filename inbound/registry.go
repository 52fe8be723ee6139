package inbound

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-webhook-endpoint/core"
)

type Handler interface {
	Handle(ctx context.Context, event core.Envelope) error
}

type HandlerFunc func(ctx context.Context, event core.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, event core.Envelope) error {
	return f(ctx, event)
}

// Entry binds one event type to its handler.
type Entry struct {
	Type    string
	Handler Handler
}

func On(eventType string, handler Handler) Entry {
	return Entry{Type: eventType, Handler: handler}
}

// Registry is the closed event type -> handler table. It is also the only
// source for the event set a subscription is registered with.
type Registry struct {
	types    []string
	handlers map[string]Handler
}

func NewRegistry(entries ...Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, inboundBadInput("inbound: registry requires at least one handler", nil)
	}
	registry := &Registry{
		types:    make([]string, 0, len(entries)),
		handlers: make(map[string]Handler, len(entries)),
	}
	for i, entry := range entries {
		eventType := strings.TrimSpace(entry.Type)
		if eventType == "" {
			return nil, inboundBadInput(
				fmt.Sprintf("inbound: entry %d has an empty event type", i),
				map[string]any{"index": i},
			)
		}
		if entry.Handler == nil {
			return nil, inboundBadInput(
				fmt.Sprintf("inbound: handler for %q is nil", eventType),
				map[string]any{"event_type": eventType},
			)
		}
		if _, exists := registry.handlers[eventType]; exists {
			return nil, inboundBadInput(
				fmt.Sprintf("inbound: handler already registered for %q", eventType),
				map[string]any{"event_type": eventType},
			)
		}
		registry.types = append(registry.types, eventType)
		registry.handlers[eventType] = entry.Handler
	}
	return registry, nil
}

// MustRegistry panics on invalid entries; intended for static tables.
func MustRegistry(entries ...Entry) *Registry {
	registry, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return registry
}

func (r *Registry) Lookup(eventType string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	handler, ok := r.handlers[eventType]
	return handler, ok
}

// Types returns the registered event types in declaration order.
func (r *Registry) Types() []string {
	if r == nil {
		return []string{}
	}
	return append([]string(nil), r.types...)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.types)
}
