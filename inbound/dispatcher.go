package inbound

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhook-endpoint/core"
)

const (
	metricDispatchTotal    = "webhook.dispatch.total"
	metricDispatchDuration = "webhook.dispatch.duration_ms"

	statusHandled     = "handled"
	statusFailed      = "failed"
	statusUnknownType = "unknown_type"
)

type Dispatcher struct {
	registry *Registry
	logger   core.Logger
	metrics  core.MetricsRecorder
	now      func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = recorder
	}
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, inboundInternal("inbound: dispatcher requires a handler registry", nil)
	}
	d := &Dispatcher{
		registry: registry,
		logger:   glog.Nop(),
		metrics:  core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(d)
	}
	d.logger = glog.Ensure(d.logger)
	if d.metrics == nil {
		d.metrics = core.NopMetricsRecorder{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

func (d *Dispatcher) Registry() *Registry {
	if d == nil {
		return nil
	}
	return d.registry
}

// Dispatch logs the received event, then runs the handler registered for its
// type and waits for it. A handler error is returned as is.
func (d *Dispatcher) Dispatch(ctx context.Context, event core.Envelope) (err error) {
	if d == nil || d.registry == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := d.now()
	fields := eventFields(event)
	fields["received_at"] = startedAt.Format(time.RFC3339Nano)
	core.Log(ctx, d.logger, "info", "received "+displayType(event.Type)+" for "+event.Target(), withPayload(fields, event))

	handler, ok := d.registry.Lookup(event.Type)
	if !ok {
		unknownErr := unknownEventTypeError(event)
		fields["error"] = unknownErr.Error()
		fields["registered_types"] = strings.Join(d.registry.Types(), ",")
		core.Log(ctx, d.logger, "error", "no handler registered for event type; registry and remote subscription have drifted", fields)
		d.observe(ctx, event.Type, statusUnknownType, startedAt)
		return unknownErr
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = inboundError(
				fmt.Sprintf("inbound: handler for %q panicked: %v", event.Type, recovered),
				goerrors.CategoryOperation,
				core.ErrorHandlerFailed,
				eventMetadata(event),
			)
			fields["error"] = err.Error()
			core.Log(ctx, d.logger, "error", "event handler panicked", fields)
			d.observe(ctx, event.Type, statusFailed, startedAt)
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		fields["error"] = err.Error()
		fields["duration_ms"] = d.now().Sub(startedAt).Milliseconds()
		core.Log(ctx, d.logger, "error", "event handler failed", fields)
		d.observe(ctx, event.Type, statusFailed, startedAt)
		return err
	}

	fields["duration_ms"] = d.now().Sub(startedAt).Milliseconds()
	core.Log(ctx, d.logger, "debug", "event handled", fields)
	d.observe(ctx, event.Type, statusHandled, startedAt)
	return nil
}

func (d *Dispatcher) observe(ctx context.Context, eventType string, status string, startedAt time.Time) {
	tags := map[string]string{
		"event_type": metricEventType(d.registry, eventType),
		"status":     status,
	}
	d.metrics.IncCounter(ctx, metricDispatchTotal, 1, tags)
	d.metrics.ObserveHistogram(ctx, metricDispatchDuration, float64(d.now().Sub(startedAt).Milliseconds()), core.CloneTags(tags))
}

// metricEventType keeps label cardinality bounded by collapsing unregistered
// types into one value.
func metricEventType(registry *Registry, eventType string) string {
	if _, ok := registry.Lookup(eventType); ok {
		return eventType
	}
	return "unregistered"
}

func eventFields(event core.Envelope) map[string]any {
	return map[string]any{
		"event_type":  event.Type,
		"model":       event.Model,
		"resource_id": event.ResourceID(),
	}
}

func withPayload(fields map[string]any, event core.Envelope) map[string]any {
	out := core.CloneFields(fields)
	out["payload"] = event.Payload()
	return out
}

func eventMetadata(event core.Envelope) map[string]any {
	metadata := map[string]any{"event_type": event.Type}
	if event.Model != "" {
		metadata["model"] = event.Model
	}
	if id := event.ResourceID(); id != "" {
		metadata["resource_id"] = id
	}
	return metadata
}

func displayType(eventType string) string {
	if strings.TrimSpace(eventType) == "" {
		return "<untyped event>"
	}
	return eventType
}
