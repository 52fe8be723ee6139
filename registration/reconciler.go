package registration

import (
	"context"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhook-endpoint/core"
)

const (
	metricReconcileTotal    = "webhook.registration.total"
	metricReconcileDuration = "webhook.registration.duration_ms"

	operationFind   = "find"
	operationCreate = "create"
	operationUpdate = "update"
)

// Phase is the registration state of this process.
type Phase string

const (
	PhaseUnregistered Phase = "unregistered"
	PhaseRegistered   Phase = "registered"
)

// State is Unregistered until a reconcile succeeds, then Registered with the
// remote subscription id.
type State struct {
	Phase          Phase
	Alias          string
	SubscriptionID string
	Action         core.RegistrationAction
	RegisteredAt   time.Time
}

func (s State) Registered() bool {
	return s.Phase == PhaseRegistered && s.SubscriptionID != ""
}

type Result struct {
	Subscription core.Subscription
	Action       core.RegistrationAction
}

type Reconciler struct {
	client  core.SubscriptionClient
	ledger  core.RegistrationLedger
	logger  core.Logger
	metrics core.MetricsRecorder
	now     func() time.Time

	mu    sync.RWMutex
	state State
}

type Option func(*Reconciler)

func WithLogger(logger core.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(r *Reconciler) {
		r.metrics = recorder
	}
}

// WithLedger records every successful reconcile. Ledger failures are logged
// and never fail the reconcile.
func WithLedger(ledger core.RegistrationLedger) Option {
	return func(r *Reconciler) {
		r.ledger = ledger
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

func NewReconciler(client core.SubscriptionClient, opts ...Option) (*Reconciler, error) {
	if client == nil {
		return nil, registrationDependencyError("registration: subscription client is required")
	}
	r := &Reconciler{
		client:  client,
		logger:  glog.Nop(),
		metrics: core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
		state: State{Phase: PhaseUnregistered},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	r.logger = glog.Ensure(r.logger)
	if r.metrics == nil {
		r.metrics = core.NopMetricsRecorder{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

func (r *Reconciler) State() State {
	if r == nil {
		return State{Phase: PhaseUnregistered}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Reconcile looks the subscription up by alias and then either creates it or
// updates it by id. Updates replace the event set and force url and
// enabled=true. At most one lookup and one write reach the remote source.
func (r *Reconciler) Reconcile(ctx context.Context, desired core.DesiredSubscription) (result Result, err error) {
	if r == nil || r.client == nil {
		return Result{}, registrationDependencyError("registration: reconciler is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	desired = desired.Normalized()
	desired.Enabled = true
	if err := desired.Validate(); err != nil {
		return Result{}, err
	}

	startedAt := r.now()
	defer func() {
		r.observe(ctx, result.Action, err, r.now().Sub(startedAt))
	}()

	fields := map[string]any{
		"alias":  desired.Alias,
		"url":    desired.URL,
		"events": strings.Join(desired.Events, ","),
	}

	existing, found, err := r.client.FindSubscription(ctx, desired.Alias)
	if err != nil {
		err = classify(err, desired.Alias, operationFind)
		r.logFailure(ctx, operationFind, err, fields)
		return Result{}, err
	}

	if found {
		id := strings.TrimSpace(existing.ID)
		if id == "" {
			err = missingIDError(desired.Alias, operationFind)
			r.logFailure(ctx, operationFind, err, fields)
			return Result{}, err
		}
		fields["subscription_id"] = id
		updated, err := r.client.UpdateSubscription(ctx, id, desired.Fields())
		if err != nil {
			err = classify(err, desired.Alias, operationUpdate)
			r.logFailure(ctx, operationUpdate, err, fields)
			return Result{}, err
		}
		if strings.TrimSpace(updated.ID) == "" {
			err = missingIDError(desired.Alias, operationUpdate)
			r.logFailure(ctx, operationUpdate, err, fields)
			return Result{}, err
		}
		result = Result{Subscription: updated, Action: core.RegistrationActionUpdated}
	} else {
		created, err := r.client.CreateSubscription(ctx, desired.Fields())
		if err != nil {
			err = classify(err, desired.Alias, operationCreate)
			r.logFailure(ctx, operationCreate, err, fields)
			return Result{}, err
		}
		if strings.TrimSpace(created.ID) == "" {
			err = missingIDError(desired.Alias, operationCreate)
			r.logFailure(ctx, operationCreate, err, fields)
			return Result{}, err
		}
		result = Result{Subscription: created, Action: core.RegistrationActionCreated}
	}

	result.Subscription.ID = strings.TrimSpace(result.Subscription.ID)
	if result.Subscription.Alias == "" {
		result.Subscription.Alias = desired.Alias
	}
	registeredAt := r.now()
	r.mu.Lock()
	r.state = State{
		Phase:          PhaseRegistered,
		Alias:          desired.Alias,
		SubscriptionID: result.Subscription.ID,
		Action:         result.Action,
		RegisteredAt:   registeredAt,
	}
	r.mu.Unlock()

	fields["subscription_id"] = result.Subscription.ID
	fields["action"] = string(result.Action)
	core.Log(ctx, r.logger, "info", "webhook registered", fields)

	r.record(ctx, desired, result, registeredAt)
	return result, nil
}

func (r *Reconciler) record(ctx context.Context, desired core.DesiredSubscription, result Result, at time.Time) {
	if r.ledger == nil {
		return
	}
	_, err := r.ledger.Record(ctx, core.RegistrationEntry{
		Alias:          desired.Alias,
		SubscriptionID: result.Subscription.ID,
		Action:         result.Action,
		URL:            desired.URL,
		Events:         append([]string(nil), desired.Events...),
		Enabled:        desired.Enabled,
		CreatedAt:      at,
	})
	if err != nil {
		core.Log(ctx, r.logger, "warn", "registration ledger write failed", map[string]any{
			"alias":           desired.Alias,
			"subscription_id": result.Subscription.ID,
			"error":           err.Error(),
		})
	}
}

func (r *Reconciler) logFailure(ctx context.Context, operation string, err error, fields map[string]any) {
	logged := core.CloneFields(fields)
	logged["operation"] = operation
	logged["error"] = err.Error()
	logged["error_code"] = core.TextCode(err)
	core.Log(ctx, r.logger, "error", "webhook registration failed", logged)
}

func (r *Reconciler) observe(ctx context.Context, action core.RegistrationAction, err error, elapsed time.Duration) {
	status := "success"
	switch {
	case err == nil:
	case core.IsRegistrationRejected(err):
		status = "rejected"
	case core.IsTransportError(err):
		status = "transport_error"
	default:
		status = "failed"
	}
	tags := map[string]string{"status": status}
	if action != "" {
		tags["action"] = string(action)
	}
	r.metrics.IncCounter(ctx, metricReconcileTotal, 1, tags)
	r.metrics.ObserveHistogram(ctx, metricReconcileDuration, float64(elapsed.Milliseconds()), core.CloneTags(tags))
}

// Desired builds the desired subscription from the handler registry's event
// types, which stay the single source for the registered event set.
func Desired(alias string, url string, eventTypes []string) core.DesiredSubscription {
	return core.DesiredSubscription{
		Alias:   alias,
		URL:     url,
		Events:  append([]string(nil), eventTypes...),
		Enabled: true,
	}.Normalized()
}
