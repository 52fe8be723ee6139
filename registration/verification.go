package registration

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhook-endpoint/core"
)

const metricVerificationTotal = "webhook.verification.total"

// Verifier sends the self-test event for a registered subscription. The
// remote source delivers it back to this endpoint as a webhook.test event.
type Verifier struct {
	emitter core.EventEmitter
	logger  core.Logger
	metrics core.MetricsRecorder
	timeout time.Duration
}

type VerifierOption func(*Verifier)

func WithVerifierLogger(logger core.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func WithVerifierMetrics(recorder core.MetricsRecorder) VerifierOption {
	return func(v *Verifier) {
		v.metrics = recorder
	}
}

// WithVerifierTimeout bounds the emit call independently of the caller.
func WithVerifierTimeout(timeout time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.timeout = timeout
	}
}

func NewVerifier(emitter core.EventEmitter, opts ...VerifierOption) (*Verifier, error) {
	if emitter == nil {
		return nil, registrationDependencyError("registration: event emitter is required")
	}
	v := &Verifier{
		emitter: emitter,
		logger:  glog.Nop(),
		metrics: core.NopMetricsRecorder{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(v)
	}
	v.logger = glog.Ensure(v.logger)
	if v.metrics == nil {
		v.metrics = core.NopMetricsRecorder{}
	}
	return v, nil
}

// VerificationEvent is the webhook.test event for subscription.
func VerificationEvent(subscription core.Subscription) core.EventRequest {
	return core.EventRequest{
		Type:  core.EventWebhookTest,
		Model: core.WebhooksModel,
		Data:  map[string]any{"id": strings.TrimSpace(subscription.ID)},
	}
}

// Verify emits the verification event. The error is logged here and returned
// for the caller to inspect; callers must not treat it as fatal.
func (v *Verifier) Verify(ctx context.Context, subscription core.Subscription) error {
	if v == nil || v.emitter == nil {
		return registrationDependencyError("registration: verifier is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id := strings.TrimSpace(subscription.ID)
	if id == "" {
		return core.BadInputError("registration: verification requires a subscription id", map[string]any{
			"alias": subscription.Alias,
		})
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	fields := map[string]any{
		"subscription_id": id,
		"alias":           subscription.Alias,
		"event_type":      core.EventWebhookTest,
	}
	if err := v.emitter.EmitEvent(ctx, VerificationEvent(subscription)); err != nil {
		fields["error"] = err.Error()
		fields["error_code"] = core.TextCode(err)
		core.Log(ctx, v.logger, "warn", "webhook verification event failed", fields)
		v.metrics.IncCounter(ctx, metricVerificationTotal, 1, map[string]string{"status": "failed"})
		return err
	}
	core.Log(ctx, v.logger, "info", "webhook verification event sent", fields)
	v.metrics.IncCounter(ctx, metricVerificationTotal, 1, map[string]string{"status": "sent"})
	return nil
}
