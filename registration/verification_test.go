package registration

import (
	"context"
	"reflect"
	"testing"

	"github.com/goliatone/go-webhook-endpoint/core"
)

func TestVerifier_EmitsWebhookTest(t *testing.T) {
	remote := newFakeRemote()
	verifier, err := NewVerifier(remote)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	if err := verifier.Verify(context.Background(), core.Subscription{ID: "sub_1", Alias: "acme"}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(remote.events) != 1 {
		t.Fatalf("expected one emitted event, got %d", len(remote.events))
	}
	want := core.EventRequest{
		Type:  "webhook.test",
		Model: ":webhooks",
		Data:  map[string]any{"id": "sub_1"},
	}
	if !reflect.DeepEqual(remote.events[0], want) {
		t.Fatalf("unexpected event %#v", remote.events[0])
	}
}

func TestVerifier_FailureIsReturnedAndLogged(t *testing.T) {
	remote := newFakeRemote()
	remote.emitErr = transportFailure()
	logger := &capturingLogger{}
	verifier, err := NewVerifier(remote, WithVerifierLogger(logger))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	err = verifier.Verify(context.Background(), core.Subscription{ID: "sub_1"})
	if !core.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !logger.contains("webhook verification event failed") {
		t.Fatalf("expected failure to be logged")
	}
}

func TestVerifier_RequiresSubscriptionID(t *testing.T) {
	remote := newFakeRemote()
	verifier, _ := NewVerifier(remote)
	if err := verifier.Verify(context.Background(), core.Subscription{}); !core.IsBadInput(err) {
		t.Fatalf("expected bad input, got %v", err)
	}
	if len(remote.events) != 0 {
		t.Fatalf("expected no event emitted")
	}
}

func TestReconcileThenVerifyScenario(t *testing.T) {
	remote := newFakeRemote()
	reconciler := newTestReconciler(t, remote)
	verifier, _ := NewVerifier(remote)

	result, err := reconciler.Reconcile(context.Background(), Desired("acme", "https://x/hook", []string{"webhook.test", "order.submitted"}))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if err := verifier.Verify(context.Background(), result.Subscription); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := remote.ops(); !reflect.DeepEqual(got, []string{"find", "create"}) {
		t.Fatalf("unexpected remote calls %v", got)
	}
	if len(remote.events) != 1 || remote.events[0].Data["id"] != "sub_1" {
		t.Fatalf("expected webhook.test for sub_1, got %#v", remote.events)
	}
}
