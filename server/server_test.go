package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/goliatone/go-webhook-endpoint/inbound"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []core.Envelope
	err    error
	panic  any
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event core.Envelope) error {
	if d.panic != nil {
		panic(d.panic)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.err
}

func newTestServer(t *testing.T, dispatcher Dispatcher, opts ...Option) *httptest.Server {
	t.Helper()
	srv, err := New(dispatcher, opts...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url string, body string) (int, string) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	payload, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(payload)
}

func TestWebhook_SuccessReturnsEmpty200(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	ts := newTestServer(t, dispatcher)

	status, body := post(t, ts.URL+"/", `{"type":"order.submitted","model":"orders","data":{"id":"ord_42"}}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, body)
	}
	if body != "" {
		t.Fatalf("expected empty body, got %q", body)
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].ResourceID() != "ord_42" {
		t.Fatalf("expected dispatched envelope, got %+v", dispatcher.events)
	}
}

func TestWebhook_DispatchFailureReturns500WithDetail(t *testing.T) {
	dispatcher := &recordingDispatcher{err: errors.New("remote lookup failed")}
	ts := newTestServer(t, dispatcher)

	status, body := post(t, ts.URL+"/", `{"type":"order.submitted","data":{"id":"ord_42"}}`)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if !strings.Contains(body, "remote lookup failed") {
		t.Fatalf("expected error detail in body, got %q", body)
	}
}

func TestWebhook_MalformedBodyReturns500(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	ts := newTestServer(t, dispatcher)

	cases := map[string]string{
		`{not json`:          "not a json object",
		`{"model":"orders"}`: "event type is required",
		``:                   "event body is empty",
	}
	for body, detail := range cases {
		status, payload := post(t, ts.URL+"/", body)
		if status != http.StatusInternalServerError {
			t.Fatalf("expected 500 for %q, got %d", body, status)
		}
		if !strings.Contains(payload, detail) {
			t.Fatalf("expected %q in body for %q, got %q", detail, body, payload)
		}
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("expected no dispatch for malformed bodies")
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &recordingDispatcher{})

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.StatusCode)
	}
	if res.Header.Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow: POST, got %q", res.Header.Get("Allow"))
	}
}

func TestWebhook_RootPathDoesNotCatchAll(t *testing.T) {
	ts := newTestServer(t, &recordingDispatcher{})

	status, _ := post(t, ts.URL+"/elsewhere", `{"type":"webhook.test"}`)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", status)
	}
}

func TestWebhook_CustomPath(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	ts := newTestServer(t, dispatcher, WithWebhookPath("/hooks/schema"))

	status, _ := post(t, ts.URL+"/hooks/schema", `{"type":"webhook.test"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on custom path, got %d", status)
	}
}

func TestWebhook_GateHoldsTrafficUntilRegistered(t *testing.T) {
	gate := NewGate()
	dispatcher := &recordingDispatcher{}
	ts := newTestServer(t, dispatcher, WithGate(gate))

	status, _ := post(t, ts.URL+"/", `{"type":"webhook.test"}`)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before registration, got %d", status)
	}

	gate.MarkRegistered(core.Subscription{ID: "sub_1", Alias: "acme"})
	status, _ = post(t, ts.URL+"/", `{"type":"webhook.test"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200 after registration, got %d", status)
	}
}

func TestWebhook_BodyLimit(t *testing.T) {
	ts := newTestServer(t, &recordingDispatcher{}, WithMaxBodyBytes(32))

	status, _ := post(t, ts.URL+"/", `{"type":"webhook.test","data":{"id":"`+strings.Repeat("x", 64)+`"}}`)
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", status)
	}
}

func TestWebhook_PanicIsRecovered(t *testing.T) {
	ts := newTestServer(t, &recordingDispatcher{panic: "boom"})

	status, body := post(t, ts.URL+"/", `{"type":"webhook.test"}`)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", status)
	}
	if !strings.Contains(body, "boom") {
		t.Fatalf("expected panic detail, got %q", body)
	}

	status, _ = post(t, ts.URL+"/healthz", "")
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected server to keep serving, got %d", status)
	}
}

func TestHealth_ReportsRegistration(t *testing.T) {
	gate := NewGate()
	ts := newTestServer(t, &recordingDispatcher{}, WithGate(gate))
	gate.MarkRegistered(core.Subscription{ID: "sub_1", Alias: "acme"})

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var payload healthResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if payload.Status != "ok" || !payload.Registration.Ready || payload.Registration.SubscriptionID != "sub_1" {
		t.Fatalf("unexpected health payload %+v", payload)
	}
}

func TestMetricsHandlerIsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "webhook_dispatch_total 1\n")
	})
	ts := newTestServer(t, &recordingDispatcher{}, WithMetricsHandler("/metrics", metrics))

	res, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "webhook_dispatch_total") {
		t.Fatalf("expected metrics output, got %q", body)
	}
}

func TestNew_RejectsCollidingPath(t *testing.T) {
	if _, err := New(&recordingDispatcher{}, WithWebhookPath("/healthz")); err == nil {
		t.Fatalf("expected collision error")
	}
	if _, err := New(nil); err == nil {
		t.Fatalf("expected dispatcher error")
	}
}

func TestScenario_DispatchThroughRegistry(t *testing.T) {
	var received core.Envelope
	registry := inbound.MustRegistry(
		inbound.On("webhook.test", inbound.HandlerFunc(func(context.Context, core.Envelope) error { return nil })),
		inbound.On("order.submitted", inbound.HandlerFunc(func(_ context.Context, event core.Envelope) error {
			received = event
			return nil
		})),
	)
	dispatcher, err := inbound.NewDispatcher(registry)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	ts := newTestServer(t, dispatcher)

	status, body := post(t, ts.URL+"/", `{"type":"order.submitted","model":"orders","data":{"id":"ord_42"}}`)
	if status != http.StatusOK || body != "" {
		t.Fatalf("expected empty 200, got %d %q", status, body)
	}
	if received.Type != "order.submitted" || received.Model != "orders" || received.ResourceID() != "ord_42" {
		t.Fatalf("unexpected envelope %+v", received)
	}

	status, body = post(t, ts.URL+"/", `{"type":"customer.deleted","data":{"id":"c_1"}}`)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unknown type, got %d", status)
	}
	if !strings.Contains(body, "unable to handle customer.deleted event") {
		t.Fatalf("unexpected error body %q", body)
	}
}
