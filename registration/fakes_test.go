package registration

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-endpoint/core"
)

type remoteCall struct {
	Op     string
	ID     string
	Alias  string
	Fields core.SubscriptionFields
}

// fakeRemote keeps subscriptions by alias, the way the remote source does.
type fakeRemote struct {
	mu     sync.Mutex
	byID   map[string]core.Subscription
	nextID int
	calls  []remoteCall
	events []core.EventRequest

	findErr   error
	createErr error
	updateErr error
	emitErr   error
	dropIDs   bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{byID: map[string]core.Subscription{}}
}

func (f *fakeRemote) FindSubscription(_ context.Context, alias string) (core.Subscription, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{Op: "find", Alias: alias})
	if f.findErr != nil {
		return core.Subscription{}, false, f.findErr
	}
	for _, sub := range f.byID {
		if sub.Alias == alias {
			return cloneSubscription(sub), true, nil
		}
	}
	return core.Subscription{}, false, nil
}

func (f *fakeRemote) CreateSubscription(_ context.Context, fields core.SubscriptionFields) (core.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{Op: "create", Alias: fields.Alias, Fields: cloneFields(fields)})
	if f.createErr != nil {
		return core.Subscription{}, f.createErr
	}
	if f.dropIDs {
		return core.Subscription{Alias: fields.Alias}, nil
	}
	f.nextID++
	sub := core.Subscription{
		ID:      fmt.Sprintf("sub_%d", f.nextID),
		Alias:   fields.Alias,
		URL:     fields.URL,
		Events:  append([]string(nil), fields.Events...),
		Enabled: fields.Enabled,
	}
	f.byID[sub.ID] = sub
	return cloneSubscription(sub), nil
}

func (f *fakeRemote) UpdateSubscription(_ context.Context, id string, fields core.SubscriptionFields) (core.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{Op: "update", ID: id, Alias: fields.Alias, Fields: cloneFields(fields)})
	if f.updateErr != nil {
		return core.Subscription{}, f.updateErr
	}
	sub, ok := f.byID[id]
	if !ok {
		return core.Subscription{}, fmt.Errorf("subscription %s not found", id)
	}
	sub.URL = fields.URL
	sub.Events = append([]string(nil), fields.Events...)
	sub.Enabled = fields.Enabled
	f.byID[id] = sub
	if f.dropIDs {
		return core.Subscription{}, nil
	}
	return cloneSubscription(sub), nil
}

func (f *fakeRemote) EmitEvent(_ context.Context, req core.EventRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, req)
	return f.emitErr
}

func (f *fakeRemote) seed(sub core.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[sub.ID] = cloneSubscription(sub)
}

func (f *fakeRemote) subscriptions() []core.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Subscription, 0, len(f.byID))
	for _, sub := range f.byID {
		out = append(out, cloneSubscription(sub))
	}
	return out
}

func (f *fakeRemote) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		out = append(out, call.Op)
	}
	return out
}

func (f *fakeRemote) lastCall() remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return remoteCall{}
	}
	return f.calls[len(f.calls)-1]
}

func cloneSubscription(sub core.Subscription) core.Subscription {
	sub.Events = append([]string(nil), sub.Events...)
	return sub
}

func cloneFields(fields core.SubscriptionFields) core.SubscriptionFields {
	fields.Events = append([]string(nil), fields.Events...)
	return fields
}

func remoteRejection(detail string) error {
	return goerrors.New("transport: create_subscription rejected by remote source: "+detail, goerrors.CategoryOperation).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(core.ErrorRemoteRejected)
}

func transportFailure() error {
	return goerrors.New("transport: execute http request", goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorTransportFailed)
}

type memoryLedger struct {
	mu      sync.Mutex
	entries []core.RegistrationEntry
	err     error
}

func (l *memoryLedger) Record(_ context.Context, entry core.RegistrationEntry) (core.RegistrationEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return core.RegistrationEntry{}, l.err
	}
	entry.ID = fmt.Sprintf("entry_%d", len(l.entries)+1)
	l.entries = append(l.entries, entry)
	return entry, nil
}

func (l *memoryLedger) List(_ context.Context, alias string, limit int) ([]core.RegistrationEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []core.RegistrationEntry{}
	for _, entry := range l.entries {
		if alias == "" || entry.Alias == alias {
			out = append(out, entry)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type capturingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *capturingLogger) add(level string, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg+" "+fmt.Sprint(args...))
}

func (l *capturingLogger) Trace(msg string, args ...any) { l.add("trace", msg, args...) }
func (l *capturingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args...) }
func (l *capturingLogger) Info(msg string, args ...any)  { l.add("info", msg, args...) }
func (l *capturingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args...) }
func (l *capturingLogger) Error(msg string, args ...any) { l.add("error", msg, args...) }
func (l *capturingLogger) Fatal(msg string, args ...any) { l.add("fatal", msg, args...) }

func (l *capturingLogger) WithContext(context.Context) core.Logger { return l }

func (l *capturingLogger) contains(fragment string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, fragment) {
			return true
		}
	}
	return false
}
