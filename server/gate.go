package server

import (
	"sync"
	"time"

	"github.com/goliatone/go-webhook-endpoint/core"
)

// Gate holds business traffic until the subscription is confirmed.
type Gate struct {
	mu           sync.RWMutex
	ready        bool
	failed       bool
	alias        string
	subscription string
	since        time.Time
	reason       string
}

func NewGate() *Gate {
	return &Gate{}
}

// OpenGate returns a gate that is already open.
func OpenGate() *Gate {
	return &Gate{ready: true, since: time.Now().UTC()}
}

func (g *Gate) MarkRegistered(sub core.Subscription) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = true
	g.failed = false
	g.reason = ""
	g.alias = sub.Alias
	g.subscription = sub.ID
	g.since = time.Now().UTC()
}

// MarkFailed keeps the gate closed and records why.
func (g *Gate) MarkFailed(reason string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = false
	g.failed = true
	g.reason = reason
}

func (g *Gate) Ready() bool {
	if g == nil {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ready
}

type GateStatus struct {
	Ready          bool   `json:"ready"`
	Failed         bool   `json:"failed,omitempty"`
	Alias          string `json:"alias,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Since          string `json:"since,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

func (g *Gate) Status() GateStatus {
	if g == nil {
		return GateStatus{Ready: true}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	status := GateStatus{
		Ready:          g.ready,
		Failed:         g.failed,
		Alias:          g.alias,
		SubscriptionID: g.subscription,
		Reason:         g.reason,
	}
	if !g.since.IsZero() {
		status.Since = g.since.Format(time.RFC3339)
	}
	return status
}
