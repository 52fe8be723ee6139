// Package prometheus exposes core.MetricsRecorder observations as prometheus
// collectors on a dedicated registry.
package prometheus

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Definition fixes the label set of a metric. Observations carrying other
// tags are projected onto these labels; missing ones are recorded empty.
type Definition struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
}

// DefaultDefinitions covers the metrics the endpoint records.
func DefaultDefinitions() []Definition {
	durationBuckets := []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	return []Definition{
		{Name: "webhook.dispatch.total", Help: "Inbound events dispatched, by type and outcome.", Labels: []string{"event_type", "status"}},
		{Name: "webhook.dispatch.duration_ms", Help: "Handler duration in milliseconds.", Labels: []string{"event_type", "status"}, Buckets: durationBuckets},
		{Name: "webhook.registration.total", Help: "Subscription reconcile runs, by action and outcome.", Labels: []string{"action", "status"}},
		{Name: "webhook.registration.duration_ms", Help: "Reconcile duration in milliseconds.", Labels: []string{"action", "status"}, Buckets: durationBuckets},
		{Name: "webhook.verification.total", Help: "Verification events emitted, by outcome.", Labels: []string{"status"}},
		{Name: "webhook.http.requests.total", Help: "HTTP requests served, by method, route and status code.", Labels: []string{"method", "route", "code"}},
		{Name: "webhook.http.request.duration_ms", Help: "HTTP request duration in milliseconds.", Labels: []string{"method", "route", "code"}, Buckets: durationBuckets},
	}
}

type Recorder struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	mu         sync.Mutex
	defs       map[string]Definition
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

func NewRecorder(defs ...Definition) *Recorder {
	if len(defs) == 0 {
		defs = DefaultDefinitions()
	}
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry:   registry,
		factory:    promauto.With(registry),
		defs:       make(map[string]Definition, len(defs)),
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			continue
		}
		def.Labels = append([]string(nil), def.Labels...)
		r.defs[name] = def
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec, labels := r.counter(name, tags)
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec, labels := r.histogram(name, tags)
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Observe(value)
}

func (r *Recorder) counter(name string, tags map[string]string) (*prometheus.CounterVec, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.definition(name, tags)
	if !ok {
		return nil, nil
	}
	vec, exists := r.counters[def.Name]
	if !exists {
		vec = r.factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricName(def.Name),
			Help: helpText(def),
		}, def.Labels)
		r.counters[def.Name] = vec
	}
	return vec, labelValues(def.Labels, tags)
}

func (r *Recorder) histogram(name string, tags map[string]string) (*prometheus.HistogramVec, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.definition(name, tags)
	if !ok {
		return nil, nil
	}
	vec, exists := r.histograms[def.Name]
	if !exists {
		buckets := def.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		vec = r.factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricName(def.Name),
			Help:    helpText(def),
			Buckets: buckets,
		}, def.Labels)
		r.histograms[def.Name] = vec
	}
	return vec, labelValues(def.Labels, tags)
}

// definition returns the declared metric, or declares one from the first
// observation's tag keys.
func (r *Recorder) definition(name string, tags map[string]string) (Definition, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Definition{}, false
	}
	if def, ok := r.defs[name]; ok {
		def.Name = name
		return def, true
	}
	labels := make([]string, 0, len(tags))
	for key := range tags {
		if sanitized := metricName(key); sanitized != "" {
			labels = append(labels, sanitized)
		}
	}
	sort.Strings(labels)
	def := Definition{Name: name, Labels: labels}
	r.defs[name] = def
	return def, true
}

func labelValues(labels []string, tags map[string]string) []string {
	values := make([]string, len(labels))
	if len(tags) == 0 {
		return values
	}
	normalized := make(map[string]string, len(tags))
	for key, value := range tags {
		normalized[metricName(key)] = value
	}
	for i, label := range labels {
		values[i] = normalized[label]
	}
	return values
}

func helpText(def Definition) string {
	if strings.TrimSpace(def.Help) != "" {
		return def.Help
	}
	return def.Name
}

// metricName maps dotted names such as webhook.dispatch.total onto the
// prometheus charset.
func metricName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
