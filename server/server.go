// Package server exposes the webhook endpoint over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhook-endpoint/core"
)

const (
	defaultMaxBodyBytes int64 = 1 << 20
	healthPath                = "/healthz"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, event core.Envelope) error
}

type Server struct {
	dispatcher   Dispatcher
	gate         *Gate
	logger       core.Logger
	metrics      core.MetricsRecorder
	webhookPath  string
	metricsPath  string
	metricsHTTP  http.Handler
	maxBodyBytes int64
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(s *Server) {
		s.metrics = recorder
	}
}

// WithMetricsHandler serves handler at path, typically a prometheus scrape
// endpoint.
func WithMetricsHandler(path string, handler http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = strings.TrimSpace(path)
		s.metricsHTTP = handler
	}
}

func WithGate(gate *Gate) Option {
	return func(s *Server) {
		s.gate = gate
	}
}

func WithWebhookPath(path string) Option {
	return func(s *Server) {
		s.webhookPath = strings.TrimSpace(path)
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = limit
	}
}

func New(dispatcher Dispatcher, opts ...Option) (*Server, error) {
	if dispatcher == nil {
		return nil, core.InternalError("server: dispatcher is required", nil)
	}
	s := &Server{
		dispatcher:   dispatcher,
		logger:       glog.Nop(),
		metrics:      core.NopMetricsRecorder{},
		webhookPath:  core.DefaultWebhookPath,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = glog.Ensure(s.logger)
	if s.metrics == nil {
		s.metrics = core.NopMetricsRecorder{}
	}
	if s.gate == nil {
		s.gate = OpenGate()
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}
	if !strings.HasPrefix(s.webhookPath, "/") {
		return nil, core.BadInputError("server: webhook path must start with /", map[string]any{
			"path": s.webhookPath,
		})
	}
	if s.webhookPath == healthPath || (s.metricsHTTP != nil && s.webhookPath == s.metricsPath) {
		return nil, core.BadInputError("server: webhook path collides with a built-in route", map[string]any{
			"path": s.webhookPath,
		})
	}
	return s, nil
}

func (s *Server) Gate() *Gate {
	if s == nil {
		return nil
	}
	return s.gate
}

// Handler returns the routed handler wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(exactPattern(s.webhookPath), http.HandlerFunc(s.handleWebhook))
	mux.Handle(healthPath, http.HandlerFunc(s.handleHealth))
	if s.metricsHTTP != nil && strings.HasPrefix(s.metricsPath, "/") {
		mux.Handle(exactPattern(s.metricsPath), s.metricsHTTP)
	}
	return requestLog(s.logger, s.metrics, recoverer(s.logger, mux))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.gate.Ready() {
		w.Header().Set("Retry-After", "5")
		writeText(w, http.StatusServiceUnavailable, "webhook registration pending")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeText(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	event, err := core.ParseEnvelope(body)
	if err != nil {
		core.Log(r.Context(), s.logger, "error", "event dispatch failed", map[string]any{
			"error":      err.Error(),
			"error_code": core.TextCode(err),
			"body_bytes": len(body),
		})
		// Malformed envelopes count as dispatch failures.
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.dispatcher.Dispatch(r.Context(), event); err != nil {
		core.Log(r.Context(), s.logger, "error", "event dispatch failed", map[string]any{
			"event_type":  event.Type,
			"model":       event.Model,
			"resource_id": event.ResourceID(),
			"error":       err.Error(),
			"error_code":  core.TextCode(err),
		})
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

type healthResponse struct {
	Status       string     `json:"status"`
	Registration GateStatus `json:"registration"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.gate.Status()
	resp := healthResponse{Status: "ok", Registration: status}
	if status.Failed {
		resp.Status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}

// exactPattern keeps "/" from matching every path.
func exactPattern(path string) string {
	if path == "/" {
		return "/{$}"
	}
	return path
}
