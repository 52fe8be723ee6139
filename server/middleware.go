package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/goliatone/go-webhook-endpoint/core"
)

const (
	metricRequestsTotal   = "webhook.http.requests.total"
	metricRequestDuration = "webhook.http.request.duration_ms"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLog(logger core.Logger, metrics core.MetricsRecorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		elapsed := time.Since(startedAt)

		level := "info"
		if rec.status >= http.StatusInternalServerError {
			level = "warn"
		}
		core.Log(r.Context(), logger, level, "http request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"bytes":       rec.bytes,
			"duration_ms": elapsed.Milliseconds(),
			"remote_addr": r.RemoteAddr,
		})

		tags := map[string]string{
			"method": r.Method,
			"route":  r.URL.Path,
			"code":   strconv.Itoa(rec.status),
		}
		if rec.status == http.StatusNotFound {
			tags["route"] = "unmatched"
		}
		metrics.IncCounter(r.Context(), metricRequestsTotal, 1, tags)
		metrics.ObserveHistogram(r.Context(), metricRequestDuration, float64(elapsed.Milliseconds()), core.CloneTags(tags))
	})
}

// recoverer turns a panic anywhere below it into a 500 so the process keeps
// serving.
func recoverer(logger core.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			core.Log(r.Context(), logger, "error", "panic while serving request", map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"panic":  fmt.Sprint(recovered),
				"stack":  string(debug.Stack()),
			})
			writeText(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", recovered))
		}()
		next.ServeHTTP(w, r)
	})
}
