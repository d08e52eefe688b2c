package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parley-ai/parley/internal/metrics"
)

// RouterOptions selects the optional endpoints.
type RouterOptions struct {
	MetricsEnabled bool
	Collector      *metrics.Collector
	ServiceName    string
	Version        string
}

// NewRouter wires all endpoints onto a ServeMux.
func NewRouter(team *TeamHandler, chat *ChatHandler, health *HealthHandler, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)

	mux.HandleFunc("POST /api/v2/teams", team.HandleCreate)
	mux.HandleFunc("GET /api/v2/teams", team.HandleList)
	mux.HandleFunc("GET /api/v2/teams/{id}", team.HandleGet)
	mux.HandleFunc("PUT /api/v2/teams/{id}", team.HandleUpdate)
	mux.HandleFunc("DELETE /api/v2/teams/{id}", team.HandleDelete)
	mux.HandleFunc("POST /api/v2/teams/{id}/members", team.HandleAddMember)
	mux.HandleFunc("GET /api/v2/teams/{id}/members", team.HandleListMembers)
	mux.HandleFunc("DELETE /api/v2/teams/{id}/members/{persona}", team.HandleRemoveMember)

	mux.HandleFunc("POST /api/v2/chat/teams/{id}/sessions", chat.HandleStartSession)
	mux.HandleFunc("POST /api/v2/chat/sessions/{id}/message", chat.HandleSendMessage)
	mux.HandleFunc("GET /api/v2/chat/sessions/{id}", chat.HandleGetSession)
	mux.HandleFunc("GET /api/v2/chat/sessions/{id}/messages", chat.HandleGetMessages)
	mux.HandleFunc("DELETE /api/v2/chat/sessions/{id}", chat.HandleDeleteSession)

	if opts.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"service": opts.ServiceName,
			"version": opts.Version,
			"status":  "running",
		})
	})

	return instrument(opts.Collector, mux)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latencies per route pattern.
func instrument(collector *metrics.Collector, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		// The mux sets Pattern on match; it keeps label cardinality bounded.
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		collector.RecordHTTPRequest(r.Method, path, rec.status, time.Since(start))
	})
}
