// Package metrics holds the Prometheus collectors shared by the client and the
// session manager.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phoenixfitness/phoenix-stack/common/middleware"
)

var (
	// API client metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoenix_client_requests_total",
			Help: "Total number of API requests by method and status class",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phoenix_client_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoenix_client_replays_total",
			Help: "Requests replayed after a 401 by refresh outcome",
		},
		[]string{"outcome"},
	)

	RateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phoenix_client_rate_limit_waits_total",
			Help: "Requests delayed by the client-side rate limiter",
		},
	)

	// Session metrics
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoenix_session_transitions_total",
			Help: "Session state transitions by destination state",
		},
		[]string{"state"},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoenix_session_refresh_total",
			Help: "Refresh exchanges by result",
		},
		[]string{"result"},
	)

	CoalescedCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoenix_session_coalesced_total",
			Help: "Callers that joined an in-flight validation or refresh",
		},
		[]string{"operation"},
	)

	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoenix_session_guard_decisions_total",
			Help: "Route guard decisions",
		},
		[]string{"decision"},
	)

	TokenTTLSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phoenix_session_token_ttl_seconds",
			Help: "Seconds until the current access token expires",
		},
	)

	// Credential store metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoenix_store_operations_total",
			Help: "Credential store operations by backend, operation and result",
		},
		[]string{"backend", "operation", "result"},
	)
)

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on; 0 means a transport error.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Result labels an operation outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return middleware.RequestID(promhttp.Handler())
}

// Serve exposes /metrics, plus any extra routes, on addr until ctx is done.
func Serve(ctx context.Context, addr string, routes map[string]http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	for pattern, h := range routes {
		mux.Handle(pattern, middleware.RequestID(h))
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
