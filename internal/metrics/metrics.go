// Package metrics provides Prometheus instrumentation for the commission ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MaturationRuns counts maturation batches by outcome (drained, has_more, budget_exceeded).
	MaturationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_maturation_runs_total",
		Help: "Total maturation batches executed",
	}, []string{"outcome"})

	// EntriesPromoted counts commissions moved from pending to available.
	EntriesPromoted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_entries_promoted_total",
		Help: "Commission entries promoted to available",
	}, []string{"currency"})

	// CentsPromoted tracks the amount credited to balances by maturation.
	CentsPromoted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_promoted_cents_total",
		Help: "Cents credited to affiliate balances by maturation",
	}, []string{"currency"})

	// PromotionLostRaces counts promotions already done by an overlapping run.
	PromotionLostRaces = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commission_promotion_lost_races_total",
		Help: "Conditional promotions that matched no row",
	})

	// PromotionErrors counts promotions that failed to persist.
	PromotionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commission_promotion_errors_total",
		Help: "Promotions that failed with a persistence error",
	})

	// MaturationDuration tracks batch wall-clock time.
	MaturationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "commission_maturation_duration_seconds",
		Help:    "Maturation batch duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// RefundsObserved counts refund notifications by result.
	RefundsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_refunds_observed_total",
		Help: "Refund notifications processed",
	}, []string{"result"})

	// CentsReversed tracks reversal magnitude by the route it took.
	CentsReversed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_reversed_cents_total",
		Help: "Cents reversed by refund reconciliation",
	}, []string{"currency", "route"})

	// DebtAccrued tracks reversal cents that could not be taken from balance.
	DebtAccrued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_debt_accrued_cents_total",
		Help: "Cents of reversals diverted to affiliate debt",
	}, []string{"currency"})

	// ReconcileConflicts counts reconciliation attempts retried after a concurrent modification.
	ReconcileConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commission_reconcile_conflicts_total",
		Help: "Reconciliation attempts retried after a conflict",
	})

	// Payouts counts payout attempts by result.
	Payouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_payouts_total",
		Help: "Payout attempts",
	}, []string{"result"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commission_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
