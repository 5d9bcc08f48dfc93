// Package httpapi exposes the commission ledger over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"commission-ledger-go/internal/api"
	"commission-ledger-go/internal/metrics"
	"commission-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct{ service *api.LedgerService }

func NewHandler(service *api.LedgerService) *Handler { return &Handler{service: service} }

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestContextMiddleware)
	r.Use(loggingMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/health", handler.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/commissions", handler.recordCommission)
		r.Post("/refunds", handler.applyRefund)
		r.Post("/payouts/{entryID}", handler.payout)
		r.Post("/maturation/run", handler.runMaturation)

		r.Get("/affiliates/{userID}/balances", handler.getBalances)
		r.Get("/affiliates/{userID}/entries", handler.getEntries)
		r.Put("/affiliates/{userID}/destination", handler.setDestination)

		r.Get("/invoices/{invoiceID}/conservation", handler.verifyInvoice)
	})

	return r
}

// requestContextMiddleware tags ledger mutations with the request that caused them
func requestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := models.WithRequestContext(r.Context(), &models.RequestContext{
			Source:     "http",
			RequestId:  middleware.GetReqID(r.Context()),
			ReceivedAt: time.Now().UTC(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		switch {
		case status >= 500:
			zap.L().Error("HTTP request completed", fields...)
		case status >= 400:
			zap.L().Warn("HTTP request completed", fields...)
		default:
			zap.L().Info("HTTP request completed", fields...)
		}
	})
}
