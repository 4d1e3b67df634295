// Package server assembles the HTTP surface: the Connect API, the chat
// webhook and the operational endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/chat"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/pkg/api"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the router serves.
type Deps struct {
	Service *service.ExpenseService
	// JWT enables service-token auth on the API and the webhook when non-nil.
	JWT      *auth.JWTManager
	Registry *prometheus.Registry
	Health   Pinger
}

// NewRouter wires every route.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/healthz", healthHandler(d.Health))
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry}))

	interceptors := []connect.Interceptor{
		middleware.NewMetrics(d.Registry).Interceptor(),
		middleware.LoggingInterceptor(),
	}
	if d.JWT != nil {
		interceptors = append(interceptors, middleware.RequireAuth(d.JWT))
	}

	path, handler := api.NewExpenseServiceHandler(
		service.NewExpenseHandler(d.Service),
		connect.WithInterceptors(interceptors...),
	)
	r.Handle(path+"*", handler)

	r.Group(func(r chi.Router) {
		if d.JWT != nil {
			r.Use(middleware.RequireBearer(d.JWT))
		}
		r.Post("/chat/messages", chat.Webhook(chat.NewBot(d.Service)))
	})

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				slog.Warn("Health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
