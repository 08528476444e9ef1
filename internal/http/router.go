package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/denizrest/selforder/internal/observability"
	"github.com/denizrest/selforder/internal/push"
	"github.com/denizrest/selforder/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, hub *push.Hub, csrfToken string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(CSRFMiddleware(csrfToken))

	r.Route("/client/api", func(r chi.Router) {
		r.Get("/menu", h.GetMenu)
		r.Get("/tables", h.GetTables)
		r.Get("/settings", h.GetSettings)
		r.With(RateLimitMiddleware(rl, 10, time.Minute)).Post("/verify-table-pin", h.VerifyTablePIN)
		r.Post("/orders", h.CreateOrder)
		r.Post("/orders/{id}/cancel", h.CancelOrder)
		r.Post("/call-waiter", h.CallWaiter)
	})

	r.Post("/api/bonus-cards/check", h.CheckBonusCard)

	r.Route("/waiter/api", func(r chi.Router) {
		r.Get("/dashboard/stats", h.DashboardStats)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Post("/orders/{id}/status", h.UpdateOrderStatus)
		r.Post("/orders/{id}/print", h.PrintOrder)
		r.Get("/tables", h.ListWaiterTables)
		r.Get("/calls", h.ListCalls)
		r.Post("/calls/{id}/respond", h.RespondCall)
		r.Post("/shift/start", h.StartShift)
		r.Post("/shift/end", h.EndShift)
		r.Get("/shift/current", h.CurrentShift)
		r.Put("/settings", h.UpdateSettings)
	})

	r.Get("/ws", hub.HandleWebSocket)
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
