package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/life-admin-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	if len(h.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Encoding"},
			ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.With(h.authMiddleware.Middleware).Get("/", h.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/api/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Get("/{code}", h.GetAgent)
		})

		r.Route("/api/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{code}", h.GetClient)
		})

		r.Route("/api/paypoints", func(r chi.Router) {
			r.Get("/", h.ListPaypoints)
			r.Post("/", h.CreatePaypoint)
			r.Get("/{ref}", h.GetPaypoint)
		})

		r.Route("/api/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/{contractID}", h.GetPolicy)
			r.Get("/{contractID}/receipts", h.ListReceipts)
			r.Post("/{contractID}/receipts", h.RecordPayment)
		})

		r.Delete("/api/receipts/{number}", h.ReversePayment)

		r.Route("/api/cancellations", func(r chi.Router) {
			r.Get("/", h.ListCancellations)
			r.Post("/", h.RequestCancellation)
			r.Post("/{id}/approve", h.ApproveCancellation)
			r.Post("/{id}/reject", h.RejectCancellation)
		})

		r.Route("/api/claims", func(r chi.Router) {
			r.Get("/", h.ListClaims)
			r.Post("/", h.SubmitClaim)
			r.Post("/{id}/approve", h.ApproveClaim)
			r.Post("/{id}/reject", h.RejectClaim)
		})

		r.Route("/api/commissions", func(r chi.Router) {
			r.Get("/", h.ListCommissions)
			r.Post("/generate", h.GenerateCommissions)
		})

		r.Get("/api/statements/billing/{paypoint}", h.BillingStatement)
		r.Get("/api/statements/commission/{agent}", h.CommissionStatement)

		r.Post("/api/imports/{entity}", h.Import)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
