/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client IP behind proxies
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for frontend
  5. requireTenant: X-Tenant-ID header extraction (API routes only)

ROUTE GROUPS:
  /api/journey/*     Rule sets, recalculation, calculated entries
  /api/hour-bank/*   Balance, ledger, reconciliation
  /api/holidays/*    Holiday calendar
  /api/clock/*       Time clock ledger and adjustment workflow
  /api/audit         Audit trail
  /healthz           Liveness probe (no tenant required)

SECURITY NOTE:
  No authentication middleware. Tenancy is trusted from the X-Tenant-ID
  header; an API gateway is expected to authenticate and set it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type ctxKey int

const tenantKey ctxKey = 0

// tenantFrom returns the tenant ID placed in the context by requireTenant.
func tenantFrom(r *http.Request) string {
	t, _ := r.Context().Value(tenantKey).(string)
	return t
}

// requireTenant rejects requests without an X-Tenant-ID header.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(requireTenant)

		r.Route("/journey", func(r chi.Router) {
			r.Post("/recalculate", h.Recalculate)
			r.Get("/entries", h.ListEntries)
			r.Route("/rules", func(r chi.Router) {
				r.Get("/", h.ListRuleSets)
				r.Post("/", h.SaveRuleSet)
				r.Get("/{id}", h.GetRuleSet)
			})
		})

		r.Route("/hour-bank", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/entries", h.ListBankEntries)
			r.Post("/reconcile", h.Reconcile)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/import-national", h.ImportNationalHolidays)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/clock", func(r chi.Router) {
			r.Post("/in", h.ClockIn)
			r.Post("/out", h.ClockOut)
			r.Get("/entries", h.ListClockEntries)
			r.Route("/adjustments", func(r chi.Router) {
				r.Get("/", h.ListAdjustments)
				r.Post("/", h.RequestAdjustment)
				r.Post("/{id}/approve", h.ApproveAdjustment)
				r.Post("/{id}/reject", h.RejectAdjustment)
			})
		})

		r.Get("/audit", h.ListAudit)
	})

	return r
}
