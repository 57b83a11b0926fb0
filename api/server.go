/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     Structured request logging (zap)
  4. Metrics:    Prometheus request counters and latencies
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*      Employees, balances, requests
  /api/grants/*         Manual grants, revocation, correction
  /api/usages/*         Usage detail, cancellation, decisions
  /api/approvals/*      Approver inbox
  /api/policies/*       Policy management
  /api/admin/*          Assignments, schedule/sweep triggers, run log
  /api/holidays/*       Business day calendar
  /api/leave-types      Registered leave types
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness and database check

SECURITY NOTE:
  No authentication middleware. Approver identity is taken from the
  request body.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger.Named("http")))
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/grants", h.GetGrants)
			r.Get("/{id}/usages", h.GetUsages)
			r.Get("/{id}/assignments", h.GetAssignments)
			r.Post("/{id}/requests", h.SubmitRequest)
			r.Post("/{id}/preview", h.PreviewAllocation)
			r.Get("/{id}/audit", h.AuditEmployee)
		})

		// Grant routes
		r.Route("/grants", func(r chi.Router) {
			r.Post("/", h.CreateGrant)
			r.Post("/{id}/revoke", h.RevokeGrant)
			r.Delete("/{id}", h.CorrectGrant)
		})

		// Usage routes
		r.Route("/usages", func(r chi.Router) {
			r.Get("/{id}", h.GetUsage)
			r.Delete("/{id}", h.CancelUsage)
			r.Post("/{id}/decision", h.DecideUsage)
		})

		r.Get("/approvals/pending", h.ListPendingApprovals)

		// Policy routes
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/{id}", h.GetPolicy)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/assignments", h.CreateAssignment)
			r.Post("/schedule", h.TriggerSchedule)
			r.Post("/sweep", h.TriggerSweep)
			r.Get("/runs", h.ListRuns)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/defaults", h.AddDefaultHolidays)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Get("/leave-types", h.ListLeaveTypes)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
