package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendlink/vendlink-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Device-facing registration endpoints. Unauthenticated: machines
		// have no credentials until they are approved.
		r.Post("/devices/register", s.handleRegisterDevice)
		r.Get("/devices/status/{hardwareID}", s.handleDeviceStatus)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			// Registration management
			r.Route("/devices", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermRegistrationRead)).
					Get("/pending", s.handleListPending)

				r.Route("/{hardwareID}", func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermRegistrationApprove))
					r.Put("/approve", s.handleApproveDevice)
					r.Put("/reject", s.handleRejectDevice)
				})
			})

			// Operator account management
			r.Route("/users", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermUserManage))

				r.Get("/", s.handleListAccounts)
				r.Post("/", s.handleCreateAccount)
				r.Put("/{id}/deactivate", s.handleDeactivateAccount)
				r.Delete("/{id}/sessions", s.handleRevokeSessions)
			})

			// Audit trail
			r.With(s.requirePermission(auth.PermSystemAdmin)).
				Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
