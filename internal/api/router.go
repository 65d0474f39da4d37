package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated endpoints
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket authenticates via single-use ticket, not bearer token
		r.Get("/ws", s.handleWebSocket)

		// Bearer-authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/auth/me", s.handleMe)
			r.Get("/system/status", s.handleSystemStatus)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{id}", s.handleGetDevice)

				r.Group(func(r chi.Router) {
					r.Use(s.requireAdmin)
					r.Post("/", s.handleRegisterDevice)
					r.Patch("/{id}", s.handleUpdateDevice)
					r.Delete("/{id}/config-entries/{entryID}", s.handleRemoveConfigEntry)
				})
			})

			r.Route("/config-entries", func(r chi.Router) {
				r.Get("/", s.handleListEntries)

				r.Group(func(r chi.Router) {
					r.Use(s.requireAdmin)
					r.Post("/", s.handleCreateEntry)
					r.Delete("/{id}", s.handleDeleteEntry)
				})
			})

			r.With(s.requireAdmin).Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns a basic liveness response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
