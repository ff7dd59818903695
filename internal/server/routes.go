package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Upload admission. Method dispatch stays inside the handler so the
	// admission state machine controls the 405 outcome.
	mux.HandleFunc("/upload", s.handleUpload)

	// Admin.
	mux.HandleFunc("POST /v1/admin/prune", s.requireAdmin(s.handleAdminPrune))
	mux.HandleFunc("POST /v1/admin/payout", s.requireAdmin(s.handleAdminPayout))
	mux.HandleFunc("GET /v1/admin/stats", s.requireAdmin(s.handleAdminStats))

	// Blob retrieval by digest; registered last-specific, catches the rest.
	mux.HandleFunc("/{digest}", s.handleDownload)

	return s.withRequestLogging(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
