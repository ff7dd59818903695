package server

import (
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"satstash/internal/models"
)

const adminPasswordHeader = "X-Admin-Password"

// requireAdmin guards operator endpoints with the configured bcrypt password
// hash. Without a configured hash the endpoints are disabled outright.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminHash == "" {
			s.writeError(w, r, notFound(fmt.Errorf("admin api is not configured")))
			return
		}
		password := r.Header.Get(adminPasswordHeader)
		if password == "" {
			s.writeError(w, r, unauthorized(fmt.Errorf("%s header is required", adminPasswordHeader)))
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.adminHash), []byte(password)); err != nil {
			s.writeError(w, r, unauthorized(fmt.Errorf("invalid admin password")))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdminPrune(w http.ResponseWriter, r *http.Request) {
	if s.pruneNow == nil {
		s.writeError(w, r, internalError(fmt.Errorf("prune job is not configured")))
		return
	}
	if err := s.pruneNow(r.Context()); err != nil {
		s.writeError(w, r, internalError(fmt.Errorf("prune: %w", err)))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminPayout(w http.ResponseWriter, r *http.Request) {
	if s.payoutNow == nil {
		s.writeError(w, r, internalError(fmt.Errorf("payout job is not configured")))
		return
	}
	if err := s.payoutNow(r.Context()); err != nil {
		s.writeError(w, r, internalError(fmt.Errorf("payout: %w", err)))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	BlobCount int64                `json:"blob_count"`
	BlobBytes int64                `json:"blob_bytes"`
	Pending   []models.MintBalance `json:"pending"`
	Payable   []models.MintBalance `json:"payable"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	count, bytes, err := s.ledger.BlobStats(r.Context())
	if err != nil {
		s.writeError(w, r, internalError(err))
		return
	}
	pending, err := s.ledger.MintBalances(r.Context(), 0)
	if err != nil {
		s.writeError(w, r, internalError(err))
		return
	}
	payable, err := s.ledger.MintBalances(r.Context(), s.payoutThreshold)
	if err != nil {
		s.writeError(w, r, internalError(err))
		return
	}
	s.writeJSON(w, http.StatusOK, statsResponse{
		BlobCount: count,
		BlobBytes: bytes,
		Pending:   pending,
		Payable:   payable,
	})
}
