package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	cashuHeader  = "X-Cashu"
	reasonHeader = "X-Reason"

	readHeaderTimeout = 5 * time.Second
	readTimeout       = 5 * time.Minute
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 60 * time.Second
)

// JobFunc runs one cycle of a background job on demand.
type JobFunc func(ctx context.Context) error

// Server wraps HTTP handlers for the satstash API.
type Server struct {
	addr      string
	publicURL string

	ledger Ledger
	blobs  BlobStore
	upload *UploadService

	// On-demand admin triggers for the periodic jobs.
	pruneNow  JobFunc
	payoutNow JobFunc

	payoutThreshold uint64
	adminHash       string

	logger *slog.Logger
}

// Options carries the server's collaborators and settings.
type Options struct {
	Addr            string
	PublicURL       string
	Ledger          Ledger
	Blobs           BlobStore
	Upload          *UploadService
	PruneNow        JobFunc
	PayoutNow       JobFunc
	PayoutThreshold uint64
	// AdminPasswordHash is a bcrypt hash; admin routes are disabled when
	// empty.
	AdminPasswordHash string
	Logger            *slog.Logger
}

// New creates a new server instance.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:            opts.Addr,
		publicURL:       strings.TrimRight(opts.PublicURL, "/"),
		ledger:          opts.Ledger,
		blobs:           opts.Blobs,
		upload:          opts.Upload,
		pruneNow:        opts.PruneNow,
		payoutNow:       opts.PayoutNow,
		payoutThreshold: opts.PayoutThreshold,
		adminHash:       strings.TrimSpace(opts.AdminPasswordHash),
		logger:          logger,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return server.ListenAndServe()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// baseURL is the advertised origin for descriptor URLs: the configured public
// URL when set, otherwise reconstructed from the request.
func (s *Server) baseURL(r *http.Request) string {
	if s.publicURL != "" {
		return s.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromError(err)
	reason := reasonFromError(err)
	message := err.Error()

	fields := []any{"status", status, "reason", reason, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}
	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal server error"
	default:
		s.log().Debug("request rejected", fields...)
	}

	if challenge := challengeFromError(err); challenge != "" {
		w.Header().Set(cashuHeader, challenge)
	}
	w.Header().Set(reasonHeader, reason)
	s.writeJSON(w, status, errorResponse{Error: message, Reason: reason})
}
