package server

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var digestPattern = regexp.MustCompile(`^[a-f0-9]{64}`)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	// Path segment is digest with an optional extension; match the digest
	// prefix and ignore the rest.
	raw := r.PathValue("digest")
	digest := digestPattern.FindString(strings.ToLower(raw))
	if digest == "" {
		s.writeError(w, r, badRequest(ReasonInvalidDigest, fmt.Errorf("invalid sha256 digest %q", raw)))
		return
	}

	path, err := s.blobs.Locate(digest)
	if err != nil {
		s.writeError(w, r, notFound(fmt.Errorf("blob %s not found", digest)))
		return
	}

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if blob, err := s.ledger.GetBlob(r.Context(), digest); err == nil && blob != nil && blob.Type != "" {
			w.Header().Set("Content-Type", blob.Type)
		}
		http.ServeFile(w, r, path)
	default:
		s.writeError(w, r, methodNotAllowed(fmt.Errorf("method %s not allowed", r.Method)))
	}
}
