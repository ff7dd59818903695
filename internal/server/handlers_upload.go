package server

import (
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// The stdlib server parses Content-Length into r.ContentLength and may
	// drop the header entry, so consult both; -1 means the client never
	// declared a length.
	declared := int64(-1)
	if raw := strings.TrimSpace(r.Header.Get("Content-Length")); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed >= 0 {
			declared = parsed
		}
	} else if r.ContentLength > 0 {
		declared = r.ContentLength
	}

	descriptor, err := s.upload.Process(r.Context(), UploadRequest{
		Method:         r.Method,
		DeclaredLength: declared,
		EncodedToken:   r.Header.Get(cashuHeader),
		ContentType:    r.Header.Get("Content-Type"),
		Body:           r.Body,
		BaseURL:        s.baseURL(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, descriptor)
}
