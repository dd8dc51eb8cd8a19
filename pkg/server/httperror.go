package server

import (
	"encoding/json"
	"net/http"

	"github.com/takagi-dev/takagi/pkg/github"
	"github.com/takagi-dev/takagi/pkg/logger"
)

// writeJSON renders v as the JSON response body with the given status. A
// Content-Type already set by the handler (e.g. application/jrd+json) wins.
func writeJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("failed to write response: %v", err)
	}
}

// writeDetail renders an error response of the form {"detail": ...}.
func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// writeUpstreamError re-raises a GitHub failure to the caller: the upstream
// status code with the upstream body in the detail field. Anything else
// becomes an opaque 500.
func writeUpstreamError(w http.ResponseWriter, err error) {
	if ue, ok := github.AsUpstreamError(err); ok {
		writeDetail(w, ue.StatusCode, ue.Detail())
		return
	}

	logger.Errorf("upstream request failed: %v", err)
	writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
}
