package server

import (
	"net/http"

	"github.com/takagi-dev/takagi/pkg/config"
)

// Convenience redirect targets for GET /.
const (
	repoURL           = "https://github.com/takagi-dev/takagi"
	githubSettingsURL = "https://github.com/settings"
)

// handleRoot redirects the browser according to the configured root redirect
// mode. The root endpoint carries no protocol semantics; it exists for humans
// who open the issuer URL directly.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch s.settings.RootRedirect {
	case config.RootRedirectRepo:
		http.Redirect(w, r, repoURL, http.StatusFound)
	case config.RootRedirectSettings:
		http.Redirect(w, r, githubSettingsURL, http.StatusFound)
	case config.RootRedirectDocs:
		http.Redirect(w, r, s.baseURL(r)+"/docs", http.StatusFound)
	default:
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

// handleHealth is the liveness probe: 200 with an empty body.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
