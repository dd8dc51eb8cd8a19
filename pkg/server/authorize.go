package server

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/takagi-dev/takagi/pkg/envelope"
	"github.com/takagi-dev/takagi/pkg/logger"
	"github.com/takagi-dev/takagi/pkg/scopes"
)

// handleAuthorize starts the flow: it validates the relying party's request,
// captures everything that must survive the round trip through GitHub inside
// a signed state envelope, and redirects the browser to GitHub with this
// service's wrapped callback as the redirect URI.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	clientID := q.Get("client_id")
	if clientID == "" {
		writeDetail(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if !s.settings.ClientAllowed(clientID) {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Client ID %s is not allowed", clientID))
		return
	}

	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" {
		writeDetail(w, http.StatusBadRequest, "redirect_uri is required")
		return
	}
	if !s.isSecureURL(redirectURI) {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf(
			"Redirect URI %s is insecure. Redirect URIs must be either HTTPS or loopback", redirectURI))
		return
	}

	wrapped := s.wrapRedirectURI(r, redirectURI)
	if wrapped != redirectURI {
		if !s.settings.FixRedirectURIs {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf(
				"Redirect URI must point at this service's callback, e.g. %s", wrapped))
			return
		}
		logger.Debugw("rewriting redirect URI", "from", redirectURI, "to", wrapped)
		redirectURI = wrapped
	}

	scopeList := scopes.Parse(q.Get("scope"))
	if !scopes.Contains(scopeList, "openid") {
		writeDetail(w, http.StatusBadRequest, "The openid scope is required")
		return
	}

	state := envelope.NewStateData(redirectURI, q.Get("state"), q.Get("nonce"), scopeList, r.Referer())
	stateJWT, err := envelope.Encode(s.codec, state)
	if err != nil {
		logger.Errorf("failed to sign state envelope: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// Everything else in the query travels to GitHub untouched; the reserved
	// parameters are replaced with this service's own values.
	extra := url.Values{}
	for k, vs := range q {
		switch k {
		case "client_id", "scope", "redirect_uri", "state":
		default:
			extra[k] = vs
		}
	}
	extra.Set("state", stateJWT)
	extra.Set("response_type", "code")

	target := s.github.AuthorizationURL(clientID, redirectURI, scopes.ToGitHub(scopeList), extra)
	http.Redirect(w, r, target, http.StatusFound)
}
