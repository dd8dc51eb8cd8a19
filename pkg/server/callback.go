package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/takagi-dev/takagi/pkg/envelope"
	"github.com/takagi-dev/takagi/pkg/logger"
)

// handleCallbackRoot answers a bare GET /r, which carries no wrapped
// destination and therefore cannot be forwarded anywhere.
func (s *Server) handleCallbackRoot(w http.ResponseWriter, _ *http.Request) {
	writeDetail(w, http.StatusNotFound, "Not Found")
}

// handleCallback receives GitHub's redirect, unwraps the state envelope, and
// forwards the browser to the relying party's real redirect URI with an
// authorization envelope standing in for GitHub's code.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state, err := envelope.DecodeState(s.codec, q.Get("state"))
	if err != nil {
		logger.Debugw("state envelope rejected", "error", err.Error())
		writeDetail(w, http.StatusBadRequest, "Mismatching state")
		return
	}

	errParam := q.Get("error")

	// A user who clicked "cancel" on GitHub's consent page goes back to the
	// page they came from, when one was captured and the operator opted in.
	if errParam == "access_denied" && state.Referrer != "" && s.settings.ReturnToReferrer {
		http.Redirect(w, r, state.Referrer, http.StatusFound)
		return
	}

	// The path tail is the destination the browser was told to come back to;
	// it must be the exact URI sealed into the state envelope. Routers hand the
	// wildcard over in escaped form when the request URL was percent-encoded.
	tail := chi.URLParam(r, "*")
	if unescaped, uerr := url.PathUnescape(tail); uerr == nil {
		tail = unescaped
	}
	if s.wrapRedirectURI(r, tail) != state.RedirectURI {
		writeDetail(w, http.StatusBadRequest,
			"Redirect URI does not match the one sent at authorization")
		return
	}

	target, err := url.Parse(tail)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid redirect URI")
		return
	}

	// Forward GitHub's response parameters, restoring the relying party's own
	// state value and substituting the authorization envelope for the code.
	out := url.Values{}
	for k, vs := range q {
		if k == "state" {
			continue
		}
		out[k] = vs
	}
	if state.State != "" {
		out.Set("state", state.State)
	}

	if code := q.Get("code"); code != "" && errParam == "" {
		auth := envelope.NewAuthorizationData(code, state)
		authJWT, err := envelope.Encode(s.codec, auth)
		if err != nil {
			logger.Errorf("failed to sign authorization envelope: %v", err)
			writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		out.Set("code", authJWT)
	}

	target.RawQuery = out.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
