package server

import (
	"net/http"
	"net/url"

	"github.com/takagi-dev/takagi/pkg/envelope"
	"github.com/takagi-dev/takagi/pkg/logger"
)

// tokenResponse is the /token success body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
	IDToken     string `json:"id_token"`
}

// handleToken exchanges an authorization envelope for the outward token pair:
// it recovers the real GitHub code from the envelope, trades it upstream, and
// mints the ID token plus the sealed access token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed form body")
		return
	}

	clientID, clientSecret, ok := s.clientCredentials(w, r)
	if !ok {
		return
	}
	if !s.settings.ClientAllowed(clientID) {
		writeDetail(w, http.StatusBadRequest, "Client ID "+clientID+" is not allowed")
		return
	}

	if gt := r.PostForm.Get("grant_type"); gt != "authorization_code" {
		writeDetail(w, http.StatusBadRequest, "grant_type must be authorization_code")
		return
	}

	code := r.PostForm.Get("code")
	if code == "" {
		writeDetail(w, http.StatusBadRequest, "Authorization code is required")
		return
	}

	auth, err := envelope.DecodeAuthorization(s.codec, code)
	if err != nil {
		logger.Debugw("authorization envelope rejected", "error", err.Error())
		writeDetail(w, http.StatusBadRequest, "Invalid authorization code")
		return
	}

	redirectURI := r.PostForm.Get("redirect_uri")
	if redirectURI == "" && auth.RedirectURI != "" {
		writeDetail(w, http.StatusBadRequest,
			"Redirect URI is required since it was sent at authorization")
		return
	}

	extra := url.Values{}
	for k, vs := range r.PostForm {
		switch k {
		case "client_id", "client_secret", "code", "redirect_uri", "grant_type":
		default:
			extra[k] = vs
		}
	}

	ghToken, err := s.github.ExchangeCode(
		r.Context(), clientID, clientSecret, auth.Code, s.wrapRedirectURI(r, redirectURI), extra)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	pair, _, err := s.mintTokens(r.Context(), r, clientID, ghToken, auth.Scopes, auth.Nonce)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// clientCredentials resolves the client credentials from either HTTP Basic
// authentication or the form body. Supplying both channels at once is an
// error, as is omitting either credential.
func (s *Server) clientCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	basicID, basicSecret, hasBasic := r.BasicAuth()
	formID := r.PostForm.Get("client_id")
	formSecret := r.PostForm.Get("client_secret")

	if hasBasic && (formID != "" || formSecret != "") {
		writeDetail(w, http.StatusBadRequest,
			"Client credentials must be supplied via either HTTP Basic authentication or the form body, not both")
		return "", "", false
	}

	clientID, clientSecret := formID, formSecret
	if hasBasic {
		clientID, clientSecret = basicID, basicSecret
	}

	if clientID == "" {
		writeDetail(w, http.StatusBadRequest, "Client ID is required")
		return "", "", false
	}
	if clientSecret == "" {
		writeDetail(w, http.StatusBadRequest, "Client secret is required")
		return "", "", false
	}

	return clientID, clientSecret, true
}
