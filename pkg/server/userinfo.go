package server

import (
	"net/http"
	"strings"

	"github.com/takagi-dev/takagi/pkg/envelope"
	"github.com/takagi-dev/takagi/pkg/logger"
	"github.com/takagi-dev/takagi/pkg/tokens"
)

// handleUserInfo serves fresh identity claims for a bearer access token. The
// envelope is verified against this issuer with /userinfo as the required
// audience, the GitHub token is unsealed, and the claims are derived anew so
// they reflect GitHub's current view of the user. Any credential problem is a
// bare 401.
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "

	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, prefix) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	token, err := envelope.DecodeAccessToken(s.codec, strings.TrimPrefix(authz, prefix), tokens.Expectations{
		Issuer:   s.issuer(r),
		Audience: s.userinfoEndpoint(r),
	})
	if err != nil {
		logger.Debugw("access token rejected", "error", err.Error())
		w.Header().Set("WWW-Authenticate", "Bearer")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	info, err := envelope.OpenAccessInfo(s.codec, token.Token)
	if err != nil {
		logger.Debugw("access token payload rejected", "error", err.Error())
		w.Header().Set("WWW-Authenticate", "Bearer")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	_, claims, err := s.mintTokens(r.Context(), r, "", info.Token, info.Scopes, "")
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claims)
}
