package server

import (
	"net/http"
	"strings"

	"github.com/takagi-dev/takagi/pkg/logger"
)

// secureTransport rejects requests that arrive over plain HTTP, unless the
// request targets a loopback host and loopback is configured as secure. OAuth
// credentials and envelopes must never travel unencrypted.
func (s *Server) secureTransport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isSecureRequest(r) {
			logger.Warnw("rejecting insecure request", "host", r.Host, "path", r.URL.Path)
			writeDetail(w, http.StatusBadRequest,
				"This service requires HTTPS. Plain HTTP is only accepted on loopback addresses.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// trustedHost rejects requests whose Host header is not on the allow-list.
// The loopback names are always admitted; a "*" entry admits everything, and
// "*.example.com" entries admit any subdomain.
func (s *Server) trustedHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := strings.ToLower(hostOnly(r.Host))
		if !s.hostAllowed(host) {
			logger.Warnw("rejecting untrusted host", "host", r.Host)
			writeDetail(w, http.StatusBadRequest, "Invalid host header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) hostAllowed(host string) bool {
	for _, allowed := range s.settings.AllowedHosts {
		allowed = strings.ToLower(allowed)
		switch {
		case allowed == "*":
			return true
		case strings.HasPrefix(allowed, "*."):
			if strings.HasSuffix(host, allowed[1:]) {
				return true
			}
		case host == allowed:
			return true
		}
	}
	return false
}
