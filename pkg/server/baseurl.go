package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// requestScheme derives the outward scheme of a request. A reverse proxy's
// X-Forwarded-Proto wins over the direct connection.
func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// baseURL reconstructs the service's external base URL from the request,
// including the configured base path and without a trailing slash.
func (s *Server) baseURL(r *http.Request) string {
	base := requestScheme(r) + "://" + r.Host
	if path := strings.TrimSuffix(s.settings.BasePath, "/"); path != "" {
		base += path
	}
	return base
}

// issuer is the OIDC issuer identifier: the base URL with a trailing slash.
func (s *Server) issuer(r *http.Request) string {
	return s.baseURL(r) + "/"
}

// userinfoEndpoint is the absolute /userinfo URL, which doubles as the access
// token audience.
func (s *Server) userinfoEndpoint(r *http.Request) string {
	return s.baseURL(r) + "/userinfo"
}

// hostOnly strips any port from a host header value.
func hostOnly(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return strings.Trim(hostport, "[]")
}

// isLoopbackHost reports whether the host names the local machine.
func isLoopbackHost(host string) bool {
	host = strings.ToLower(host)
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// isSecureURL reports whether a URL is acceptable as a redirect target:
// HTTPS, or loopback when loopback is configured as secure.
func (s *Server) isSecureURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if u.Scheme == "https" {
		return true
	}
	return s.settings.TreatLoopbackAsSecure && isLoopbackHost(u.Hostname())
}

// isSecureRequest applies the same policy to the inbound request itself.
func (s *Server) isSecureRequest(r *http.Request) bool {
	if requestScheme(r) == "https" {
		return true
	}
	return s.settings.TreatLoopbackAsSecure && isLoopbackHost(hostOnly(r.Host))
}
