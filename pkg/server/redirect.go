package server

import "net/http"

// callbackBase is the absolute URL of the /r callback prefix, with a trailing
// slash so that wrapped URIs concatenate cleanly.
func (s *Server) callbackBase(r *http.Request) string {
	return s.baseURL(r) + "/r/"
}

// wrapRedirectURI normalizes a relying-party redirect URI into its wrapped
// form under /r. The operation is idempotent: a URI that is already wrapped
// comes back unchanged, so normalizing twice equals normalizing once.
func (s *Server) wrapRedirectURI(r *http.Request, uri string) string {
	if uri == "" {
		return ""
	}

	base := s.callbackBase(r)
	if len(uri) >= len(base) && uri[:len(base)] == base {
		return uri
	}
	return base + uri
}
