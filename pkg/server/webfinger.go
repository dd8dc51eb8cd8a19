package server

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/takagi-dev/takagi/pkg/config"
)

// issuerRelation is the link relation identifying an account's OpenID
// Provider.
const issuerRelation = "http://openid.net/specs/connect/1.0/issuer"

type webFingerLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type webFingerResponse struct {
	Subject string          `json:"subject"`
	Links   []webFingerLink `json:"links"`
}

// handleWebFinger answers account discovery queries: for acct: resources on
// an allowed host it declares this service as the account's OpenID Provider.
func (s *Server) handleWebFinger(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")

	email, ok := strings.CutPrefix(resource, "acct:")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "The resource must be an acct: URI")
		return
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("The resource %s is not a valid account", resource))
		return
	}

	domain := email[strings.LastIndex(email, "@")+1:]
	if !s.webFingerHostAllowed(domain) {
		writeDetail(w, http.StatusNotFound,
			fmt.Sprintf("The resource %s does not exist on this server", resource))
		return
	}

	rel := r.URL.Query().Get("rel")
	links := []webFingerLink{}
	if rel == "" || rel == issuerRelation {
		links = append(links, webFingerLink{Rel: issuerRelation, Href: s.issuer(r)})
	}

	w.Header().Set("Content-Type", "application/jrd+json")
	writeJSON(w, http.StatusOK, webFingerResponse{Subject: resource, Links: links})
}

// webFingerHostAllowed matches an account's domain against the configured
// host list. A wildcard entry *.example.com admits example.com itself and
// every name below it.
func (s *Server) webFingerHostAllowed(domain string) bool {
	domain = config.NormalizeDNSName(domain)

	for _, allowed := range s.settings.AllowedWebFingerHosts {
		if parent, ok := strings.CutPrefix(allowed, "*."); ok {
			if domain == parent || strings.HasSuffix(domain, "."+parent) {
				return true
			}
			continue
		}
		if domain == allowed {
			return true
		}
	}
	return false
}
