package server

import (
	"net/http"

	"github.com/takagi-dev/takagi/pkg/logger"
)

// discoveryCacheControl keeps clients from hammering the static documents.
const discoveryCacheControl = "max-age=3600, public"

// providerMetadata is the OpenID Provider configuration document, restricted
// to what this service actually implements.
type providerMetadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
}

// handleDiscovery serves the OpenID Provider configuration. Endpoint URLs are
// derived from the request so the document is correct behind any hostname the
// service is reachable at.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	base := s.baseURL(r)

	doc := providerMetadata{
		Issuer:                           s.issuer(r),
		AuthorizationEndpoint:            base + "/authorize",
		TokenEndpoint:                    base + "/token",
		UserinfoEndpoint:                 base + "/userinfo",
		JWKSURI:                          base + "/.well-known/jwks.json",
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ScopesSupported:                  []string{"openid", "profile", "email", "groups"},
		TokenEndpointAuthMethods:         []string{"client_secret_basic", "client_secret_post"},
		GrantTypesSupported:              []string{"authorization_code"},
		ClaimsSupported: []string{
			"sub", "preferred_username", "name", "nickname", "locale", "picture",
			"profile", "updated_at", "email", "email_verified", "groups",
		},
		CodeChallengeMethodsSupported: []string{"S256"},
	}

	w.Header().Set("Cache-Control", discoveryCacheControl)
	writeJSON(w, http.StatusOK, doc)
}

// handleJWKS serves the public signing keys relying parties verify tokens
// against.
func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	set, err := s.keystore.PublicJWKS()
	if err != nil {
		logger.Errorf("failed to assemble public keyset: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Cache-Control", discoveryCacheControl)
	writeJSON(w, http.StatusOK, set)
}
