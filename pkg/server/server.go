// Package server implements takagi's HTTP surface: the OIDC authorization,
// callback, token, and userinfo endpoints, the well-known documents, and the
// operational endpoints around them. The flow is stateless; every piece of
// cross-request context rides in a signed envelope.
package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/takagi-dev/takagi/pkg/config"
	"github.com/takagi-dev/takagi/pkg/github"
	"github.com/takagi-dev/takagi/pkg/keys"
	"github.com/takagi-dev/takagi/pkg/tokens"
)

// GitHubClient is the slice of the GitHub client the handlers consume.
// Tests substitute a fixture-backed implementation.
type GitHubClient interface {
	AuthorizationURL(clientID, redirectURI string, ghScopes []string, extra url.Values) string
	ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string, extra url.Values) (map[string]any, error)
	User(ctx context.Context, accessToken string) (*github.User, error)
	Orgs(ctx context.Context, accessToken string) ([]github.Org, error)
}

// Compile-time interface check.
var _ GitHubClient = (*github.Client)(nil)

// Server holds the handler dependencies: settings, key material, the token
// codec, and the GitHub client.
type Server struct {
	settings *config.Settings
	keystore *keys.Store
	codec    *tokens.Codec
	github   GitHubClient
}

// New creates a Server. The key store is built from the settings: operator
// keys when configured, self-managed keys in the keys directory otherwise.
func New(settings *config.Settings, gh GitHubClient) *Server {
	var store *keys.Store
	if settings.HasOperatorKeys() {
		store = keys.NewStoreWithKeys(settings.SigningKey, settings.EncryptionKey)
	} else {
		store = keys.NewStore(settings.KeysDir)
	}

	return &Server{
		settings: settings,
		keystore: store,
		codec:    tokens.NewCodec(store),
		github:   gh,
	}
}

// Router assembles the chi router with the global middleware stack and every
// endpoint, mounted under the configured base path.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.secureTransport)
	r.Use(s.trustedHost)

	base := strings.TrimSuffix(s.settings.BasePath, "/")
	if base == "" {
		s.routes(r)
		return r
	}

	r.Route(base, func(r chi.Router) {
		s.routes(r)
	})
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/docs", s.handleDocs)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Get("/authorize", s.handleAuthorize)
	r.Get("/r", s.handleCallbackRoot)
	r.Get("/r/*", s.handleCallback)
	r.Post("/token", s.handleToken)
	r.Get("/userinfo", s.handleUserInfo)
	r.Post("/userinfo", s.handleUserInfo)

	r.Get("/.well-known/jwks.json", s.handleJWKS)
	r.Get("/.well-known/openid-configuration", s.handleDiscovery)
	r.Get("/.well-known/webfinger", s.handleWebFinger)
}
