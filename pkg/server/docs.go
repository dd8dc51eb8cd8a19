package server

import (
	"fmt"
	"net/http"
)

// docsPage embeds the Scalar API reference, pointed at this service's OpenAPI
// document. Devtools are hidden unless the private localhost knob is set.
const docsPage = `<!doctype html>
<html>
  <head>
    <title>takagi</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
  </head>
  <body>
    <div id="app"></div>
    <script
      id="api-reference"
      data-url="%s/openapi.json"
      data-configuration='{"_integration":"http","showDeveloperTools":"%s"}'
    ></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
  </body>
</html>
`

// handleDocs serves the interactive API reference when enabled.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	if !s.settings.EnableDocs {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}

	devtools := "never"
	if s.settings.Private.ShowScalarDevtoolsOnLocalhost && isLoopbackHost(hostOnly(r.Host)) {
		devtools = "localhost"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, docsPage, s.baseURL(r), devtools)
}

// handleOpenAPI serves a minimal OpenAPI description of the public endpoints
// for the docs page to render.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if !s.settings.EnableDocs {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}

	doc := map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":       "takagi",
			"description": "An OpenID Connect provider in front of GitHub's OAuth2 service.",
			"version":     "1.0.0",
		},
		"servers": []map[string]any{{"url": s.baseURL(r)}},
		"paths": map[string]any{
			"/authorize": map[string]any{
				"get": operation("Start an authorization flow",
					"Validates the relying party's request and redirects the browser to GitHub."),
			},
			"/token": map[string]any{
				"post": operation("Exchange an authorization code",
					"Trades an authorization code for an access token and an ID token."),
			},
			"/userinfo": map[string]any{
				"get": operation("Fetch identity claims",
					"Returns fresh identity claims for a bearer access token."),
			},
			"/.well-known/openid-configuration": map[string]any{
				"get": operation("Provider configuration", "The OpenID Provider metadata document."),
			},
			"/.well-known/jwks.json": map[string]any{
				"get": operation("Public keys", "The JSON Web Key Set tokens are verified against."),
			},
			"/.well-known/webfinger": map[string]any{
				"get": operation("Account discovery", "Resolves acct: resources to this issuer."),
			},
			"/health": map[string]any{
				"get": operation("Liveness probe", "Always returns 200 with an empty body."),
			},
		},
	}

	writeJSON(w, http.StatusOK, doc)
}

func operation(summary, description string) map[string]any {
	return map[string]any{
		"summary":     summary,
		"description": description,
		"responses": map[string]any{
			"200": map[string]any{"description": "Success"},
		},
	}
}
