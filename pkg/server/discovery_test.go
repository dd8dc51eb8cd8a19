package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryDocument(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	resp := env.get(t, env.base+"/.well-known/openid-configuration")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Cache-Control"))

	doc := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, env.base+"/", doc["issuer"])
	assert.Equal(t, env.base+"/authorize", doc["authorization_endpoint"])
	assert.Equal(t, env.base+"/token", doc["token_endpoint"])
	assert.Equal(t, env.base+"/userinfo", doc["userinfo_endpoint"])
	assert.Equal(t, env.base+"/.well-known/jwks.json", doc["jwks_uri"])
	assert.Equal(t, []any{"code"}, doc["response_types_supported"])
	assert.Equal(t, []any{"RS256"}, doc["id_token_signing_alg_values_supported"])
	assert.Contains(t, doc["scopes_supported"], "openid")
	assert.Contains(t, doc["grant_types_supported"], "authorization_code")
	assert.Equal(t, []any{"S256"}, doc["code_challenge_methods_supported"])
	assert.Contains(t, doc["claims_supported"], "preferred_username")

	// No revocation or introspection: the endpoints do not exist.
	assert.NotContains(t, doc, "revocation_endpoint")
	assert.NotContains(t, doc, "introspection_endpoint")
}

func TestJWKS(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	resp := env.get(t, env.base+"/.well-known/jwks.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Cache-Control"))

	doc := decodeJSON[struct {
		Keys []map[string]any `json:"keys"`
	}](t, resp)

	require.Len(t, doc.Keys, 1)
	key := doc.Keys[0]
	assert.Equal(t, "RSA", key["kty"])
	assert.Equal(t, "sig", key["use"])
	assert.NotEmpty(t, key["kid"])
	assert.NotContains(t, key, "d")
}
