package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takagi-dev/takagi/pkg/config"
	"github.com/takagi-dev/takagi/pkg/keys"
)

func newBareServer(t *testing.T, basePath string) *Server {
	t.Helper()

	sig, err := keys.GenerateSigningKey()
	require.NoError(t, err)
	enc, err := keys.GenerateEncryptionKey()
	require.NoError(t, err)

	return New(&config.Settings{
		BasePath:              basePath,
		TreatLoopbackAsSecure: true,
		SigningKey:            sig,
		EncryptionKey:         enc,
	}, newFakeGitHub())
}

func TestWrapRedirectURI(t *testing.T) {
	t.Parallel()

	srv := newBareServer(t, "/")
	req := httptest.NewRequest("GET", "http://op.example/authorize", nil)

	assert.Equal(t,
		"http://op.example/r/https://rp.example/cb",
		srv.wrapRedirectURI(req, "https://rp.example/cb"))

	// Already wrapped URIs come back unchanged.
	assert.Equal(t,
		"http://op.example/r/https://rp.example/cb",
		srv.wrapRedirectURI(req, "http://op.example/r/https://rp.example/cb"))

	assert.Equal(t, "", srv.wrapRedirectURI(req, ""))
}

// Wrapping must be idempotent: wrapping a wrapped URI is a no-op.
func TestWrapRedirectURIIdempotent(t *testing.T) {
	t.Parallel()

	srv := newBareServer(t, "/")
	req := httptest.NewRequest("GET", "http://op.example/authorize", nil)

	uris := []string{
		"https://rp.example/cb",
		"http://127.0.0.1:3000/cb",
		"https://rp.example/cb?mode=login",
		"http://op.example/r/https://rp.example/cb",
	}

	for _, uri := range uris {
		once := srv.wrapRedirectURI(req, uri)
		assert.Equal(t, once, srv.wrapRedirectURI(req, once), "uri %q", uri)
	}
}

func TestWrapRedirectURIWithBasePath(t *testing.T) {
	t.Parallel()

	srv := newBareServer(t, "/auth")
	req := httptest.NewRequest("GET", "http://op.example/auth/authorize", nil)

	assert.Equal(t,
		"http://op.example/auth/r/https://rp.example/cb",
		srv.wrapRedirectURI(req, "https://rp.example/cb"))
}

func TestIsSecureURL(t *testing.T) {
	t.Parallel()

	srv := newBareServer(t, "/")

	assert.True(t, srv.isSecureURL("https://rp.example/cb"))
	assert.True(t, srv.isSecureURL("http://localhost:3000/cb"))
	assert.True(t, srv.isSecureURL("http://127.0.0.1/cb"))
	assert.True(t, srv.isSecureURL("http://[::1]:8080/cb"))
	assert.False(t, srv.isSecureURL("http://rp.example/cb"))
	assert.False(t, srv.isSecureURL("://not-a-url"))
}

func TestIsSecureURLLoopbackNotTrusted(t *testing.T) {
	t.Parallel()

	srv := newBareServer(t, "/")
	srv.settings.TreatLoopbackAsSecure = false

	assert.True(t, srv.isSecureURL("https://rp.example/cb"))
	assert.False(t, srv.isSecureURL("http://localhost:3000/cb"))
}
