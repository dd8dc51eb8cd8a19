package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationURL(t *testing.T) {
	t.Parallel()

	c := NewClient(WithBaseURLs("https://gh.example/login/oauth/authorize", "", ""))

	extra := url.Values{}
	extra.Set("state", "signed-state")
	extra.Set("response_type", "code")
	// Reserved parameters in extra must not survive.
	extra.Set("client_id", "evil")
	extra.Set("redirect_uri", "https://evil.example/cb")

	raw := c.AuthorizationURL("abc", "https://op.example/r/https://rp.example/cb",
		[]string{"profile", "user:email"}, extra)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://gh.example/login/oauth/authorize", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	assert.Equal(t, "abc", q.Get("client_id"))
	assert.Equal(t, "https://op.example/r/https://rp.example/cb", q.Get("redirect_uri"))
	assert.Equal(t, "profile user:email", q.Get("scope"))
	assert.Equal(t, "signed-state", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestAuthorizationURLWithoutScopes(t *testing.T) {
	t.Parallel()

	c := NewClient(WithBaseURLs("https://gh.example/authorize", "", ""))

	raw := c.AuthorizationURL("abc", "https://op.example/r/x", nil, url.Values{"scope": {"stale"}})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.False(t, u.Query().Has("scope"))
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	var gotForm url.Values
	var gotUser, gotPass string

	fixture := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotUser, gotPass, _ = r.BasicAuth()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_abc","token_type":"bearer","scope":"user:email"}`))
	}))
	defer fixture.Close()

	c := NewClient(WithBaseURLs("", fixture.URL, ""))

	extra := url.Values{}
	extra.Set("code_verifier", "pkce-verifier")

	token, err := c.ExchangeCode(context.Background(),
		"abc", "secret", "ghcode", "https://op.example/r/https://rp.example/cb", extra)
	require.NoError(t, err)

	assert.Equal(t, "gho_abc", token["access_token"])
	assert.Equal(t, "abc", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "ghcode", gotForm.Get("code"))
	assert.Equal(t, "https://op.example/r/https://rp.example/cb", gotForm.Get("redirect_uri"))
	assert.Equal(t, "pkce-verifier", gotForm.Get("code_verifier"))
}

// GitHub reports a failed exchange as 200 with an error object in the body.
func TestExchangeCodeErrorInBody(t *testing.T) {
	t.Parallel()

	fixture := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`))
	}))
	defer fixture.Close()

	c := NewClient(WithBaseURLs("", fixture.URL, ""))

	_, err := c.ExchangeCode(context.Background(), "abc", "secret", "bogus", "", nil)
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, ue.StatusCode)

	detail, ok := ue.Detail().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bad_verification_code", detail["error"])
}

func TestExchangeCodeUpstreamStatus(t *testing.T) {
	t.Parallel()

	fixture := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream broke"}`))
	}))
	defer fixture.Close()

	c := NewClient(WithBaseURLs("", fixture.URL, ""))

	_, err := c.ExchangeCode(context.Background(), "abc", "secret", "ghcode", "", nil)
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
}

func TestUser(t *testing.T) {
	t.Parallel()

	fixture := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		assert.Equal(t, "Bearer gho_abc", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"id":         1234,
			"login":      "octocat",
			"name":       "The Octocat",
			"email":      "octocat@github.com",
			"avatar_url": "https://avatars.example/octocat",
			"html_url":   "https://github.com/octocat",
			"updated_at": "2024-01-01T00:00:00Z",
		}))
	}))
	defer fixture.Close()

	c := NewClient(WithBaseURLs("", "", fixture.URL))

	user, err := c.User(context.Background(), "gho_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), user.ID)
	assert.Equal(t, "octocat", user.Login)
	assert.Equal(t, "The Octocat", user.Name)
	assert.Equal(t, "octocat@github.com", user.Email)
}

func TestUserUnauthorized(t *testing.T) {
	t.Parallel()

	fixture := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer fixture.Close()

	c := NewClient(WithBaseURLs("", "", fixture.URL))

	_, err := c.User(context.Background(), "gho_revoked")
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, ue.StatusCode)
}

func TestOrgs(t *testing.T) {
	t.Parallel()

	fixture := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/orgs", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":99,"login":"acme"},{"id":100,"login":"initech"}]`))
	}))
	defer fixture.Close()

	c := NewClient(WithBaseURLs("", "", fixture.URL))

	orgs, err := c.Orgs(context.Background(), "gho_abc")
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, int64(99), orgs[0].ID)
	assert.Equal(t, "initech", orgs[1].Login)
}
