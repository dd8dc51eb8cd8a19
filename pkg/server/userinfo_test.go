package server

import (
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takagi-dev/takagi/pkg/envelope"
)

// obtainAccessToken runs the token exchange and returns the minted pair.
func (e *testEnv) obtainAccessToken(t *testing.T, scopes []string) tokenResponse {
	t.Helper()

	resp := e.postToken(t, "abc", "secret", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {e.authorizationJWT(t, scopes, "")},
		"redirect_uri": {e.wrapped("https://rp.example/cb")},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeJSON[tokenResponse](t, resp)
}

func (e *testEnv) getUserInfo(t *testing.T, method, bearer string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.base+"/userinfo", nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestUserInfo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	pair := env.obtainAccessToken(t, []string{"openid", "profile", "email"})

	resp := env.getUserInfo(t, http.MethodGet, pair.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	claims := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "1234", claims["sub"])
	assert.Equal(t, "octocat", claims["preferred_username"])
	assert.Equal(t, "The Octocat", claims["name"])
	assert.Equal(t, "octocat@github.com", claims["email"])
	assert.Equal(t, true, claims["email_verified"])
	assert.Equal(t, env.base+"/", claims["iss"])
	assert.NotContains(t, claims, "aud")
	assert.NotContains(t, claims, "groups")
}

func TestUserInfoPost(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	pair := env.obtainAccessToken(t, []string{"openid"})

	resp := env.getUserInfo(t, http.MethodPost, pair.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	claims := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "1234", claims["sub"])
}

func TestUserInfoUnauthorized(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		bearer string
	}{
		{name: "missing header", bearer: ""},
		{name: "garbage token", bearer: "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := env.getUserInfo(t, http.MethodGet, tt.bearer)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			// The 401 carries no body.
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Empty(t, body)
		})
	}
}

// A signed token whose audience is not this /userinfo endpoint must be
// rejected even though the signature is valid.
func TestUserInfoRejectsForeignAudience(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	now := time.Now()

	sealed, err := envelope.SealAccessInfo(env.srv.codec, &envelope.AccessInfo{
		Token:  map[string]any{"access_token": "gho_fixture"},
		Scopes: []string{"openid"},
	})
	require.NoError(t, err)

	token, err := envelope.Encode(env.srv.codec, envelope.NewAccessToken(
		env.base+"/", "https://other.example/userinfo", now, now.Add(time.Hour), sealed))
	require.NoError(t, err)

	resp := env.getUserInfo(t, http.MethodGet, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUserInfoRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	now := time.Now()

	sealed, err := envelope.SealAccessInfo(env.srv.codec, &envelope.AccessInfo{
		Token:  map[string]any{"access_token": "gho_fixture"},
		Scopes: []string{"openid"},
	})
	require.NoError(t, err)

	token, err := envelope.Encode(env.srv.codec, envelope.NewAccessToken(
		env.base+"/", env.base+"/userinfo", now.Add(-2*time.Hour), now.Add(-time.Hour), sealed))
	require.NoError(t, err)

	resp := env.getUserInfo(t, http.MethodGet, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
