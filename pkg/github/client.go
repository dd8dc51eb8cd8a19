// Package github wraps the slice of GitHub's OAuth2 and REST APIs that the
// identity bridge needs: building authorization redirects, exchanging codes
// for tokens, and fetching the authenticated user and their organizations.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
	"golang.org/x/time/rate"

	"github.com/takagi-dev/takagi/pkg/logger"
)

// APIBaseURL is the base URL of GitHub's REST API.
const APIBaseURL = "https://api.github.com"

// maxResponseSize bounds how much of a GitHub response body is read.
const maxResponseSize = 1 << 20

// User is the subset of GitHub's /user response that identity claims are
// derived from.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
	UpdatedAt string `json:"updated_at"`
}

// Org is a GitHub organization membership entry from /user/orgs.
type Org struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// Client talks to GitHub's OAuth2 authorization server and REST API.
type Client struct {
	authURL    string
	tokenURL   string
	apiBaseURL string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURLs overrides the GitHub endpoint URLs. Intended for tests that
// point the client at a fixture server.
func WithBaseURLs(authURL, tokenURL, apiBaseURL string) Option {
	return func(c *Client) {
		c.authURL = authURL
		c.tokenURL = tokenURL
		c.apiBaseURL = apiBaseURL
	}
}

// NewClient creates a GitHub client against github.com.
func NewClient(opts ...Option) *Client {
	c := &Client{
		authURL:    githuboauth.Endpoint.AuthURL,
		tokenURL:   githuboauth.Endpoint.TokenURL,
		apiBaseURL: APIBaseURL,
		httpClient: http.DefaultClient,
		// GitHub allows 5,000 requests/hour; limit locally well below that
		// to keep one misbehaving relying party from burning the budget.
		limiter: rate.NewLimiter(50, 100),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AuthorizationURL builds the GitHub authorization redirect for the given
// client, translated scope set, and passthrough query parameters. Reserved
// parameters (client_id, redirect_uri, scope) are always derived here and
// override anything in extra.
func (c *Client) AuthorizationURL(clientID, redirectURI string, ghScopes []string, extra url.Values) string {
	params := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)
	if len(ghScopes) > 0 {
		params.Set("scope", strings.Join(ghScopes, " "))
	} else {
		params.Del("scope")
	}

	return c.authURL + "?" + params.Encode()
}

// ExchangeCode trades an authorization code for GitHub's token response.
// Client credentials are attached per HTTP Basic; extra form fields are
// passed through. The response is returned as an opaque map so that whatever
// shape GitHub sends travels through unharmed.
func (c *Client) ExchangeCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI string,
	extra url.Values,
) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	params := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	if redirectURI != "" {
		params.Set("redirect_uri", redirectURI)
	}

	logger.Debugw("exchanging authorization code", "token_endpoint", c.tokenURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(clientID, clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: body, URL: c.tokenURL}
	}

	var token map[string]any
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	// GitHub reports failed exchanges (bad code, bad credentials) as a 200
	// carrying an error object.
	if _, failed := token["error"]; failed {
		return nil, &UpstreamError{StatusCode: http.StatusBadRequest, Body: body, URL: c.tokenURL}
	}

	return token, nil
}

// User fetches the authenticated user's profile.
func (c *Client) User(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.apiGet(ctx, "/user", accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Orgs fetches the organizations the authenticated user has granted the
// application access to.
func (c *Client) Orgs(ctx context.Context, accessToken string) ([]Org, error) {
	var orgs []Org
	if err := c.apiGet(ctx, "/user/orgs", accessToken, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// apiGet issues an authenticated GET against the REST API and decodes the
// JSON response into dst. Non-2xx responses surface as UpstreamError.
func (c *Client) apiGet(ctx context.Context, path, accessToken string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	// Route the request through an oauth2 transport so the bearer token is
	// attached the same way for every REST call.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	reqURL := c.apiBaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create API request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{StatusCode: resp.StatusCode, Body: body, URL: reqURL}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode API response: %w", err)
	}

	return nil
}
