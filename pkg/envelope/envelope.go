// Package envelope defines the signed records that carry flow state across
// the redirect boundaries of the OIDC flow. Envelopes are pure data; they are
// serialized and verified through a tokens.Codec passed in by the caller, so
// the package has no dependency on key material.
package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/takagi-dev/takagi/pkg/tokens"
)

// Lifetime is how long state and authorization envelopes stay valid.
const Lifetime = 300 * time.Second

// StateData is produced at /authorize and consumed at the /r callback. It is
// signed but not encrypted: the relying party supplied every field in it.
type StateData struct {
	RedirectURI string   `json:"redirect_uri"`
	State       string   `json:"state,omitempty"`
	Nonce       string   `json:"nonce,omitempty"`
	Scopes      []string `json:"scopes"`
	Referrer    string   `json:"referrer,omitempty"`
	IssuedAt    int64    `json:"iat"`
	ExpiresAt   int64    `json:"exp"`
	Randomizer  string   `json:"randomizer"`
}

// NewStateData stamps a state envelope with the standard lifetime and a fresh
// randomizer.
func NewStateData(redirectURI, state, nonce string, scopes []string, referrer string) *StateData {
	now := time.Now()
	return &StateData{
		RedirectURI: redirectURI,
		State:       state,
		Nonce:       nonce,
		Scopes:      scopes,
		Referrer:    referrer,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(Lifetime).Unix(),
		Randomizer:  newRandomizer(),
	}
}

// AuthorizationData is produced at the /r callback and handed to the relying
// party as its authorization code; /token consumes it.
type AuthorizationData struct {
	Code        string   `json:"code"`
	RedirectURI string   `json:"redirect_uri"`
	Nonce       string   `json:"nonce,omitempty"`
	Scopes      []string `json:"scopes"`
	IssuedAt    int64    `json:"iat"`
	ExpiresAt   int64    `json:"exp"`
	Randomizer  string   `json:"randomizer"`
}

// NewAuthorizationData binds a real GitHub authorization code to the state it
// was issued under.
func NewAuthorizationData(code string, state *StateData) *AuthorizationData {
	now := time.Now()
	return &AuthorizationData{
		Code:        code,
		RedirectURI: state.RedirectURI,
		Nonce:       state.Nonce,
		Scopes:      state.Scopes,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(Lifetime).Unix(),
		Randomizer:  newRandomizer(),
	}
}

// AccessInfo is the confidential payload sealed inside an access token: the
// full GitHub token response and the OIDC scopes it was granted under. The
// token response is carried as an opaque map; the only member this service
// relies on is access_token.
type AccessInfo struct {
	Token        map[string]any `json:"token"`
	ClientID     string         `json:"client_id,omitempty"`
	ClientSecret string         `json:"client_secret,omitempty"`
	Scopes       []string       `json:"scopes"`
}

// RawToken returns the GitHub access token string from the sealed response.
func (a *AccessInfo) RawToken() (string, error) {
	raw, ok := a.Token["access_token"].(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("access info has no access_token")
	}
	return raw, nil
}

// AccessToken is the outward access token: a signed envelope whose token
// claim is the JWE-sealed AccessInfo. Anyone holding the JWKS can verify its
// authenticity; only this service can open the payload.
type AccessToken struct {
	Issuer     string `json:"iss"`
	Audience   string `json:"aud"`
	IssuedAt   int64  `json:"iat"`
	ExpiresAt  int64  `json:"exp"`
	Token      string `json:"token"`
	Randomizer string `json:"randomizer"`
}

// NewAccessToken assembles an access-token envelope around a sealed payload.
// The expiry is chosen by the caller (operator lifetime or the far-future
// sentinel).
func NewAccessToken(issuer, audience string, issuedAt, expiresAt time.Time, sealed string) *AccessToken {
	return &AccessToken{
		Issuer:     issuer,
		Audience:   audience,
		IssuedAt:   issuedAt.Unix(),
		ExpiresAt:  expiresAt.Unix(),
		Token:      sealed,
		Randomizer: newRandomizer(),
	}
}

// Encode signs any envelope as a compact JWT.
func Encode(c *tokens.Codec, payload any) (string, error) {
	return c.Sign(payload)
}

// DecodeState verifies and unpacks a state envelope.
func DecodeState(c *tokens.Codec, token string) (*StateData, error) {
	var data StateData
	if err := c.Verify(token, tokens.Expectations{}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeAuthorization verifies and unpacks an authorization envelope.
func DecodeAuthorization(c *tokens.Codec, token string) (*AuthorizationData, error) {
	var data AuthorizationData
	if err := c.Verify(token, tokens.Expectations{}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeAccessToken verifies an access-token envelope against the caller's
// issuer and audience expectations.
func DecodeAccessToken(c *tokens.Codec, token string, exp tokens.Expectations) (*AccessToken, error) {
	var data AccessToken
	if err := c.Verify(token, exp, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SealAccessInfo serializes and encrypts the confidential payload.
func SealAccessInfo(c *tokens.Codec, info *AccessInfo) (string, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to serialize access info: %w", err)
	}
	return c.Encrypt(data)
}

// OpenAccessInfo decrypts and unpacks the token claim of a verified
// access-token envelope.
func OpenAccessInfo(c *tokens.Codec, sealed string) (*AccessInfo, error) {
	plaintext, err := c.Decrypt(sealed)
	if err != nil {
		return nil, err
	}

	var info AccessInfo
	if err := json.Unmarshal(plaintext, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", tokens.ErrInvalid, err)
	}
	return &info, nil
}

// newRandomizer returns 256 bits of randomness, base64url-encoded. Its only
// job is making two otherwise-identical envelopes serialize to distinct
// tokens.
func newRandomizer() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}
