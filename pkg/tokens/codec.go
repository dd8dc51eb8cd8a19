// Package tokens implements the signed-JWT and encrypted-JWE codec that every
// takagi envelope travels through. Signing uses RS256; encryption uses the
// direct key agreement with A256GCM content encryption.
package tokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"

	"github.com/takagi-dev/takagi/pkg/keys"
)

// ErrInvalid is the single error kind surfaced for any verification or
// decryption failure: bad signature, malformed token, expired or not-yet-valid
// claims, issuer/audience mismatch. Callers map it to an HTTP status; the
// distinction between failure modes is deliberately not exposed.
var ErrInvalid = errors.New("invalid token")

// Expectations lists the claims Verify must require beyond the always-checked
// exp, iat, and nbf. A zero value requires nothing extra.
type Expectations struct {
	// Issuer, when non-empty, must equal the token's iss claim.
	Issuer string

	// Audience, when non-empty, must be contained in the token's aud claim.
	Audience string
}

// Codec signs, verifies, encrypts, and decrypts compact tokens using the key
// material from a keys.Store.
type Codec struct {
	store *keys.Store
}

// NewCodec creates a codec over the given key store.
func NewCodec(store *keys.Store) *Codec {
	return &Codec{store: store}
}

// Sign serializes the payload to JSON and returns it as a compact RS256 JWS.
func (c *Codec) Sign(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	key, err := c.store.SigningKey()
	if err != nil {
		return "", err
	}

	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.TypeKey, "JWT"); err != nil {
		return "", fmt.Errorf("failed to set token header: %w", err)
	}

	signed, err := jws.Sign(data, jws.WithKey(jwa.RS256(), key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

// registeredClaims is the slice of the payload Verify validates.
type registeredClaims struct {
	Issuer    string   `json:"iss"`
	Audience  audience `json:"aud"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
	NotBefore int64    `json:"nbf"`
}

// audience accepts both the string and string-array forms of the aud claim.
type audience []string

func (a *audience) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = audience{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = audience(many)
	return nil
}

func (a audience) contains(want string) bool {
	for _, aud := range a {
		if aud == want {
			return true
		}
	}
	return false
}

// Verify checks the token's RS256 signature and registered claims against
// the current wall clock and the given expectations, then unmarshals the
// payload into dst. Every failure mode reports ErrInvalid.
func (c *Codec) Verify(token string, exp Expectations, dst any) error {
	pub, err := c.publicKey()
	if err != nil {
		return err
	}

	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.RS256(), pub))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var claims registeredClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := validateClaims(claims, exp, time.Now()); err != nil {
		return err
	}

	if dst != nil {
		if err := json.Unmarshal(payload, dst); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	return nil
}

func validateClaims(claims registeredClaims, exp Expectations, now time.Time) error {
	ts := now.Unix()

	if claims.ExpiresAt == 0 || claims.ExpiresAt <= ts {
		return fmt.Errorf("%w: token is expired", ErrInvalid)
	}
	if claims.IssuedAt > ts {
		return fmt.Errorf("%w: token issued in the future", ErrInvalid)
	}
	if claims.NotBefore > ts {
		return fmt.Errorf("%w: token not yet valid", ErrInvalid)
	}

	if exp.Issuer != "" && claims.Issuer != exp.Issuer {
		return fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	}
	if exp.Audience != "" && !claims.Audience.contains(exp.Audience) {
		return fmt.Errorf("%w: audience mismatch", ErrInvalid)
	}

	return nil
}

// Encrypt seals the plaintext as a compact JWE (alg=dir, enc=A256GCM).
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	key, err := c.store.EncryptionKey()
	if err != nil {
		return "", err
	}

	sealed, err := jwe.Encrypt(plaintext,
		jwe.WithKey(jwa.DIRECT(), key),
		jwe.WithContentEncryption(jwa.A256GCM()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt payload: %w", err)
	}

	return string(sealed), nil
}

// Decrypt opens a compact JWE produced by Encrypt. Failures report ErrInvalid.
func (c *Codec) Decrypt(sealed string) ([]byte, error) {
	key, err := c.store.EncryptionKey()
	if err != nil {
		return nil, err
	}

	plaintext, err := jwe.Decrypt([]byte(sealed), jwe.WithKey(jwa.DIRECT(), key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return plaintext, nil
}

func (c *Codec) publicKey() (jwk.Key, error) {
	sig, err := c.store.SigningKey()
	if err != nil {
		return nil, err
	}

	pub, err := jwk.PublicKeyOf(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	return pub, nil
}
