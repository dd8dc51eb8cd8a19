// Package keys manages the cryptographic key material for takagi: one RSA
// private key for RS256 signing and one 256-bit octet key for A256GCM
// encryption. Keys come from the operator-supplied keyset when configured,
// otherwise from JSON key files on disk, otherwise they are generated and
// persisted on first use.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/takagi-dev/takagi/pkg/logger"
)

const (
	// SigningAlgorithm is the JWS algorithm for every token this service signs.
	SigningAlgorithm = "RS256"

	// EncryptionAlgorithm is the JWE content encryption algorithm for sealed payloads.
	EncryptionAlgorithm = "A256GCM"

	rsaKeyBits = 2048
	octKeyLen  = 32 // bytes
)

// jwkFields is the subset of JWK members the validation rules inspect.
// Working on the JSON form keeps the checks independent of key-type internals.
type jwkFields struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	D   string `json:"d"`
	K   string `json:"k"`
}

func keyFields(key jwk.Key) (*jwkFields, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize key: %w", err)
	}

	var f jwkFields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to inspect key: %w", err)
	}

	return &f, nil
}

// ValidateKeySet checks an operator-supplied keyset against the rules in the
// deployment docs and returns the signing and encryption keys. The name
// argument is the configuration variable the keyset came from; it is only
// used in error messages.
func ValidateKeySet(set jwk.Set, name string) (sig, enc jwk.Key, err error) {
	if set.Len() != 2 {
		return nil, nil, fmt.Errorf("%s must contain exactly two keys", name)
	}

	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			return nil, nil, fmt.Errorf("%s is missing key %d", name, i)
		}

		fields, ferr := keyFields(key)
		if ferr != nil {
			return nil, nil, ferr
		}

		switch fields.Kty {
		case "RSA":
			if fields.Alg != SigningAlgorithm {
				return nil, nil, fmt.Errorf("the RSA key in %s must be an %s key", name, SigningAlgorithm)
			}
			if fields.Use != "sig" {
				return nil, nil, fmt.Errorf("the RSA key in %s must support signing", name)
			}
			if fields.D == "" {
				return nil, nil, fmt.Errorf("the RSA key in %s must be a private key", name)
			}
			sig = key
		case "oct":
			if fields.Alg != EncryptionAlgorithm {
				return nil, nil, fmt.Errorf("the octet sequence key in %s must be an %s key", name, EncryptionAlgorithm)
			}
			if fields.Use != "enc" {
				return nil, nil, fmt.Errorf("the octet sequence key in %s must support encryption", name)
			}
			enc = key
		}
	}

	if sig == nil {
		return nil, nil, fmt.Errorf("%s must contain an RSA key", name)
	}
	if enc == nil {
		return nil, nil, fmt.Errorf("%s must contain an octet sequence key", name)
	}

	return sig, enc, nil
}

// GenerateSigningKey creates a new RSA-2048 private key tagged for RS256 signing.
func GenerateSigningKey() (jwk.Key, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	key, err := jwk.Import(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to import RSA key: %w", err)
	}

	if err := tagKey(key, SigningAlgorithm, "sig"); err != nil {
		return nil, err
	}

	return key, nil
}

// GenerateEncryptionKey creates a new 256-bit octet key tagged for A256GCM encryption.
func GenerateEncryptionKey() (jwk.Key, error) {
	raw := make([]byte, octKeyLen)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate octet key: %w", err)
	}

	key, err := jwk.Import(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to import octet key: %w", err)
	}

	if err := tagKey(key, EncryptionAlgorithm, "enc"); err != nil {
		return nil, err
	}

	return key, nil
}

// tagKey sets the alg and use members and a thumbprint key ID on a fresh key.
func tagKey(key jwk.Key, alg, use string) error {
	if err := key.Set(jwk.AlgorithmKey, alg); err != nil {
		return fmt.Errorf("failed to set key algorithm: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, use); err != nil {
		return fmt.Errorf("failed to set key usage: %w", err)
	}

	// RFC 7638 thumbprint as the key ID, matching what relying parties will
	// see in the kid header of signed tokens.
	thumb, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, base64.RawURLEncoding.EncodeToString(thumb)); err != nil {
		return fmt.Errorf("failed to set key ID: %w", err)
	}

	return nil
}

// Generate creates a complete private keyset (one RSA signing key, one octet
// encryption key) suitable for the TAKAGI_KEYSET variable.
func Generate() (jwk.Set, error) {
	sig, err := GenerateSigningKey()
	if err != nil {
		return nil, err
	}

	enc, err := GenerateEncryptionKey()
	if err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(sig); err != nil {
		return nil, fmt.Errorf("failed to assemble keyset: %w", err)
	}
	if err := set.AddKey(enc); err != nil {
		return nil, fmt.Errorf("failed to assemble keyset: %w", err)
	}

	return set, nil
}

// loadKeyFile reads a single-key keyset JSON file written by persistKey.
func loadKeyFile(path string) (jwk.Key, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is derived from operator configuration
	if err != nil {
		return nil, err
	}

	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}

	key, ok := set.Key(0)
	if !ok {
		return nil, fmt.Errorf("key file %s contains no keys", path)
	}

	return key, nil
}

// persistKey writes a key to disk as a single-key keyset JSON document.
func persistKey(path string, key jwk.Key) error {
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return fmt.Errorf("failed to assemble keyset: %w", err)
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to serialize keyset: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create keys directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	logger.Infow("generated and persisted new key", "path", path)
	return nil
}
