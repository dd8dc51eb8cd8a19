package keys

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/takagi-dev/takagi/pkg/logger"
)

// Key file names inside the keys directory.
const (
	rsaKeyFile = "rsa_private_key.json"
	octKeyFile = "oct_private_key.json"
)

// Store provides the signing and encryption keys.
//
// Source precedence is static: an operator-supplied keyset wins; otherwise
// keys are loaded from the keys directory; otherwise they are generated and
// persisted there. Keys are cached for the process lifetime after the first
// successful load, so reads are lock-free once warm. A generate-then-read
// race between concurrent first callers is tolerated: both may generate and
// the last write wins, which is acceptable because neither key is in use yet.
type Store struct {
	dir string

	mu  sync.Mutex
	sig jwk.Key
	enc jwk.Key
}

// NewStore creates a key store backed by the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// NewStoreWithKeys creates a key store pre-seeded with an operator-supplied
// signing and encryption key. The directory is never touched.
func NewStoreWithKeys(sig, enc jwk.Key) *Store {
	logger.Info("using operator-supplied private keyset")
	return &Store{sig: sig, enc: enc}
}

// SigningKey returns the RSA private key, generating and persisting one if
// none exists yet.
func (s *Store) SigningKey() (jwk.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sig != nil {
		return s.sig, nil
	}

	key, err := s.loadOrCreate(rsaKeyFile, GenerateSigningKey)
	if err != nil {
		return nil, err
	}

	s.sig = key
	return key, nil
}

// EncryptionKey returns the octet key, generating and persisting one if none
// exists yet.
func (s *Store) EncryptionKey() (jwk.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enc != nil {
		return s.enc, nil
	}

	key, err := s.loadOrCreate(octKeyFile, GenerateEncryptionKey)
	if err != nil {
		return nil, err
	}

	s.enc = key
	return key, nil
}

// loadOrCreate reads a key file, regenerating it once when the file is
// missing or unreadable. Failure after the regeneration attempt is fatal to
// the caller.
func (s *Store) loadOrCreate(name string, generate func() (jwk.Key, error)) (jwk.Key, error) {
	path := filepath.Join(s.dir, name)

	key, err := loadKeyFile(path)
	if err == nil {
		return key, nil
	}

	logger.Debugw("key file unavailable, generating", "path", path, "error", err.Error())

	key, err = generate()
	if err != nil {
		return nil, err
	}

	if err := persistKey(path, key); err != nil {
		return nil, err
	}

	return key, nil
}

// PublicJWKS returns the public JSON Web Key Set: the RSA public key only,
// tagged use=sig. The encryption key never leaves the service.
func (s *Store) PublicJWKS() (jwk.Set, error) {
	sig, err := s.SigningKey()
	if err != nil {
		return nil, err
	}

	pub, err := jwk.PublicKeyOf(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	if err := pub.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("failed to tag public key: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, fmt.Errorf("failed to assemble public keyset: %w", err)
	}

	return set, nil
}
