// Package config loads takagi's settings from the process environment.
// Every key lives under the TAKAGI_ prefix with __ separating nested keys
// (e.g. TAKAGI_PRIVATE__SHOW_SCALAR_DEVTOOLS_ON_LOCALHOST). Settings are
// loaded once at startup into an explicit struct that gets threaded through
// the handlers; there is no global accessor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/spf13/viper"

	"github.com/takagi-dev/takagi/pkg/keys"
	"github.com/takagi-dev/takagi/pkg/logger"
)

// Root redirect modes.
const (
	RootRedirectRepo     = "repo"
	RootRedirectSettings = "settings"
	RootRedirectDocs     = "docs"
	RootRedirectOff      = "off"
)

// MinTokenLifetime is the shortest configurable outward token lifetime.
const MinTokenLifetime = 60 * time.Second

// loopbackHosts are always trusted in addition to the configured allow-list.
var loopbackHosts = []string{"localhost", "127.0.0.1", "::1"}

// PrivateSettings holds knobs that are intentionally undocumented.
type PrivateSettings struct {
	ShowScalarDevtoolsOnLocalhost bool
}

// Settings is the resolved, validated configuration record.
type Settings struct {
	// AllowedHosts is the trusted-host allow-list, always extended with the
	// loopback names. A "*" entry admits any host.
	AllowedHosts []string

	// AllowedClients lists the admitted OAuth client IDs; a "*" entry admits
	// every client.
	AllowedClients []string

	// BasePath is the path prefix the service is mounted under.
	BasePath string

	// FixRedirectURIs silently rewrites redirect URIs under /r instead of
	// rejecting mismatches at /authorize.
	FixRedirectURIs bool

	// TokenLifetime is the outward token lifetime; zero means tokens never
	// expire (the far-future sentinel is used).
	TokenLifetime time.Duration

	// RootRedirect selects what GET / does: repo, settings, docs, or off.
	RootRedirect string

	// TreatLoopbackAsSecure exempts loopback URLs from the HTTPS requirement.
	TreatLoopbackAsSecure bool

	// ReturnToReferrer sends access-denied users back to the page that
	// started the flow when a Referer was captured at /authorize.
	ReturnToReferrer bool

	// AllowedWebFingerHosts lists DNS names (optionally wildcard, e.g.
	// *.example.com) whose accounts this issuer answers WebFinger queries for.
	AllowedWebFingerHosts []string

	// SigningKey and EncryptionKey are the operator-supplied keys, or nil
	// when the service manages its own.
	SigningKey    jwk.Key
	EncryptionKey jwk.Key

	// KeysDir is where self-managed keys are persisted.
	KeysDir string

	// EnableDocs serves the API reference at /docs.
	EnableDocs bool

	Private PrivateSettings
}

// HasOperatorKeys reports whether an operator-supplied keyset is in effect.
func (s *Settings) HasOperatorKeys() bool {
	return s.SigningKey != nil && s.EncryptionKey != nil
}

// ClientAllowed reports whether the given client ID may use this service.
func (s *Settings) ClientAllowed(clientID string) bool {
	for _, c := range s.AllowedClients {
		if c == "*" || c == clientID {
			return true
		}
	}
	return false
}

// Load reads and validates the settings from the environment.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("TAKAGI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	v.SetDefault("base_path", "/")
	v.SetDefault("allowed_clients", "*")
	v.SetDefault("root_redirect", RootRedirectRepo)
	v.SetDefault("treat_loopback_as_secure", true)
	v.SetDefault("enable_docs", true)
	v.SetDefault("keys_dir", filepath.Join("data", "keys"))

	s := &Settings{
		AllowedHosts:          splitList(v.GetString("allowed_hosts")),
		AllowedClients:        splitList(v.GetString("allowed_clients")),
		BasePath:              v.GetString("base_path"),
		FixRedirectURIs:       v.GetBool("fix_redirect_uris"),
		RootRedirect:          v.GetString("root_redirect"),
		TreatLoopbackAsSecure: v.GetBool("treat_loopback_as_secure"),
		ReturnToReferrer:      v.GetBool("return_to_referrer"),
		KeysDir:               v.GetString("keys_dir"),
		EnableDocs:            v.GetBool("enable_docs"),
		Private: PrivateSettings{
			ShowScalarDevtoolsOnLocalhost: v.GetBool("private.show_scalar_devtools_on_localhost"),
		},
	}

	for _, h := range s.AllowedHosts {
		if h == "*" {
			logger.Warn("setting TAKAGI_ALLOWED_HOSTS to '*' is insecure and not recommended")
		}
	}
	s.AllowedHosts = append(s.AllowedHosts, loopbackHosts...)

	switch s.RootRedirect {
	case RootRedirectRepo, RootRedirectSettings, RootRedirectDocs, RootRedirectOff:
	default:
		return nil, fmt.Errorf("TAKAGI_ROOT_REDIRECT must be one of repo, settings, docs, off; got %q", s.RootRedirect)
	}

	// The docs page must exist when the root endpoint points at it.
	if s.RootRedirect == RootRedirectDocs {
		s.EnableDocs = true
	}

	lifetime, err := parseLifetime(v.GetString("token_lifetime"))
	if err != nil {
		return nil, err
	}
	s.TokenLifetime = lifetime

	hosts, err := parseWebFingerHosts(v.GetString("allowed_webfinger_hosts"))
	if err != nil {
		return nil, err
	}
	s.AllowedWebFingerHosts = hosts

	if err := loadKeyset(v, s); err != nil {
		return nil, err
	}

	return s, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseLifetime accepts a Go duration string or a bare number of seconds.
// Empty means tokens never expire.
func parseLifetime(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	var lifetime time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		lifetime = time.Duration(secs) * time.Second
	} else {
		var perr error
		lifetime, perr = time.ParseDuration(value)
		if perr != nil {
			return 0, fmt.Errorf("TAKAGI_TOKEN_LIFETIME is not a valid duration: %q", value)
		}
	}

	if lifetime < MinTokenLifetime {
		return 0, fmt.Errorf("TAKAGI_TOKEN_LIFETIME must be at least %s, got %s", MinTokenLifetime, lifetime)
	}

	return lifetime, nil
}

// parseWebFingerHosts validates and normalizes the WebFinger host allow-list.
// Wildcard entries must carry at least three labels (*.example.com); the bare
// wildcard is rejected.
func parseWebFingerHosts(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}

	var hosts []string
	for _, raw := range splitList(value) {
		name := NormalizeDNSName(raw)

		if strings.HasPrefix(name, "*") && len(strings.Split(name, ".")) < 3 {
			return nil, fmt.Errorf(
				"the unqualified wildcard ('*') is not permitted in TAKAGI_ALLOWED_WEBFINGER_HOSTS")
		}

		hosts = append(hosts, name)
	}

	return hosts, nil
}

// NormalizeDNSName lowercases a DNS name and strips any trailing dot.
func NormalizeDNSName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// loadKeyset resolves TAKAGI_KEYSET / TAKAGI_KEYSET_FILE into validated keys.
func loadKeyset(v *viper.Viper, s *Settings) error {
	keysetJSON := v.GetString("keyset")
	keysetFile := v.GetString("keyset_file")

	if keysetJSON != "" && keysetFile != "" {
		return fmt.Errorf("TAKAGI_KEYSET and TAKAGI_KEYSET_FILE are mutually exclusive")
	}

	name := "TAKAGI_KEYSET"
	if keysetFile != "" {
		name = "TAKAGI_KEYSET_FILE"

		if !filepath.IsAbs(keysetFile) {
			return fmt.Errorf("%s must be an absolute path, got %q", name, keysetFile)
		}

		data, err := os.ReadFile(keysetFile) // #nosec G304 - path comes from operator configuration
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		keysetJSON = string(data)
	}

	if keysetJSON == "" {
		return nil
	}

	set, err := jwk.Parse([]byte(keysetJSON))
	if err != nil {
		return fmt.Errorf("%s is not a valid keyset: %w", name, err)
	}

	sig, enc, err := keys.ValidateKeySet(set, name)
	if err != nil {
		return err
	}

	s.SigningKey = sig
	s.EncryptionKey = enc
	return nil
}
