// Package scopes translates between the OIDC scope vocabulary this service
// speaks to relying parties and the OAuth scope vocabulary GitHub understands.
package scopes

import "strings"

// oidcToGitHub maps each translatable OIDC scope to its GitHub equivalent.
// openid has no GitHub counterpart and is dropped when translating outward;
// unknown scopes are dropped in both directions.
var oidcToGitHub = map[string]string{
	"profile": "profile",
	"email":   "user:email",
	"groups":  "read:org",
}

var githubToOIDC = invert(oidcToGitHub)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// Parse splits a space-delimited scope string into a list. Empty input yields
// an empty list.
func Parse(scope string) []string {
	return strings.Fields(scope)
}

// Join renders a scope list as the space-delimited wire form.
func Join(scopes []string) string {
	return strings.Join(scopes, " ")
}

// Contains reports whether the scope list includes the given scope.
func Contains(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ToGitHub translates OIDC scopes to GitHub scopes, deduplicating the input
// and preserving the mapping's deterministic order (profile, email, groups).
func ToGitHub(scopes []string) []string {
	return translate(scopes, oidcToGitHub, []string{"profile", "email", "groups"})
}

// ToOIDC translates GitHub scopes back to OIDC scopes.
func ToOIDC(scopes []string) []string {
	return translate(scopes, githubToOIDC, []string{"profile", "user:email", "read:org"})
}

func translate(scopes []string, mapping map[string]string, order []string) []string {
	seen := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		seen[s] = true
	}

	out := make([]string, 0, len(order))
	for _, key := range order {
		if seen[key] {
			out = append(out, mapping[key])
		}
	}
	return out
}
