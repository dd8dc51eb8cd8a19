package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/takagi-dev/takagi/pkg/envelope"
	"github.com/takagi-dev/takagi/pkg/scopes"
)

// farFuture is the expiry stamped on tokens when no lifetime is configured:
// 9999-12-31T23:59:59Z.
var farFuture = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// mintTokens builds the outward token pair for a GitHub token response: the
// signed ID token with scope-gated identity claims, and the signed access
// token with the GitHub response sealed inside. It returns the pair and the
// identity claims; /userinfo reuses the claims alone.
func (s *Server) mintTokens(
	ctx context.Context,
	r *http.Request,
	audience string,
	ghToken map[string]any,
	scopeList []string,
	nonce string,
) (*tokenResponse, map[string]any, error) {
	info := &envelope.AccessInfo{Token: ghToken, Scopes: scopeList}
	rawToken, err := info.RawToken()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	expiry := farFuture
	if s.settings.TokenLifetime > 0 {
		expiry = now.Add(s.settings.TokenLifetime)
	}

	claims, err := s.identityClaims(ctx, rawToken, scopeList)
	if err != nil {
		return nil, nil, err
	}

	claims["iss"] = s.issuer(r)
	if audience != "" {
		claims["aud"] = audience
	}
	claims["iat"] = now.Unix()
	claims["exp"] = expiry.Unix()
	if nonce != "" {
		claims["nonce"] = nonce
	}

	idToken, err := envelope.Encode(s.codec, claims)
	if err != nil {
		return nil, nil, err
	}

	sealed, err := envelope.SealAccessInfo(s.codec, info)
	if err != nil {
		return nil, nil, err
	}

	accessToken, err := envelope.Encode(s.codec,
		envelope.NewAccessToken(s.issuer(r), s.userinfoEndpoint(r), now, expiry, sealed))
	if err != nil {
		return nil, nil, err
	}

	pair := &tokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiry.Unix(),
		IDToken:     idToken,
	}
	return pair, claims, nil
}

// identityClaims fetches the user's GitHub profile and derives the identity
// claims the granted scopes admit. The subject is always present; everything
// else is gated on profile, email, and groups.
func (s *Server) identityClaims(ctx context.Context, rawToken string, scopeList []string) (map[string]any, error) {
	user, err := s.github.User(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	claims := map[string]any{
		"sub": strconv.FormatInt(user.ID, 10),
	}

	if scopes.Contains(scopeList, "profile") {
		claims["preferred_username"] = user.Login
		claims["name"] = user.Name
		claims["nickname"] = user.Name
		claims["picture"] = user.AvatarURL
		claims["profile"] = user.HTMLURL
		if ts, err := time.Parse(time.RFC3339, user.UpdatedAt); err == nil {
			claims["updated_at"] = ts.Unix()
		}
	}

	if scopes.Contains(scopeList, "email") && user.Email != "" {
		claims["email"] = user.Email
		claims["email_verified"] = true
	}

	if scopes.Contains(scopeList, "groups") {
		orgs, err := s.github.Orgs(ctx, rawToken)
		if err != nil {
			return nil, err
		}
		if len(orgs) > 0 {
			groups := make([]string, 0, len(orgs))
			for _, org := range orgs {
				groups = append(groups, strconv.FormatInt(org.ID, 10))
			}
			claims["groups"] = groups
		}
	}

	return claims, nil
}
