// Package auth verifies Cognito-issued ID tokens and resolves them to a user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized wraps every authentication failure; handlers map it to 401
// without leaking the verification detail to the client.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves an Authorization header to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (string, error)
}

// CognitoAuthenticator verifies RS256 ID tokens against a Cognito user
// pool's JWKS and returns the token's sub claim.
type CognitoAuthenticator struct {
	keys     *jwksCache
	issuer   string
	clientID string
	logger   *slog.Logger
}

// NewCognitoAuthenticator builds an authenticator for the given user pool.
func NewCognitoAuthenticator(region, userPoolID, clientID string, logger *slog.Logger) (*CognitoAuthenticator, error) {
	if userPoolID == "" {
		return nil, fmt.Errorf("cognito user pool id is required")
	}
	if clientID == "" {
		return nil, fmt.Errorf("cognito client id is required")
	}
	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
	return &CognitoAuthenticator{
		keys:     newJWKSCache(issuer + "/.well-known/jwks.json"),
		issuer:   issuer,
		clientID: clientID,
		logger:   logger,
	}, nil
}

// Authenticate verifies the bearer token and returns its sub claim.
func (a *CognitoAuthenticator) Authenticate(ctx context.Context, authorizationHeader string) (string, error) {
	raw := bearerToken(authorizationHeader)
	if raw == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}

	token, err := jwt.Parse(raw,
		func(t *jwt.Token) (interface{}, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token missing kid header")
			}
			return a.keys.key(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		a.logger.WarnContext(ctx, "token verification failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no sub claim", ErrUnauthorized)
	}
	return sub, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	if len(parts) == 1 {
		// some clients send the raw token without a scheme
		return parts[0]
	}
	return ""
}

// StaticAuthenticator backs tests and local runs with a fixed identity.
type StaticAuthenticator struct {
	UserID string
}

func (s StaticAuthenticator) Authenticate(context.Context, string) (string, error) {
	if s.UserID == "" {
		return "", ErrUnauthorized
	}
	return s.UserID, nil
}
