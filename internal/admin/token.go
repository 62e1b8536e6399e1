package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// resetScope is the OAuth2 scope required to reset a breaker.
const resetScope = "breaker:reset"

// Claims holds the validated token claims relevant to admin actions.
type Claims struct {
	Subject string
	Scopes  []string
}

// ScopeError indicates the token is valid but lacks the required scope.
type ScopeError struct {
	MissingScope string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("token missing %s scope", e.MissingScope)
}

func isScopeError(err error) bool {
	var se *ScopeError
	return errors.As(err, &se)
}

// authorize validates the request's bearer token against the configured
// secret, issuer, and audience, and requires the breaker:reset scope.
func (h *Handler) authorize(r *http.Request) (*Claims, error) {
	tokenStr, ok := extractBearerToken(r)
	if !ok {
		return nil, errors.New("missing bearer token")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.TokenSecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(h.cfg.TokenIssuer),
		jwt.WithAudience(h.cfg.TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	claims := &Claims{}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}

	// Scopes are a space-separated string per OAuth2 convention.
	if scopeStr, ok := mapClaims["scope"].(string); ok {
		claims.Scopes = strings.Fields(scopeStr)
	}

	for _, s := range claims.Scopes {
		if s == resetScope {
			return claims, nil
		}
	}
	return nil, &ScopeError{MissingScope: resetScope}
}

func extractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
