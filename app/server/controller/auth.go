package controller

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/watchmon/watchmon/pkg/utils"
)

func bearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	// browsers cannot set headers on websocket upgrades
	return r.URL.Query().Get("token")
}

// ValidateToken checks the bearer token against the configured API token hash.
func (c *Controller) ValidateToken(r *http.Request) bool {
	return utils.MatchesHash(c.App.AuthHash, bearer(r))
}

// ValidateJWT checks that the bearer token is an HS256 JWT signed with the configured secret.
func (c *Controller) ValidateJWT(r *http.Request) bool {
	if len(c.App.JWTSecret) == 0 {
		return false
	}
	raw := bearer(r)
	if raw == "" {
		return false
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) { return c.App.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil && tok.Valid
}

func (c *Controller) authEnabled() bool {
	return len(c.App.AuthHash) > 0 || len(c.App.JWTSecret) > 0
}

// RequireAuth middleware. Requests pass untouched when no credentials are configured.
func (c *Controller) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.authEnabled() || c.ValidateToken(r) || c.ValidateJWT(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// IssueToken signs an HS256 token for subject that expires after ttl.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	})
	return token.SignedString(secret)
}
