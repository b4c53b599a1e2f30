package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"minniegallery/internal/gateway"
)

const sessionIDKey = "session_id"

// Authenticator resolves a bearer token to the viewer and its session id.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken, ip, userAgent string) (gateway.Identity, string, error)
}

// Auth rejects requests without a valid bearer token. On success the viewer
// is attached to the request context.
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		if !authenticate(c, auth, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the viewer when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			authenticate(c, auth, token)
		}
		c.Next()
	}
}

// SessionID returns the session id set by Auth or OptionalAuth.
func SessionID(c *gin.Context) (string, bool) {
	v := c.GetString(sessionIDKey)
	return v, v != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func authenticate(c *gin.Context, auth Authenticator, token string) bool {
	id, sessionID, err := auth.Authenticate(c.Request.Context(), token, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		_ = c.Error(err)
		return false
	}
	c.Request = c.Request.WithContext(gateway.WithIdentity(c.Request.Context(), id))
	c.Set(sessionIDKey, sessionID)
	return true
}
