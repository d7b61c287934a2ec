package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "auth_user_id"
	roleKey   = "auth_role"
)

// UserID returns the authenticated user set by RequireUser or RequireAdmin.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// tokenFrom reads "Authorization: Bearer <t>", falling back to the "token"
// header the storefront sends.
func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	return c.GetHeader("token")
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg, "code": code})
}

// authenticate verifies the token and stores its claims on c. It aborts and
// returns false when the token is missing or invalid.
func authenticate(c *gin.Context, t *Tokens) bool {
	raw := tokenFrom(c)
	if raw == "" {
		abort(c, http.StatusUnauthorized, "unauthorized", "Not Authorized Login Again")
		return false
	}
	claims, err := t.Verify(raw)
	if err != nil {
		abort(c, http.StatusUnauthorized, "unauthorized", "Not Authorized Login Again")
		return false
	}
	c.Set(userIDKey, claims.Subject)
	c.Set(roleKey, claims.Role)
	return true
}

// RequireUser rejects requests without a valid token.
func RequireUser(t *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, t) {
			c.Next()
		}
	}
}

// RequireAdmin additionally requires the admin role.
func RequireAdmin(t *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, t) {
			return
		}
		if c.GetString(roleKey) != RoleAdmin {
			abort(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		c.Next()
	}
}
