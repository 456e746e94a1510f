package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"attendance/internal/metrics"
)

const claimsKey = "claims"

// TokenValidator is satisfied by *TokenService.
type TokenValidator interface {
	Validate(tokenStr string) (Claims, error)
}

// RequireAuth enforces bearer JWT tokens and stores the claims on the context.
func RequireAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			abortUnauthenticated(c, "Not authenticated")
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := v.Validate(tokenStr)
		if err != nil {
			abortUnauthenticated(c, "Could not validate credentials")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRoles must run after RequireAuth. It panics when built without roles.
func RequireRoles(roles ...Role) gin.HandlerFunc {
	if len(roles) == 0 {
		panic("auth: RequireRoles needs at least one role")
	}
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abortUnauthenticated(c, "Not authenticated")
			return
		}
		if err := Authorize(claims, roles...); err != nil {
			metrics.AuthDenials.WithLabelValues("forbidden").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Not enough permissions", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireAuth.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func abortUnauthenticated(c *gin.Context, detail string) {
	metrics.AuthDenials.WithLabelValues("unauthenticated").Inc()
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail, "code": "UNAUTHENTICATED"})
}
