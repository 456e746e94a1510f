package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/credits"
	"attendance/internal/users"
)

// writeError maps domain errors to the HTTP error body {"detail", "code"}.
// Anything unrecognized is logged and reported as a 500, never as an auth failure.
func (h *handler) writeError(c *gin.Context, err error) {
	var exhausted *credits.ExhaustedError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password", "code": "INVALID_CREDENTIALS"})
	case errors.Is(err, auth.ErrUnauthenticated):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials", "code": "UNAUTHENTICATED"})
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": "Not enough permissions", "code": "FORBIDDEN"})
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, attendance.ErrInvalidInput),
		errors.Is(err, credits.ErrInvalidAmount),
		errors.Is(err, credits.ErrInvalidStaff):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error(), "code": "BAD_REQUEST"})
	case errors.Is(err, credits.ErrCreditsExhausted):
		remaining := 0
		if errors.As(err, &exhausted) {
			remaining = exhausted.Balance.Remaining()
		}
		// Always 409 so exhaustion never shares a status with rate limiting (429).
		if h.policy.Retryable() {
			c.Header("Retry-After", "3600")
			c.JSON(http.StatusConflict, gin.H{
				"detail":            "No manual correction credits remaining",
				"code":              "CREDITS_EXHAUSTED",
				"retryable":         true,
				"credits_remaining": remaining,
			})
			return
		}
		c.JSON(http.StatusConflict, gin.H{
			"detail":            "No manual correction credits remaining; ask a department head to replenish them",
			"code":              "CREDITS_EXHAUSTED",
			"retryable":         false,
			"credits_remaining": remaining,
		})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error", "code": "INTERNAL_ERROR"})
	}
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": detail, "code": "BAD_REQUEST"})
}
