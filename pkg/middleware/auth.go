package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
)

// Context keys set by RequireSession.
const (
	ClaimsKey  = "claims"
	SessionKey = "session"
)

// SessionGuard is the part of the session manager the middleware depends on.
type SessionGuard interface {
	Stabilize(ctx context.Context) bool
	Snapshot(ctx context.Context) sessions.Session
	RecordActivity(ctx context.Context)
}

// RequireSession repairs the stored session before a protected route runs and
// rejects the request with a login redirect when no access token is left.
// A degraded session (no refresh token) is let through and flagged with the
// X-Session-State header.
func RequireSession(guard SessionGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		healthy := guard.Stabilize(ctx)
		snap := guard.Snapshot(ctx)
		if snap.State == sessions.Anonymous {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required", "redirect": "/login"})
			return
		}
		if !healthy {
			c.Header("X-Session-State", snap.State.String())
		}
		guard.RecordActivity(ctx)

		// informational only: the backend is the authority on these claims
		if cl, err := tokens.ParseClaims(snap.AccessToken); err == nil && cl.Subject != "" {
			c.Set(ClaimsKey, map[string]interface{}{"sub": cl.Subject, "email": cl.Email})
		}
		c.Set(SessionKey, snap)
		c.Next()
	}
}
