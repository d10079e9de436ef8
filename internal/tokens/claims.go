package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the informational view of an access token. The gateway cannot verify
// backend signatures, so nothing here may be used for authorization decisions.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// ParseClaims decodes the token payload without verifying it.
func ParseClaims(raw string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	c := &Claims{}
	c.Subject, _ = mc.GetSubject()
	c.Email, _ = mc["email"].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// Expired reports whether the token carried an exp claim that is past now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// TTL returns the remaining lifetime, or fallback when the token has no exp claim.
func TTL(raw string, now time.Time, fallback time.Duration) time.Duration {
	c, err := ParseClaims(raw)
	if err != nil || c.ExpiresAt.IsZero() {
		return fallback
	}
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return time.Second
}

// Fingerprint shortens a token for log lines.
func Fingerprint(raw string) string {
	if len(raw) <= 8 {
		return "***"
	}
	return "..." + raw[len(raw)-6:]
}
