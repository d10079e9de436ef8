package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/auth"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

// writeError translates service errors into JSON responses.
func writeError(c *gin.Context, err error) {
	var (
		ve  *apiclient.ValidationError
		amb *apiclient.PaymentAmbiguousAuthError
		he  *apiclient.HTTPError
		mal *apiclient.MalformedResponseError
		ue  *url.Error
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.As(err, &amb):
		c.JSON(http.StatusConflict, gin.H{"error": amb.Error(), "paymentMayHaveCompleted": true})
	case apiclient.IsAuthError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required", "redirect": "/login"})
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &he):
		msg := he.Message
		if msg == "" {
			msg = http.StatusText(he.Status)
		}
		c.JSON(he.Status, gin.H{"error": msg})
	case errors.As(err, &mal):
		logger.Warnf("gateway: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "invalid response from banking backend"})
	case errors.As(err, &ue):
		logger.Warnf("gateway: backend unreachable: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "banking backend unavailable"})
	default:
		logger.Errorf("gateway: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// forceRefresh reads the ?refresh=true switch.
func forceRefresh(c *gin.Context) bool {
	return c.Query("refresh") == "true"
}

// queryParams returns the request query without gateway-only switches.
func queryParams(c *gin.Context) url.Values {
	q := c.Request.URL.Query()
	q.Del("refresh")
	return q
}
