package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/security"
)

type SecurityHandler struct {
	svc *security.Service
}

func NewSecurityHandler(svc *security.Service) *SecurityHandler {
	return &SecurityHandler{svc: svc}
}

// Register routes under /security. rg must already require a session.
func (h *SecurityHandler) Register(rg *gin.RouterGroup) {
	s := rg.Group("/security")
	s.GET("/settings", h.Settings)
	s.PUT("/settings", h.UpdateSettings)
	s.POST("/two-factor/enable", h.EnableTwoFactor)
	s.POST("/two-factor/verify", h.VerifyTwoFactor)
	s.POST("/two-factor/disable", h.DisableTwoFactor)
	s.PUT("/password", h.ChangePassword)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *SecurityHandler) Settings(c *gin.Context) {
	out, err := h.svc.Settings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SecurityHandler) UpdateSettings(c *gin.Context) {
	var req models.SecuritySettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SecurityHandler) EnableTwoFactor(c *gin.Context) {
	out, err := h.svc.EnableTwoFactor(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SecurityHandler) VerifyTwoFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.VerifyTwoFactor(c.Request.Context(), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SecurityHandler) DisableTwoFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.DisableTwoFactor(c.Request.Context(), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SecurityHandler) ChangePassword(c *gin.Context) {
	var req security.PasswordChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.ChangePassword(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
