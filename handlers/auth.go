package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/auth"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/watchdog"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/middleware"
)

// AuthHandler holds dependencies for login, profile and session routes.
type AuthHandler struct {
	auth     *auth.Service
	sessions *sessions.Manager
	watchdog *watchdog.Watchdog
}

// NewAuthHandler wires the handler. wd may be nil when the watchdog is disabled.
func NewAuthHandler(a *auth.Service, mgr *sessions.Manager, wd *watchdog.Watchdog) *AuthHandler {
	return &AuthHandler{auth: a, sessions: mgr, watchdog: wd}
}

// Register routes under /auth and /session
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/register", h.SignUp)
	a.POST("/forgot-password", h.ForgotPassword)
	a.POST("/reset-password", h.ResetPassword)
	a.POST("/logout", h.Logout)

	guard := middleware.RequireSession(h.sessions)
	a.GET("/profile", guard, h.Profile)
	a.PUT("/profile", guard, h.UpdateProfile)

	s := rg.Group("/session")
	s.GET("", h.Session)
	s.PUT("/route", h.SaveRoute)
	s.POST("/unload", h.Unload)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	snap := h.sessions.Snapshot(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user": u, "session": snap})
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout always succeeds from the caller's point of view; storage problems are reported.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": "/login"})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	u, err := h.auth.GetProfile(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.auth.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Session stabilizes the stored tokens and reports the resulting state.
func (h *AuthHandler) Session(c *gin.Context) {
	ctx := c.Request.Context()
	healthy := h.sessions.Stabilize(ctx)
	snap := h.sessions.Snapshot(ctx)
	c.JSON(http.StatusOK, gin.H{
		"session":       snap,
		"authenticated": snap.State != sessions.Anonymous,
		"healthy":       healthy,
		"user":          h.auth.CurrentUser(ctx),
	})
}

func (h *AuthHandler) SaveRoute(c *gin.Context) {
	var req struct {
		Route string `json:"route"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.sessions.SaveRoute(c.Request.Context(), req.Route); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unload snapshots the tokens into the backups, as a closing page would.
func (h *AuthHandler) Unload(c *gin.Context) {
	if h.watchdog != nil {
		h.watchdog.BeforeUnload(c.Request.Context())
	} else {
		h.sessions.SnapshotBackups(c.Request.Context())
	}
	c.Status(http.StatusNoContent)
}
