package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/admin"
)

type AdminHandler struct {
	svc *admin.Service
}

func NewAdminHandler(svc *admin.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Register routes under /admin. rg must already require a session.
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/admin")
	a.GET("/users", h.Users)
	a.GET("/users/:id", h.User)
	a.PUT("/users/:id", h.UpdateUser)
	a.GET("/accounts", h.Accounts)
	a.GET("/transactions", h.Transactions)
	a.GET("/dashboard", h.Dashboard)
}

func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.svc.Users(c.Request.Context(), queryParams(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *AdminHandler) User(c *gin.Context) {
	out, err := h.svc.User(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var changes map[string]any
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.UpdateUser(c.Request.Context(), c.Param("id"), changes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) Accounts(c *gin.Context) {
	list, err := h.svc.Accounts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": list})
}

func (h *AdminHandler) Transactions(c *gin.Context) {
	out, err := h.svc.Transactions(c.Request.Context(), queryParams(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	out, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
