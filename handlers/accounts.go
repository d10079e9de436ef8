package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/accounts"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
)

type AccountsHandler struct {
	svc *accounts.Service
}

func NewAccountsHandler(svc *accounts.Service) *AccountsHandler {
	return &AccountsHandler{svc: svc}
}

// Register routes under /accounts. rg must already require a session.
func (h *AccountsHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/accounts")
	a.GET("", h.List)
	a.POST("", h.Open)
	a.GET("/:id", h.Get)
	a.PUT("/:id", h.UpdateSettings)
	a.POST("/:id/close", h.Close)
	a.GET("/:id/statements", h.Statements)
}

func (h *AccountsHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": list})
}

func (h *AccountsHandler) Get(c *gin.Context) {
	acc, err := h.svc.Get(c.Request.Context(), c.Param("id"), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acc})
}

func (h *AccountsHandler) Statements(c *gin.Context) {
	list, err := h.svc.Statements(c.Request.Context(), c.Param("id"), queryParams(c), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statements": list})
}

func (h *AccountsHandler) Open(c *gin.Context) {
	var req models.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Open(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *AccountsHandler) Close(c *gin.Context) {
	out, err := h.svc.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AccountsHandler) UpdateSettings(c *gin.Context) {
	var req models.AccountSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.UpdateSettings(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
