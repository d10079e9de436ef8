package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/transactions"
)

type TransactionsHandler struct {
	svc *transactions.Service
}

func NewTransactionsHandler(svc *transactions.Service) *TransactionsHandler {
	return &TransactionsHandler{svc: svc}
}

// Register routes under /transactions. rg must already require a session.
func (h *TransactionsHandler) Register(rg *gin.RouterGroup) {
	t := rg.Group("/transactions")
	t.GET("", h.List)
	t.GET("/account/:id", h.ByAccount)
	t.POST("/transfer", h.Transfer)
	t.POST("/payment", h.Payment)
	t.GET("/payment/:id/confirmation", h.PaymentConfirmation)
	t.GET("/payees", h.Payees)
	t.POST("/payees", h.AddPayee)
	t.GET("/:id", h.Get)
}

func (h *TransactionsHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), queryParams(c), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list})
}

func (h *TransactionsHandler) ByAccount(c *gin.Context) {
	list, err := h.svc.ByAccount(c.Request.Context(), c.Param("id"), queryParams(c), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list})
}

func (h *TransactionsHandler) Get(c *gin.Context) {
	tx, err := h.svc.Get(c.Request.Context(), c.Param("id"), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *TransactionsHandler) Transfer(c *gin.Context) {
	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Transfer(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *TransactionsHandler) Payment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Payment(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *TransactionsHandler) PaymentConfirmation(c *gin.Context) {
	out, err := h.svc.PaymentConfirmation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *TransactionsHandler) Payees(c *gin.Context) {
	list, err := h.svc.Payees(c.Request.Context(), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payees": list})
}

func (h *TransactionsHandler) AddPayee(c *gin.Context) {
	var req models.Payee
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.AddPayee(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
