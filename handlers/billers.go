package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/billers"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
)

type BillersHandler struct {
	svc *billers.Service
}

func NewBillersHandler(svc *billers.Service) *BillersHandler {
	return &BillersHandler{svc: svc}
}

// Register routes under /billers. rg must already require a session.
func (h *BillersHandler) Register(rg *gin.RouterGroup) {
	b := rg.Group("/billers")
	b.GET("", h.List)
	b.POST("", h.Add)
	b.GET("/saved", h.Saved)
	b.POST("/saved", h.Save)
	b.DELETE("/saved/:id", h.Delete)
	b.PUT("/saved/:id/favorite", h.Favorite)
}

func (h *BillersHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"billers": list})
}

func (h *BillersHandler) Saved(c *gin.Context) {
	list, err := h.svc.Saved(c.Request.Context(), forceRefresh(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"billers": list})
}

func (h *BillersHandler) Add(c *gin.Context) {
	var req models.Biller
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Add(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *BillersHandler) Save(c *gin.Context) {
	var req models.SavedBiller
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Save(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *BillersHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BillersHandler) Favorite(c *gin.Context) {
	var req struct {
		IsFavorite bool `json:"is_favorite"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.SetFavorite(c.Request.Context(), c.Param("id"), req.IsFavorite)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
