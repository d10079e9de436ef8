package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/middleware"
)

// API groups the route handlers mounted under /api.
type API struct {
	Sessions     *sessions.Manager
	Auth         *AuthHandler
	Accounts     *AccountsHandler
	Transactions *TransactionsHandler
	Billers      *BillersHandler
	Admin        *AdminHandler
	Security     *SecurityHandler
}

// RegisterAPI mounts /api. Everything except auth and session routes requires a session.
func RegisterAPI(r *gin.Engine, api API) {
	g := r.Group("/api")
	api.Auth.Register(g)

	protected := g.Group("")
	protected.Use(middleware.RequireSession(api.Sessions))
	api.Accounts.Register(protected)
	api.Transactions.Register(protected)
	api.Billers.Register(protected)
	api.Admin.Register(protected)
	api.Security.Register(protected)
}
