package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the gateway.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>bankdash-gateway Swagger UI</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document for the session and payment routes.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "bankdash-gateway", "version": "v0.1.0" },
  "paths": {
    "/api/auth/login": {
      "post": {
        "summary": "Log in and start a session",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "user and session state" }, "400": { "description": "invalid credentials" } }
      }
    },
    "/api/auth/logout": {
      "post": { "summary": "End the session and revoke its tokens", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/session": {
      "get": { "summary": "Repair and report the session state", "responses": { "200": { "description": "anonymous, degraded or active" } } }
    },
    "/api/session/unload": {
      "post": { "summary": "Snapshot tokens into the backups", "responses": { "204": { "description": "saved" } } }
    },
    "/api/accounts": {
      "get": { "summary": "List accounts (?refresh=true bypasses caches)", "responses": { "200": { "description": "accounts" }, "401": { "description": "login required" } } }
    },
    "/api/transactions/transfer": {
      "post": { "summary": "Transfer between own accounts", "responses": { "201": { "description": "created" }, "400": { "description": "validation failed" } } }
    },
    "/api/transactions/payment": {
      "post": { "summary": "Pay a payee or biller", "responses": { "201": { "description": "created" }, "409": { "description": "session expired mid-payment; the payment may have completed" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
