package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
)

func newManager() (*sessions.Manager, *storage.MemoryStore) {
	persistent, page := storage.NewMemoryStore(), storage.NewMemoryStore()
	return sessions.NewManager(tokens.NewStore(persistent, page), page, nil, sessions.Options{}), page
}

func mint(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func serve(mgr *sessions.Manager) (*httptest.ResponseRecorder, map[string]any) {
	g := gin.New()
	var seen map[string]any
	g.GET("/", RequireSession(mgr), func(c *gin.Context) {
		if v, ok := c.Get(ClaimsKey); ok {
			seen = v.(map[string]interface{})
		}
		c.Status(http.StatusOK)
	})
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	return rw, seen
}

func TestRequireSession_NoSession(t *testing.T) {
	mgr, _ := newManager()
	rw, _ := serve(mgr)

	require.Equal(t, http.StatusUnauthorized, rw.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Equal(t, "/login", body["redirect"])
}

func TestRequireSession_ActiveSessionSetsClaims(t *testing.T) {
	mgr, page := newManager()
	require.NoError(t, mgr.Begin(context.Background(), mint(t, "user-1"), "R1"))
	require.NoError(t, page.Delete(context.Background(), storage.KeyLastActivity))

	rw, claims := serve(mgr)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Empty(t, rw.Header().Get("X-Session-State"))
	require.Equal(t, "user-1", claims["sub"])

	last, _ := page.Get(context.Background(), storage.KeyLastActivity)
	require.NotEmpty(t, last)
}

func TestRequireSession_RestoresFromBackup(t *testing.T) {
	mgr, page := newManager()
	ctx := context.Background()
	require.NoError(t, page.Set(ctx, storage.KeyAccessBackup, "A1"))
	require.NoError(t, page.Set(ctx, storage.KeyRefreshBackup, "R1"))

	rw, _ := serve(mgr)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "A1", mgr.Tokens().Get(ctx, tokens.Access))
}

func TestRequireSession_DegradedIsFlagged(t *testing.T) {
	mgr, _ := newManager()
	require.NoError(t, mgr.Begin(context.Background(), "A1", ""))

	rw, claims := serve(mgr)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "degraded", rw.Header().Get("X-Session-State"))
	require.Nil(t, claims)
}

func TestRequireSession_AfterLogout(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()
	require.NoError(t, mgr.Begin(ctx, "A1", "R1"))
	require.NoError(t, mgr.End(ctx))

	rw, _ := serve(mgr)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}
