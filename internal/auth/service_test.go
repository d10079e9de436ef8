package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
)

type env struct {
	svc        *Service
	mgr        *sessions.Manager
	persistent *storage.MemoryStore
	page       *storage.MemoryStore
}

func newEnv(t *testing.T, h http.HandlerFunc) *env {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e := &env{persistent: storage.NewMemoryStore(), page: storage.NewMemoryStore()}
	e.mgr = sessions.NewManager(tokens.NewStore(e.persistent, e.page), e.page, nil, sessions.Options{})
	client := apiclient.New(e.mgr, apiclient.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	e.svc = NewService(client, e.mgr, e.persistent, e.page)
	return e
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_StartsSessionAndStoresDisplayUser(t *testing.T) {
	var sent models.LoginRequest
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&sent)
		writeJSON(w, 200, map[string]any{
			"token":        "A1",
			"refreshToken": "R1",
			"user":         map[string]any{"id": "u1", "email": "ada@example.com", "first_name": "Ada"},
		})
	})
	ctx := context.Background()

	u, err := e.svc.Login(ctx, " ada@example.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "ada@example.com", sent.Email)
	assert.NotEmpty(t, sent.DeviceID)

	assert.Equal(t, sessions.Active, e.mgr.State(ctx))
	assert.Equal(t, "A1", e.mgr.Tokens().Get(ctx, tokens.Access))
	assert.Equal(t, "R1", e.mgr.Tokens().Get(ctx, tokens.Refresh))

	cu := e.svc.CurrentUser(ctx)
	require.NotNil(t, cu)
	assert.Equal(t, "Ada", cu.FirstName)
	assert.False(t, cu.IsAdmin)
}

func TestLogin_SnakeCaseTokensWithoutRefreshDegrades(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"access_token": "A1"})
	})
	ctx := context.Background()

	_, err := e.svc.Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, sessions.Degraded, e.mgr.State(ctx))
}

func TestLogin_NoTokenIsMalformed(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"user": map[string]any{"id": "u1"}})
	})
	_, err := e.svc.Login(context.Background(), "ada@example.com", "secret")
	var mal *apiclient.MalformedResponseError
	require.ErrorAs(t, err, &mal)
	assert.Equal(t, sessions.Anonymous, e.mgr.State(context.Background()))
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"message": "nope"})
	})
	_, err := e.svc.Login(context.Background(), "ada@example.com", "wrong")
	var ve *apiclient.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Invalid email or password", ve.Message)
}

func TestLogin_ValidatesInput(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected backend call %s", r.URL.Path)
	})
	_, err := e.svc.Login(context.Background(), "", "x")
	var ve *apiclient.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
}

func TestDeviceID_IsStable(t *testing.T) {
	e := newEnv(t, func(http.ResponseWriter, *http.Request) {})
	ctx := context.Background()
	first, err := e.svc.DeviceID(ctx)
	require.NoError(t, err)
	second, err := e.svc.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, _ := e.persistent.Get(ctx, storage.KeyDeviceID)
	assert.Equal(t, first, stored)
}

func TestLogout_ClearsSessionAndUser(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"token": "A1", "refreshToken": "R1", "user": map[string]any{"id": "u1"}})
	})
	ctx := context.Background()
	_, err := e.svc.Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(ctx))
	assert.Equal(t, sessions.Anonymous, e.mgr.State(ctx))
	assert.Nil(t, e.svc.CurrentUser(ctx))
	assert.False(t, e.mgr.Stabilize(ctx))
}

func TestVerifyAdmin_AsksBackendEveryTime(t *testing.T) {
	admin := true
	calls := 0
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, 200, map[string]any{"id": "u1", "is_admin": admin})
	})
	ctx := context.Background()
	require.NoError(t, e.mgr.Begin(ctx, "A1", "R1"))

	require.NoError(t, e.svc.VerifyAdmin(ctx))
	admin = false
	err := e.svc.VerifyAdmin(ctx)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, 2, calls)
}

func TestCurrentUser_IgnoresTamperedRecord(t *testing.T) {
	e := newEnv(t, func(http.ResponseWriter, *http.Request) {})
	ctx := context.Background()
	require.NoError(t, e.page.Set(ctx, storage.KeyUser, "{not json"))
	assert.Nil(t, e.svc.CurrentUser(ctx))
}

func TestResetPassword_Validates(t *testing.T) {
	e := newEnv(t, func(http.ResponseWriter, *http.Request) {})
	err := e.svc.ResetPassword(context.Background(), "tok", "short")
	var ve *apiclient.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "password", ve.Field)
}
