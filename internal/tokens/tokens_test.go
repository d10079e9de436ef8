package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
)

func newTestStore() (*Store, *storage.MemoryStore, *storage.MemoryStore) {
	persistent := storage.NewMemoryStore()
	page := storage.NewMemoryStore()
	return NewStore(persistent, page), persistent, page
}

func TestStore_SetGetIgnoresEmpty(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore()

	require.Empty(t, s.Get(ctx, Access))
	require.NoError(t, s.Set(ctx, Access, "a1"))
	require.NoError(t, s.Set(ctx, Access, ""))
	require.Equal(t, "a1", s.Get(ctx, Access))
	require.Empty(t, s.Get(ctx, Refresh))
}

func TestStore_BackupAndRestore(t *testing.T) {
	ctx := context.Background()
	s, persistent, _ := newTestStore()

	require.NoError(t, s.Set(ctx, Access, "a1"))
	require.NoError(t, s.Backup(ctx, Access))
	require.Equal(t, "a1", s.BackupValue(ctx, Access))

	require.NoError(t, persistent.Delete(ctx, storage.KeyAccessToken))
	ok, err := s.RestoreFromBackup(ctx, Access)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a1", s.Get(ctx, Access))
}

func TestStore_RestoreNeverOverwritesPersistentValue(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore()

	require.NoError(t, s.SetBackup(ctx, Access, "old"))
	require.NoError(t, s.Set(ctx, Access, "new"))

	ok, err := s.RestoreFromBackup(ctx, Access)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "new", s.Get(ctx, Access))
}

func TestStore_RestoreWithoutBackupIsNoop(t *testing.T) {
	s, _, _ := newTestStore()
	ok, err := s.RestoreFromBackup(context.Background(), Refresh)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_ClearRemovesSlotsAndBackups(t *testing.T) {
	ctx := context.Background()
	s, persistent, page := newTestStore()

	require.NoError(t, s.Set(ctx, Access, "a1"))
	require.NoError(t, s.Set(ctx, Refresh, "r1"))
	require.NoError(t, s.Backup(ctx, Access))
	require.NoError(t, s.Backup(ctx, Refresh))

	require.NoError(t, s.Clear(ctx))
	require.Empty(t, persistent.Keys())
	require.Empty(t, page.Keys())
}

func TestParseClaims_ReadsSubjectAndExpiry(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-123",
		"email": "test@example.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("not-known-to-the-gateway"))
	require.NoError(t, err)

	c, err := ParseClaims(raw)
	require.NoError(t, err)
	require.Equal(t, "user-123", c.Subject)
	require.Equal(t, "test@example.com", c.Email)
	require.True(t, c.ExpiresAt.Equal(exp))
	require.False(t, c.Expired(time.Now()))
	require.True(t, c.Expired(exp.Add(time.Second)))

	ttl := TTL(raw, exp.Add(-time.Minute), time.Hour)
	require.Equal(t, time.Minute, ttl)
}

func TestParseClaims_Malformed(t *testing.T) {
	_, err := ParseClaims("not.a.jwt")
	require.Error(t, err)
	require.Equal(t, time.Hour, TTL("opaque-token", time.Now(), time.Hour))
}

func TestFingerprint(t *testing.T) {
	require.Equal(t, "***", Fingerprint("short"))
	require.Equal(t, "...456789", Fingerprint("abcdef0123456789"))
}
