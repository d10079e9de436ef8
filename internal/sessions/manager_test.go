package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
)

type fixture struct {
	persistent *storage.MemoryStore
	page       *storage.MemoryStore
	tokens     *tokens.Store
	manager    *Manager
}

func newFixture(opts Options) *fixture {
	f := &fixture{persistent: storage.NewMemoryStore(), page: storage.NewMemoryStore()}
	f.tokens = tokens.NewStore(f.persistent, f.page)
	f.manager = NewManager(f.tokens, f.page, NewMemoryRevocations(), opts)
	return f
}

func TestStabilize_RestoresBothTokensFromBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.page.Set(ctx, storage.KeyAccessBackup, "T"))
	require.NoError(t, f.page.Set(ctx, storage.KeyRefreshBackup, "R"))

	require.True(t, f.manager.Stabilize(ctx))
	require.Equal(t, "T", f.tokens.Get(ctx, tokens.Access))
	require.Equal(t, "R", f.tokens.Get(ctx, tokens.Refresh))

	started, _ := f.page.Get(ctx, storage.KeySessionStart)
	require.NotEmpty(t, started)
}

func TestStabilize_LegacyFallbackSynthesizesRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{LegacyRefreshFallback: true})
	require.NoError(t, f.tokens.Set(ctx, tokens.Access, "T"))

	require.True(t, f.manager.Stabilize(ctx))
	require.Equal(t, "T", f.tokens.Get(ctx, tokens.Refresh))
	require.Equal(t, Active, f.manager.State(ctx))
}

func TestStabilize_LegacyFallbackAfterRestoreWithSingleBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{LegacyRefreshFallback: true})
	require.NoError(t, f.page.Set(ctx, storage.KeyAccessBackup, "T"))

	require.True(t, f.manager.Stabilize(ctx))
	require.Equal(t, "T", f.tokens.Get(ctx, tokens.Access))
	require.Equal(t, "T", f.tokens.Get(ctx, tokens.Refresh))
}

func TestStabilize_MissingRefreshTokenIsDegraded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.tokens.Set(ctx, tokens.Access, "T"))

	require.False(t, f.manager.Stabilize(ctx))
	require.Empty(t, f.tokens.Get(ctx, tokens.Refresh))
	require.Equal(t, Degraded, f.manager.State(ctx))
	// the access token is still backed up
	require.Equal(t, "T", f.tokens.BackupValue(ctx, tokens.Access))
}

func TestStabilize_NothingStored(t *testing.T) {
	f := newFixture(Options{})
	require.False(t, f.manager.Stabilize(context.Background()))
	require.Equal(t, Anonymous, f.manager.State(context.Background()))
}

func TestStabilize_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	for _, legacy := range []bool{false, true} {
		f := newFixture(Options{LegacyRefreshFallback: legacy})
		require.NoError(t, f.page.Set(ctx, storage.KeyAccessBackup, "T"))

		first := f.manager.Stabilize(ctx)
		snap := f.manager.Snapshot(ctx)
		second := f.manager.Stabilize(ctx)

		require.Equal(t, first, second)
		require.Equal(t, snap.AccessToken, f.manager.Snapshot(ctx).AccessToken)
		require.Equal(t, snap.RefreshToken, f.manager.Snapshot(ctx).RefreshToken)
		if first {
			require.NotEmpty(t, snap.AccessToken)
			require.NotEmpty(t, snap.RefreshToken)
		}
	}
}

func TestBegin_PersistsTokensAndBackups(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	f := newFixture(Options{Now: func() time.Time { return now }})

	var fired []uint64
	f.manager.OnChange(func(gen uint64) { fired = append(fired, gen) })

	require.NoError(t, f.manager.Begin(ctx, "a1", "r1"))
	require.Equal(t, uint64(1), f.manager.Generation())
	require.Equal(t, []uint64{1}, fired)

	snap := f.manager.Snapshot(ctx)
	require.Equal(t, Active, snap.State)
	require.Equal(t, "a1", snap.AccessToken)
	require.Equal(t, "r1", snap.RefreshToken)
	require.True(t, snap.StartedAt.Equal(now))
	require.Equal(t, "a1", f.tokens.BackupValue(ctx, tokens.Access))
	require.Equal(t, "r1", f.tokens.BackupValue(ctx, tokens.Refresh))

	require.ErrorIs(t, f.manager.Begin(ctx, "", "r"), ErrMissingAccessToken)
}

func TestEnd_ClearsEverythingAndPreventsRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.manager.Begin(ctx, "a1", "r1"))
	require.NoError(t, f.manager.SaveRoute(ctx, "/accounts"))

	require.NoError(t, f.manager.End(ctx))
	require.Empty(t, f.persistent.Keys())
	require.Empty(t, f.page.Keys())
	require.Equal(t, uint64(2), f.manager.Generation())

	// a stale backup written after logout (e.g. by a late snapshot) is not resurrected
	require.NoError(t, f.page.Set(ctx, storage.KeyAccessBackup, "a1"))
	require.False(t, f.manager.Stabilize(ctx))
	require.False(t, f.manager.Restore(ctx))
	require.Empty(t, f.tokens.Get(ctx, tokens.Access))
	require.Empty(t, f.tokens.BackupValue(ctx, tokens.Access))
}

func TestApplyRefresh_DiscardedAfterGenerationChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.manager.Begin(ctx, "a1", "r1"))
	gen := f.manager.Generation()

	require.NoError(t, f.manager.End(ctx))
	err := f.manager.ApplyRefresh(ctx, gen, "r1", "a2", "r2")
	require.True(t, errors.Is(err, ErrSessionChanged))
	require.Empty(t, f.tokens.Get(ctx, tokens.Access))
}

func TestApplyRefresh_KeepsRefreshTokenWhenNoneReturned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.manager.Begin(ctx, "a1", "r1"))

	require.NoError(t, f.manager.ApplyRefresh(ctx, f.manager.Generation(), "r1", "a2", ""))
	require.Equal(t, "a2", f.tokens.Get(ctx, tokens.Access))
	require.Equal(t, "r1", f.tokens.Get(ctx, tokens.Refresh))
	require.Equal(t, "a2", f.tokens.BackupValue(ctx, tokens.Access))
}

func TestApplyRefresh_RefusedWhenRefreshSlotMovedOn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.manager.Begin(ctx, "a1", "r1"))
	gen := f.manager.Generation()

	// another process logged in with a different pair
	require.NoError(t, f.persistent.Set(ctx, storage.KeyAccessToken, "b1"))
	require.NoError(t, f.persistent.Set(ctx, storage.KeyRefreshToken, "rb1"))

	err := f.manager.ApplyRefresh(ctx, gen, "r1", "a2", "r2")
	require.ErrorIs(t, err, ErrSessionChanged)
	require.Equal(t, "b1", f.tokens.Get(ctx, tokens.Access))
}

func TestApplyRefresh_RefusedWhenUsedTokenRevoked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.manager.Begin(ctx, "a1", "r1"))
	require.NoError(t, f.manager.revoked.Revoke(ctx, "r1", time.Minute))

	err := f.manager.ApplyRefresh(ctx, f.manager.Generation(), "r1", "a2", "r2")
	require.ErrorIs(t, err, ErrSessionChanged)
	require.Equal(t, "a1", f.tokens.Get(ctx, tokens.Access))
}

func sharedManagers(persistent storage.Store, revoked Revocations) (*Manager, *Manager) {
	pageA, pageB := storage.NewMemoryStore(), storage.NewMemoryStore()
	a := NewManager(tokens.NewStore(persistent, pageA), pageA, revoked, Options{})
	b := NewManager(tokens.NewStore(persistent, pageB), pageB, revoked, Options{})
	return a, b
}

func TestApplyRefresh_LogoutInOtherProcessDuringRefresh(t *testing.T) {
	ctx := context.Background()
	persistent := storage.NewMemoryStore()
	one, two := sharedManagers(persistent, NewMemoryRevocations())

	require.NoError(t, one.Begin(ctx, "a1", "r1"))
	gen := two.Generation()
	used := two.Tokens().Get(ctx, tokens.Refresh)

	// the backend call of process two is in flight while process one logs out
	require.NoError(t, one.End(ctx))

	err := two.ApplyRefresh(ctx, gen, used, "a2", "r2")
	require.ErrorIs(t, err, ErrSessionChanged)
	v, _ := persistent.Get(ctx, storage.KeyAccessToken)
	require.Empty(t, v)
	require.False(t, two.Stabilize(ctx))
}

// logoutOnWrite runs a logout right before the first access-token write lands.
type logoutOnWrite struct {
	*storage.MemoryStore
	logout func()
	done   bool
}

func (s *logoutOnWrite) Set(ctx context.Context, key, value string) error {
	if key == storage.KeyAccessToken && s.logout != nil && !s.done {
		s.done = true
		s.logout()
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestApplyRefresh_WriteRacingLogoutIsUndone(t *testing.T) {
	ctx := context.Background()
	persistent := &logoutOnWrite{MemoryStore: storage.NewMemoryStore()}
	revoked := NewMemoryRevocations()
	one, two := sharedManagers(persistent, revoked)

	require.NoError(t, one.Begin(ctx, "a1", "r1"))
	persistent.logout = func() { require.NoError(t, one.End(ctx)) }

	err := two.ApplyRefresh(ctx, two.Generation(), "r1", "a2", "r2")
	require.ErrorIs(t, err, ErrSessionChanged)

	v, _ := persistent.Get(ctx, storage.KeyAccessToken)
	require.Empty(t, v)
	ok, err := revoked.IsRevoked(ctx, "a2")
	require.NoError(t, err)
	require.True(t, ok, "a discarded refresh result must not be restorable from any backup")
}

func TestMirrorChange_SessionChangeElsewhereBumpsGeneration(t *testing.T) {
	ctx := context.Background()
	persistent := storage.NewMemoryStore()
	one, two := sharedManagers(persistent, NewMemoryRevocations())

	var fired []uint64
	two.OnChange(func(gen uint64) { fired = append(fired, gen) })

	require.NoError(t, two.Begin(ctx, "a1", "r1"))
	require.Len(t, fired, 1)

	// own write echoed back by the feed is not a change
	two.MirrorChange(ctx, storage.Change{Key: storage.KeyAccessToken, Value: "a1"})
	require.Len(t, fired, 1)

	require.NoError(t, one.Begin(ctx, "b1", "rb1"))
	before := two.Generation()
	two.MirrorChange(ctx, storage.Change{Key: storage.KeyAccessToken, Value: "b1"})
	two.MirrorChange(ctx, storage.Change{Key: storage.KeyRefreshToken, Value: "rb1"})
	require.Equal(t, before+1, two.Generation())
	require.Len(t, fired, 2)
	require.Equal(t, "b1", two.Tokens().BackupValue(ctx, tokens.Access))

	require.NoError(t, one.End(ctx))
	two.MirrorChange(ctx, storage.Change{Key: storage.KeyAccessToken})
	require.Equal(t, before+2, two.Generation())
	require.Len(t, fired, 3)
	require.Empty(t, two.Tokens().BackupValue(ctx, tokens.Access))
}

func TestBegin_FeedNeverShowsEmptyAccessBetweenSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(Options{})
	require.NoError(t, f.manager.Begin(ctx, "a1", "r1"))

	changes, err := f.persistent.Watch(ctx)
	require.NoError(t, err)
	require.NoError(t, f.manager.Begin(ctx, "a2", ""))

	var seen []storage.Change
	for len(seen) < 2 {
		select {
		case c := <-changes:
			seen = append(seen, c)
		case <-time.After(time.Second):
			t.Fatalf("expected two changes, got %v", seen)
		}
	}
	require.Equal(t, storage.Change{Key: storage.KeyAccessToken, Value: "a2"}, seen[0])
	require.Equal(t, storage.KeyRefreshToken, seen[1].Key)
	require.Empty(t, seen[1].Value)
}

func TestRestore_OnlyWhenAccessSlotEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.manager.Begin(ctx, "a1", "r1"))
	require.False(t, f.manager.Restore(ctx))

	require.NoError(t, f.persistent.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken))
	require.True(t, f.manager.Restore(ctx))
	require.Equal(t, "a1", f.tokens.Get(ctx, tokens.Access))
	require.Equal(t, "r1", f.tokens.Get(ctx, tokens.Refresh))
}

// Two processes share the persistent store and the revocation list, each with its own page store.
func TestLogoutInOneProcessIsNotUndoneByAnother(t *testing.T) {
	ctx := context.Background()
	persistent := storage.NewMemoryStore()
	revoked := NewMemoryRevocations()

	pageA, pageB := storage.NewMemoryStore(), storage.NewMemoryStore()
	a := NewManager(tokens.NewStore(persistent, pageA), pageA, revoked, Options{})
	b := NewManager(tokens.NewStore(persistent, pageB), pageB, revoked, Options{})

	require.NoError(t, a.Begin(ctx, "a1", "r1"))
	require.True(t, b.Stabilize(ctx)) // b now holds backups of a1/r1

	require.NoError(t, a.End(ctx))

	require.False(t, b.Restore(ctx))
	require.False(t, b.Stabilize(ctx))
	v, _ := persistent.Get(ctx, storage.KeyAccessToken)
	require.Empty(t, v)
}

func TestMirrorChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	f.manager.MirrorChange(ctx, storage.Change{Key: storage.KeyAccessToken, Value: "a9"})
	f.manager.MirrorChange(ctx, storage.Change{Key: storage.KeyRefreshToken, Value: "r9"})
	f.manager.MirrorChange(ctx, storage.Change{Key: "unrelated", Value: "x"})
	require.Equal(t, "a9", f.tokens.BackupValue(ctx, tokens.Access))
	require.Equal(t, "r9", f.tokens.BackupValue(ctx, tokens.Refresh))

	// removal of a live token elsewhere keeps the backup (accidental clear)
	f.manager.MirrorChange(ctx, storage.Change{Key: storage.KeyAccessToken})
	require.Equal(t, "a9", f.tokens.BackupValue(ctx, tokens.Access))

	// removal after revocation (logout elsewhere) drops it
	require.NoError(t, f.manager.revoked.Revoke(ctx, "a9", time.Minute))
	f.manager.MirrorChange(ctx, storage.Change{Key: storage.KeyAccessToken})
	require.Empty(t, f.tokens.BackupValue(ctx, tokens.Access))
	require.Empty(t, f.tokens.BackupValue(ctx, tokens.Refresh))
}

func TestRecordActivityAndSnapshotBackups(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_500_000)
	f := newFixture(Options{Now: func() time.Time { return now }})

	f.manager.RecordActivity(ctx)
	require.True(t, f.manager.Snapshot(ctx).LastActivityAt.Equal(now))

	require.NoError(t, f.tokens.Set(ctx, tokens.Access, "a1"))
	f.manager.SnapshotBackups(ctx)
	require.Equal(t, "a1", f.tokens.BackupValue(ctx, tokens.Access))
}
