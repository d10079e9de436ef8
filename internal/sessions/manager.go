// Package sessions owns every mutation of the stored session: login, logout,
// token refresh, backup restore and cross-process mirroring all go through Manager.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/metrics"
)

// ErrSessionChanged is returned by ApplyRefresh when a login or logout happened
// while the refresh was in flight, here or in another process sharing the
// persistent store. The refreshed tokens are not kept in that case.
var ErrSessionChanged = errors.New("session changed while refresh was in flight")

var ErrMissingAccessToken = errors.New("access token required")

// Options configures a Manager.
type Options struct {
	// LegacyRefreshFallback stores the access token as refresh token when the
	// latter is missing, instead of reporting a degraded session.
	LegacyRefreshFallback bool
	// RevocationTTL bounds how long ended-session tokens are remembered when
	// the token carries no exp claim.
	RevocationTTL time.Duration
	Now           func() time.Time
}

type Manager struct {
	mu      sync.Mutex
	tokens  *tokens.Store
	page    storage.Store
	revoked Revocations
	opts    Options
	gen     atomic.Uint64
	// known is the access token this process last wrote or read while holding mu.
	// A mirrored value that differs from it is a session change made elsewhere.
	known string

	hooksMu sync.RWMutex
	hooks   []func(generation uint64)
}

// NewManager wires a Manager. A nil revocation list falls back to an in-memory one.
func NewManager(ts *tokens.Store, page storage.Store, revoked Revocations, opts Options) *Manager {
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RevocationTTL <= 0 {
		opts.RevocationTTL = 24 * time.Hour
	}
	return &Manager{tokens: ts, page: page, revoked: revoked, opts: opts}
}

// Tokens exposes the underlying token store for read access.
func (m *Manager) Tokens() *tokens.Store { return m.tokens }

// Generation is bumped on every login and logout.
func (m *Manager) Generation() uint64 { return m.gen.Load() }

// OnChange registers fn to run after every login and logout.
func (m *Manager) OnChange(fn func(generation uint64)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

func (m *Manager) fire(gen uint64) {
	m.hooksMu.RLock()
	hooks := append([]func(uint64){}, m.hooks...)
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(gen)
	}
}

// Begin starts a new session from a successful login.
func (m *Manager) Begin(ctx context.Context, access, refresh string) error {
	if access == "" {
		return ErrMissingAccessToken
	}
	m.mu.Lock()
	gen := m.gen.Add(1)
	err := m.beginLocked(ctx, access, refresh)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	logger.Infof("session: started generation=%d access=%s refresh_present=%t", gen, tokens.Fingerprint(access), refresh != "")
	m.fire(gen)
	return nil
}

// beginLocked overwrites the slots in place so the change feed never shows an
// empty access token between two sessions.
func (m *Manager) beginLocked(ctx context.Context, access, refresh string) error {
	if err := m.tokens.ClearBackups(ctx); err != nil {
		return fmt.Errorf("clear previous backups: %w", err)
	}
	if err := m.tokens.Set(ctx, tokens.Access, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if refresh == "" {
		if err := m.tokens.Delete(ctx, tokens.Refresh); err != nil {
			return fmt.Errorf("clear previous refresh token: %w", err)
		}
	} else if err := m.tokens.Set(ctx, tokens.Refresh, refresh); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	m.known = access
	m.backupLocked(ctx)
	now := m.stamp()
	_ = m.page.Set(ctx, storage.KeySessionStart, now)
	_ = m.page.Set(ctx, storage.KeyLastActivity, now)
	return nil
}

// End terminates the session: tokens are revoked, then both stores are cleared.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	gen := m.gen.Add(1)
	err := m.endLocked(ctx)
	m.mu.Unlock()
	logger.Infof("session: ended generation=%d", gen)
	m.fire(gen)
	return err
}

func (m *Manager) endLocked(ctx context.Context) error {
	var errs []error
	seen := map[string]bool{}
	for _, tok := range []string{
		m.tokens.Get(ctx, tokens.Access),
		m.tokens.Get(ctx, tokens.Refresh),
		m.tokens.BackupValue(ctx, tokens.Access),
		m.tokens.BackupValue(ctx, tokens.Refresh),
	} {
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		ttl := tokens.TTL(tok, m.opts.Now(), m.opts.RevocationTTL)
		if err := m.revoked.Revoke(ctx, tok, ttl); err != nil {
			errs = append(errs, fmt.Errorf("revoke token: %w", err))
		}
	}
	if err := m.tokens.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear tokens: %w", err))
	}
	m.known = ""
	if err := m.page.Delete(ctx, storage.KeySessionStart, storage.KeyLastActivity, storage.KeyLastRoute, storage.KeyUser); err != nil {
		errs = append(errs, fmt.Errorf("clear page state: %w", err))
	}
	return errors.Join(errs...)
}

// ApplyRefresh persists tokens obtained by a refresh that started at generation gen
// by presenting used. An empty refresh keeps the current refresh token.
//
// The result is refused when the local generation moved, when used was revoked,
// or when the persistent refresh slot no longer holds used. The revocation check
// is repeated after writing: a logout elsewhere revokes before it clears, so a
// write that raced it is found and undone.
func (m *Manager) ApplyRefresh(ctx context.Context, gen uint64, used, access, refresh string) error {
	if access == "" {
		return ErrMissingAccessToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen.Load() != gen {
		return ErrSessionChanged
	}
	if used == "" || m.isRevoked(ctx, used) || m.tokens.Get(ctx, tokens.Refresh) != used {
		return ErrSessionChanged
	}
	if err := m.tokens.Set(ctx, tokens.Access, access); err != nil {
		return err
	}
	if err := m.tokens.Set(ctx, tokens.Refresh, refresh); err != nil {
		return err
	}
	if m.isRevoked(ctx, used) {
		m.undoRefreshLocked(ctx, access, refresh)
		return ErrSessionChanged
	}
	m.known = access
	m.backupLocked(ctx)
	return nil
}

// undoRefreshLocked revokes a refresh result that landed after a logout and
// removes it from the persistent slots it still occupies.
func (m *Manager) undoRefreshLocked(ctx context.Context, access, refresh string) {
	logger.Warnf("session: refresh landed after a logout elsewhere, discarding %s", tokens.Fingerprint(access))
	for _, tok := range []string{access, refresh} {
		if tok == "" {
			continue
		}
		if err := m.revoked.Revoke(ctx, tok, tokens.TTL(tok, m.opts.Now(), m.opts.RevocationTTL)); err != nil {
			logger.Warnf("session: revoke discarded refresh token failed: %v", err)
		}
	}
	if m.tokens.Get(ctx, tokens.Access) == access {
		if err := m.tokens.Clear(ctx); err != nil {
			logger.Errorf("session: clear discarded refresh failed: %v", err)
		}
	}
	m.known = ""
}

// Stabilize makes the stored session consistent and reports whether it is usable,
// meaning both tokens are present afterwards. It is idempotent and never fails;
// storage problems are logged and reported as an unusable session.
func (m *Manager) Stabilize(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	access := m.tokens.Get(ctx, tokens.Access)
	if access == "" {
		if !m.restoreLocked(ctx, "stabilizer") {
			return false
		}
		access = m.tokens.Get(ctx, tokens.Access)
		if access == "" {
			return false
		}
	}

	if m.tokens.Get(ctx, tokens.Refresh) == "" {
		if !m.opts.LegacyRefreshFallback {
			_ = m.tokens.Backup(ctx, tokens.Access)
			logger.Warnf("session: refresh token missing, session is degraded until next login")
			return false
		}
		if err := m.tokens.Set(ctx, tokens.Refresh, access); err != nil {
			logger.Errorf("session: legacy refresh fallback failed: %v", err)
			return false
		}
	}

	m.backupLocked(ctx)
	if v, _ := m.page.Get(ctx, storage.KeySessionStart); v == "" {
		_ = m.page.Set(ctx, storage.KeySessionStart, m.stamp())
	}
	return true
}

// Restore refills an empty access slot from the backup. Used by the watchdog.
func (m *Manager) Restore(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens.Get(ctx, tokens.Access) != "" {
		return false
	}
	return m.restoreLocked(ctx, "watchdog")
}

func (m *Manager) restoreLocked(ctx context.Context, source string) bool {
	backup := m.tokens.BackupValue(ctx, tokens.Access)
	if backup == "" {
		return false
	}
	if m.isRevoked(ctx, backup) {
		logger.Infof("session: dropping backup of an ended session (%s)", source)
		_ = m.tokens.ClearBackups(ctx)
		return false
	}
	restored, err := m.tokens.RestoreFromBackup(ctx, tokens.Access)
	if err != nil {
		logger.Errorf("session: restore access token failed: %v", err)
		return false
	}
	if rb := m.tokens.BackupValue(ctx, tokens.Refresh); rb != "" && !m.isRevoked(ctx, rb) {
		if _, err := m.tokens.RestoreFromBackup(ctx, tokens.Refresh); err != nil {
			logger.Warnf("session: restore refresh token failed: %v", err)
		}
	}
	m.known = m.tokens.Get(ctx, tokens.Access)
	if restored {
		metrics.SessionRestores.WithLabelValues(source).Inc()
		logger.Infof("session: access token restored from backup (%s)", source)
	}
	return true
}

// MirrorChange applies a persistent-store change made elsewhere to the backups.
// A written token replaces its backup. A removed token drops the backups when
// they belong to an ended session. An access token that differs from the one
// this process knows means another process logged in, logged out or refreshed:
// the generation is bumped and the OnChange hooks run, so cached data of the
// previous session is dropped and in-flight refreshes here are discarded.
func (m *Manager) MirrorChange(ctx context.Context, c storage.Change) {
	var kind tokens.Kind
	switch c.Key {
	case storage.KeyAccessToken:
		kind = tokens.Access
	case storage.KeyRefreshToken:
		kind = tokens.Refresh
	default:
		return
	}
	m.mu.Lock()
	var gen uint64
	if kind == tokens.Access && c.Value != m.known {
		m.known = c.Value
		gen = m.gen.Add(1)
	}
	m.mirrorLocked(ctx, kind, c.Value)
	m.mu.Unlock()

	if gen != 0 {
		logger.Infof("session: changed in another process, generation=%d", gen)
		m.fire(gen)
	}
}

func (m *Manager) mirrorLocked(ctx context.Context, kind tokens.Kind, value string) {
	if value != "" {
		if m.isRevoked(ctx, value) {
			return
		}
		if err := m.tokens.SetBackup(ctx, kind, value); err != nil {
			logger.Warnf("session: mirror %s token failed: %v", kind, err)
		}
		return
	}
	if b := m.tokens.BackupValue(ctx, kind); b != "" && m.isRevoked(ctx, b) {
		_ = m.tokens.ClearBackups(ctx)
	}
}

// Backup copies the current tokens into the page-scoped backups.
func (m *Manager) Backup(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backupLocked(ctx)
}

// SnapshotBackups copies the current tokens into the backups and stamps activity.
func (m *Manager) SnapshotBackups(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backupLocked(ctx)
	if m.tokens.Get(ctx, tokens.Access) != "" {
		_ = m.page.Set(ctx, storage.KeyLastActivity, m.stamp())
	}
}

func (m *Manager) backupLocked(ctx context.Context) {
	for _, k := range []tokens.Kind{tokens.Access, tokens.Refresh} {
		if err := m.tokens.Backup(ctx, k); err != nil {
			logger.Warnf("session: backup %s token failed: %v", k, err)
		}
	}
}

func (m *Manager) isRevoked(ctx context.Context, tok string) bool {
	ok, err := m.revoked.IsRevoked(ctx, tok)
	if err != nil {
		// unknown revocation state: do not resurrect
		logger.Warnf("session: revocation lookup failed: %v", err)
		return true
	}
	return ok
}

// RecordActivity stamps the last-activity time. Advisory only.
func (m *Manager) RecordActivity(ctx context.Context) {
	if err := m.page.Set(ctx, storage.KeyLastActivity, m.stamp()); err != nil {
		logger.Debugf("session: record activity failed: %v", err)
	}
}

func (m *Manager) SaveRoute(ctx context.Context, route string) error {
	if route == "" {
		return m.page.Delete(ctx, storage.KeyLastRoute)
	}
	return m.page.Set(ctx, storage.KeyLastRoute, route)
}

// State classifies the stored credentials without modifying them.
func (m *Manager) State(ctx context.Context) State {
	if m.tokens.Get(ctx, tokens.Access) == "" {
		return Anonymous
	}
	if m.tokens.Get(ctx, tokens.Refresh) == "" {
		return Degraded
	}
	return Active
}

func (m *Manager) Snapshot(ctx context.Context) Session {
	s := Session{
		AccessToken:  m.tokens.Get(ctx, tokens.Access),
		RefreshToken: m.tokens.Get(ctx, tokens.Refresh),
		Generation:   m.Generation(),
	}
	switch {
	case s.AccessToken == "":
		s.State = Anonymous
	case s.RefreshToken == "":
		s.State = Degraded
	default:
		s.State = Active
	}
	s.StartedAt = m.readStamp(ctx, storage.KeySessionStart)
	s.LastActivityAt = m.readStamp(ctx, storage.KeyLastActivity)
	s.LastRoute, _ = m.page.Get(ctx, storage.KeyLastRoute)
	return s
}

// timestamps are stored as unix milliseconds
func (m *Manager) stamp() string {
	return strconv.FormatInt(m.opts.Now().UnixMilli(), 10)
}

func (m *Manager) readStamp(ctx context.Context, key string) time.Time {
	v, err := m.page.Get(ctx, key)
	if err != nil || v == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
