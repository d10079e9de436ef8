// Package tokens persists the access/refresh token pair and its page-scoped backups.
package tokens

import (
	"context"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

// Kind selects one of the two credentials of a session.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}
	return "access"
}

func (k Kind) persistentKey() string {
	if k == Refresh {
		return storage.KeyRefreshToken
	}
	return storage.KeyAccessToken
}

func (k Kind) backupKey() string {
	if k == Refresh {
		return storage.KeyRefreshBackup
	}
	return storage.KeyAccessBackup
}

// Store reads and writes tokens. Persistent slots live in the shared store,
// backups in the page-scoped store.
type Store struct {
	persistent storage.Store
	page       storage.Store
}

func NewStore(persistent, page storage.Store) *Store {
	return &Store{persistent: persistent, page: page}
}

// Get returns the persisted token or "" when absent. Storage failures read as absent.
func (s *Store) Get(ctx context.Context, kind Kind) string {
	v, err := s.persistent.Get(ctx, kind.persistentKey())
	if err != nil {
		logger.Warnf("tokens: read %s token failed: %v", kind, err)
		return ""
	}
	return v
}

// Set persists value. Empty values are ignored.
func (s *Store) Set(ctx context.Context, kind Kind, value string) error {
	if value == "" {
		return nil
	}
	return s.persistent.Set(ctx, kind.persistentKey(), value)
}

// Delete removes one persistent slot.
func (s *Store) Delete(ctx context.Context, kind Kind) error {
	return s.persistent.Delete(ctx, kind.persistentKey())
}

// Clear removes both persistent slots and both backups.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.persistent.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken); err != nil {
		return err
	}
	return s.ClearBackups(ctx)
}

func (s *Store) ClearBackups(ctx context.Context) error {
	return s.page.Delete(ctx, storage.KeyAccessBackup, storage.KeyRefreshBackup)
}

// Backup copies the persisted token into its backup slot when present.
func (s *Store) Backup(ctx context.Context, kind Kind) error {
	v := s.Get(ctx, kind)
	if v == "" {
		return nil
	}
	return s.page.Set(ctx, kind.backupKey(), v)
}

// SetBackup writes value into the backup slot directly. Empty values are ignored.
func (s *Store) SetBackup(ctx context.Context, kind Kind, value string) error {
	if value == "" {
		return nil
	}
	return s.page.Set(ctx, kind.backupKey(), value)
}

func (s *Store) BackupValue(ctx context.Context, kind Kind) string {
	v, err := s.page.Get(ctx, kind.backupKey())
	if err != nil {
		logger.Warnf("tokens: read %s backup failed: %v", kind, err)
		return ""
	}
	return v
}

// RestoreFromBackup fills an empty persistent slot from its backup.
// A non-empty persistent slot is never overwritten.
func (s *Store) RestoreFromBackup(ctx context.Context, kind Kind) (bool, error) {
	if s.Get(ctx, kind) != "" {
		return false, nil
	}
	b := s.BackupValue(ctx, kind)
	if b == "" {
		return false, nil
	}
	if err := s.persistent.Set(ctx, kind.persistentKey(), b); err != nil {
		return false, err
	}
	return true, nil
}
