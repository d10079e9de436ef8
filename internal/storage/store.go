// Package storage provides the key-value surfaces the session layer persists into.
//
// Two scopes exist. The persistent store outlives the process and may be shared
// with other gateway processes (Redis, MongoDB, MinIO). The page-scoped store is
// private to one process and is always a MemoryStore.
package storage

import (
	"context"
)

// Persistent keys.
const (
	KeyAccessToken  = "token"
	KeyRefreshToken = "refreshToken"
	KeyDeviceID     = "device_id"
)

// Page-scoped keys.
const (
	KeyAccessBackup  = "token_backup"
	KeyRefreshBackup = "refresh_token_backup"
	KeySessionStart  = "session_start"
	KeyLastActivity  = "last_activity"
	KeyLastRoute     = "last_route"
	KeyUser          = "user"
)

// Store is a string key-value store. Get returns "" and a nil error when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Change describes a write observed on a store. An empty Value means the key was removed.
type Change struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Origin string `json:"origin,omitempty"`
}

// Watcher is implemented by stores that can notify about writes made by other holders.
// The returned channel is closed once ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}
