// Package storage defines the durable key/value snapshot the client mirrors
// session state into, plus typed helpers over JSON-encoded values.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Snapshot keys. Values are JSON-encoded except Token, which is the raw string.
const (
	KeyUser          = "user"
	KeyToken         = "token"
	KeyWorkspace     = "workspace"
	KeyChannels      = "channels"
	KeyMessages      = "messages"
	KeyUsers         = "users"
	KeyActiveChannel = "activeChannelId"
)

// SnapshotKeys lists every key the store may write, in clearing order.
var SnapshotKeys = []string{
	KeyUser, KeyToken, KeyWorkspace, KeyChannels, KeyMessages, KeyUsers, KeyActiveChannel,
}

// Store is plain byte-level access to the durable snapshot. Get returns
// errs.ErrNotFound for absent keys; Delete of an absent key is a no-op.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// PutJSON marshals v and stores it under key.
func PutJSON[T any](ctx context.Context, s Store, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, b)
}

// GetJSON loads and unmarshals the value under key. Absent keys surface as
// errs.ErrNotFound, untouched.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	b, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// Clear removes every snapshot key. Used by logout; idempotent.
func Clear(ctx context.Context, s Store) error {
	for _, k := range SnapshotKeys {
		if err := s.Delete(ctx, k); err != nil {
			return fmt.Errorf("clear %s: %w", k, err)
		}
	}
	return nil
}
