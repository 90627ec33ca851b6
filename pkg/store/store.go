package store

import (
	"context"
	"time"

	"node-pulse/pkg/model"
)

// SnapshotStore caches recent node snapshots keyed by node. Entries expire
// after the ttl given to Put; a cached snapshot keeps its original checked_at.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (model.NodeSnapshot, bool, error)
	Put(ctx context.Context, key string, snap model.NodeSnapshot, ttl time.Duration) error
}

// Nop never caches.
type Nop struct{}

func (Nop) Get(context.Context, string) (model.NodeSnapshot, bool, error) {
	return model.NodeSnapshot{}, false, nil
}

func (Nop) Put(context.Context, string, model.NodeSnapshot, time.Duration) error { return nil }
