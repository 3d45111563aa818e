// Package cache provides the memoization backends for the pruning engine:
// an in-memory store and a Redis store, both supporting tag-based
// invalidation so an update signal for one record can evict every cached
// projection that touched it.
package cache

import (
	"context"
	"errors"

	"pluck-backend/internal/prune"
)

var ErrMiss = errors.New("cache miss")

// Cache extends the engine's capability with tag invalidation, owned by the
// host rather than the pruner.
type Cache interface {
	prune.Cache
	InvalidateTag(ctx context.Context, tag string) error
}
