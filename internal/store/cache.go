package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
)

// ResultKey identifies a cached bundle: the content identity plus the
// user who requested the generation. The alias entry ("latest for this
// content by anyone") is keyed by the content key alone.
type ResultKey struct {
	ContentKey string
	UserID     uuid.UUID
}

// String renders the primary cache key.
func (k ResultKey) String() string {
	return fmt.Sprintf("%s:%s", k.ContentKey, k.UserID)
}

// ResultCache stores finished artifact bundles with a TTL.
type ResultCache interface {
	// Put writes the bundle under the primary key and atomically updates
	// the content alias to point at this bundle. Readers never observe
	// one key updated and the other stale; a newer completion for the
	// same key supersedes the old value.
	Put(ctx context.Context, key ResultKey, bundle *domain.ArtifactBundle, ttl time.Duration) error

	// Get returns the bundle for the exact primary key, or ErrCacheMiss.
	// A miss after TTL expiry is not an error.
	Get(ctx context.Context, key ResultKey) (*domain.ArtifactBundle, error)

	// GetLatest returns the alias-pointed bundle for the content key
	// regardless of which user generated it, or ErrCacheMiss. Cross-user
	// fallback is opt-in at the call site, never the silent default.
	GetLatest(ctx context.Context, contentKey string) (*domain.ArtifactBundle, error)
}
