package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/store"
	"github.com/redis/go-redis/v9"
)

// Key layout for cached bundles. The primary key carries the requesting
// user; the alias tracks the latest bundle for the content regardless of
// who generated it.
const (
	primaryKeyFormat = "result:%s:%s"     // result:<content_key>:<user_id>
	aliasKeyFormat   = "result:latest:%s" // result:latest:<content_key>
)

// ResultCache implements store.ResultCache on redis. The primary and
// alias keys are written in one MULTI/EXEC transaction, so readers never
// observe one updated and the other stale.
type ResultCache struct {
	rdb *redis.Client
}

// NewResultCache creates a ResultCache on the given client.
func NewResultCache(rdb *redis.Client) *ResultCache {
	return &ResultCache{rdb: rdb}
}

// Put writes the bundle under the primary key and atomically repoints
// the content alias at it. A newer completion for the same key
// supersedes the previous value.
func (c *ResultCache) Put(ctx context.Context, key store.ResultKey, bundle *domain.ArtifactBundle, ttl time.Duration) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	primary := PrimaryKey(key)
	alias := AliasKey(key.ContentKey)

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, primary, payload, ttl)
		pipe.Set(ctx, alias, payload, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write result %s: %w", primary, err)
	}

	return nil
}

// Get returns the bundle for the exact primary key.
func (c *ResultCache) Get(ctx context.Context, key store.ResultKey) (*domain.ArtifactBundle, error) {
	return c.fetch(ctx, PrimaryKey(key))
}

// GetLatest returns the alias-pointed bundle for the content key. The
// caller opts into this cross-user fallback explicitly; it is never the
// default lookup.
func (c *ResultCache) GetLatest(ctx context.Context, contentKey string) (*domain.ArtifactBundle, error) {
	return c.fetch(ctx, AliasKey(contentKey))
}

func (c *ResultCache) fetch(ctx context.Context, key string) (*domain.ArtifactBundle, error) {
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read result %s: %w", key, err)
	}

	var bundle domain.ArtifactBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result %s: %w", key, err)
	}

	return &bundle, nil
}

// PrimaryKey renders the exact-match cache key for a result.
func PrimaryKey(key store.ResultKey) string {
	return fmt.Sprintf(primaryKeyFormat, key.ContentKey, key.UserID)
}

// AliasKey renders the latest-for-content alias key.
func AliasKey(contentKey string) string {
	return fmt.Sprintf(aliasKeyFormat, contentKey)
}
