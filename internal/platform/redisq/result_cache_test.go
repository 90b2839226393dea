package redisq

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ResultCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewResultCache(rdb), mr
}

func testBundle(contentKey string) *domain.ArtifactBundle {
	return &domain.ArtifactBundle{
		JobID:      uuid.New(),
		LessonID:   uuid.New(),
		ContentKey: contentKey,
		Script: domain.LessonScript{
			Slides: []domain.SlideScript{{Index: 0, Body: "intro"}},
		},
		GeneratedAt: time.Now().UTC(),
	}
}

func TestKeyLayout(t *testing.T) {
	userID := uuid.MustParse("0f8a2f4e-1d7b-4c3a-9e6f-2b1a0c9d8e7f")
	key := store.ResultKey{ContentKey: "a1b2c3d4e5f60718", UserID: userID}

	assert.Equal(t,
		"result:a1b2c3d4e5f60718:0f8a2f4e-1d7b-4c3a-9e6f-2b1a0c9d8e7f",
		PrimaryKey(key))
	assert.Equal(t,
		"result:latest:a1b2c3d4e5f60718",
		AliasKey(key.ContentKey))
}

func TestPrimaryKeysDifferPerUser(t *testing.T) {
	a := store.ResultKey{ContentKey: "deadbeef", UserID: uuid.New()}
	b := store.ResultKey{ContentKey: "deadbeef", UserID: uuid.New()}

	assert.NotEqual(t, PrimaryKey(a), PrimaryKey(b))
	assert.Equal(t, AliasKey(a.ContentKey), AliasKey(b.ContentKey))
}

func TestPutGetRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key := store.ResultKey{ContentKey: "deadbeef", UserID: uuid.New()}
	bundle := testBundle(key.ContentKey)
	require.NoError(t, cache.Put(ctx, key, bundle, time.Hour))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, bundle.JobID, got.JobID)
	assert.Equal(t, bundle.ContentKey, got.ContentKey)
	require.Len(t, got.Script.Slides, 1)
	assert.Equal(t, "intro", got.Script.Slides[0].Body)

	// Another user's primary key is a miss, not a fallback.
	_, err = cache.Get(ctx, store.ResultKey{ContentKey: key.ContentKey, UserID: uuid.New()})
	assert.ErrorIs(t, err, store.ErrCacheMiss)
}

func TestPutWritesPrimaryAndAliasTogether(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := store.ResultKey{ContentKey: "deadbeef", UserID: uuid.New()}
	bundle := testBundle(key.ContentKey)
	require.NoError(t, cache.Put(ctx, key, bundle, time.Hour))

	// One write produced both keys with the same payload.
	require.True(t, mr.Exists(PrimaryKey(key)))
	require.True(t, mr.Exists(AliasKey(key.ContentKey)))

	latest, err := cache.GetLatest(ctx, key.ContentKey)
	require.NoError(t, err)
	assert.Equal(t, bundle.JobID, latest.JobID)
}

func TestNewerCompletionRepointsAlias(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	contentKey := "deadbeef"
	first := store.ResultKey{ContentKey: contentKey, UserID: uuid.New()}
	second := store.ResultKey{ContentKey: contentKey, UserID: uuid.New()}

	firstBundle := testBundle(contentKey)
	secondBundle := testBundle(contentKey)
	require.NoError(t, cache.Put(ctx, first, firstBundle, time.Hour))
	require.NoError(t, cache.Put(ctx, second, secondBundle, time.Hour))

	// Last writer wins on the alias; the earlier primary key keeps its
	// own bundle.
	latest, err := cache.GetLatest(ctx, contentKey)
	require.NoError(t, err)
	assert.Equal(t, secondBundle.JobID, latest.JobID)

	got, err := cache.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, firstBundle.JobID, got.JobID)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := store.ResultKey{ContentKey: "deadbeef", UserID: uuid.New()}
	require.NoError(t, cache.Put(ctx, key, testBundle(key.ContentKey), time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, key)
	assert.ErrorIs(t, err, store.ErrCacheMiss)

	// The alias carried the same TTL and expires with the primary.
	_, err = cache.GetLatest(ctx, key.ContentKey)
	assert.ErrorIs(t, err, store.ErrCacheMiss)
}
