package uploads

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethanbaker/storyvideo/pkg/content"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func testSession() *content.UploadSession {
	return &content.UploadSession{
		UploadID:  "upload-1",
		ContentID: "rv-1",
		Kind:      content.KindResponseVideo,
		SharerID:  "sharer-1",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRedisStore_SaveLookupConsume(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession(), time.Hour))

	session, err := store.Lookup(ctx, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, testSession(), session)
	assert.Equal(t, content.Ref{Kind: content.KindResponseVideo, ID: "rv-1"}, session.Ref())

	require.NoError(t, store.Consume(ctx, "upload-1"))
	_, err = store.Lookup(ctx, "upload-1")
	assert.ErrorIs(t, err, content.ErrNotFound)

	// Consuming twice is harmless
	assert.NoError(t, store.Consume(ctx, "upload-1"))
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession(), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Lookup(ctx, "upload-1")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestRedisStore_Errors(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, &content.UploadSession{}, time.Minute))

	_, err := store.Lookup(ctx, "")
	assert.ErrorIs(t, err, content.ErrNotFound)

	require.NoError(t, mr.Set(sessionKey("bad"), "not json"))
	_, err = store.Lookup(ctx, "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, content.ErrNotFound)
}

func TestInMemoryStore_Expiry(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, testSession(), time.Minute))

	session, err := store.Lookup(ctx, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, "rv-1", session.ContentID)

	now = now.Add(time.Minute)
	_, err = store.Lookup(ctx, "upload-1")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestInMemoryStore_Consume(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession(), 0))
	require.NoError(t, store.Consume(ctx, "upload-1"))

	_, err := store.Lookup(ctx, "upload-1")
	assert.ErrorIs(t, err, content.ErrNotFound)
}
