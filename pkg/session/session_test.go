package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkrishn/notex/pkg/models"
)

func TestNewTokenIsUniqueAndHex(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	sess := models.Session{UserID: models.NewUserID(), Email: "user@example.com"}

	require.NoError(t, st.Save(ctx, "tok", sess, time.Minute))

	got, err := st.Get(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess, *got)

	// Unknown tokens are (nil, nil), not an error.
	got, err = st.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreExpiry(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	sess := models.Session{UserID: models.NewUserID(), Email: "user@example.com"}

	require.NoError(t, st.Save(ctx, "tok", sess, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	got, err := st.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreDelete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	sess := models.Session{UserID: models.NewUserID(), Email: "user@example.com"}

	require.NoError(t, st.Save(ctx, "tok", sess, time.Minute))
	require.NoError(t, st.Delete(ctx, "tok"))

	got, err := st.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent token is a no-op.
	assert.NoError(t, st.Delete(ctx, "tok"))
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStoreFromClient(client)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	st, _ := newRedisStore(t)
	ctx := context.Background()
	sess := models.Session{UserID: models.NewUserID(), Email: "user@example.com"}

	require.NoError(t, st.Save(ctx, "tok", sess, time.Minute))

	got, err := st.Get(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess, *got)

	got, err = st.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreTTL(t *testing.T) {
	st, mr := newRedisStore(t)
	ctx := context.Background()
	sess := models.Session{UserID: models.NewUserID(), Email: "user@example.com"}

	require.NoError(t, st.Save(ctx, "tok", sess, time.Minute))

	// Advance the fake clock past the TTL; redis expires the key.
	mr.FastForward(2 * time.Minute)

	got, err := st.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreDelete(t *testing.T) {
	st, _ := newRedisStore(t)
	ctx := context.Background()
	sess := models.Session{UserID: models.NewUserID(), Email: "user@example.com"}

	require.NoError(t, st.Save(ctx, "tok", sess, time.Minute))
	require.NoError(t, st.Delete(ctx, "tok"))

	got, err := st.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreZeroTTLUsesDefault(t *testing.T) {
	st, mr := newRedisStore(t)
	ctx := context.Background()
	sess := models.Session{UserID: models.NewUserID(), Email: "user@example.com"}

	require.NoError(t, st.Save(ctx, "tok", sess, 0))

	ttl := mr.TTL(redisKeyPrefix + "tok")
	assert.Equal(t, DefaultTTL, ttl)
}

func TestNewRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-url")
	assert.Error(t, err)
}
