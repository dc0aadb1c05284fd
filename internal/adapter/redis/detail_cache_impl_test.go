package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/boxd-office/internal/domain"
)

func newTestCache(t *testing.T) *DetailCacheImpl {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := Connect(context.Background(), addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewDetailCache(client, "http://cache-test.invalid/"+t.Name())
}

func TestDetailCache_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	_, ok, err := cache.Get(ctx, "heat-1995")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := domain.DetailRecord{
		Slug:      "heat-1995",
		Year:      domain.Ptr(1995),
		Genres:    []string{"Crime", "Drama"},
		AvgRating: domain.Ptr(4.21),
	}
	require.NoError(t, cache.Put(ctx, rec, time.Minute))

	got, ok, err := cache.Get(ctx, "heat-1995")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	require.NoError(t, cache.Delete(ctx, "heat-1995"))
	_, ok, err = cache.Get(ctx, "heat-1995")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetailCache_Expires(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	require.NoError(t, cache.Put(ctx, domain.EmptyDetail("alien"), time.Second))
	time.Sleep(1500 * time.Millisecond)

	_, ok, err := cache.Get(ctx, "alien")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetailCache_KeysAreScopedAndHashed(t *testing.T) {
	a := NewDetailCache(nil, "https://letterboxd.com")
	b := NewDetailCache(nil, "http://localhost:8080")

	assert.NotEqual(t, a.generateKey("heat-1995"), b.generateKey("heat-1995"))
	assert.Equal(t, a.generateKey("heat-1995"), a.generateKey("heat-1995"))
	assert.Len(t, a.generateKey("heat-1995"), len(detailKeyPrefix)+64)
}
