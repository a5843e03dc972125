package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/potfund-ledger/internal/testutil"
)

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	cache := NewRedisCache(testutil.SetupRedis(t))
	require.NoError(t, cache.Ping(ctx))

	miss, err := cache.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, miss)

	rec := &Record{
		Key:         "key-1",
		RequestHash: "hash-a",
		Response:    []byte(`{"entry_id":"e1"}`),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		ExpiresAt:   time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(t, cache.Set(ctx, rec))

	got, err := cache.Get(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.RequestHash, got.RequestHash)
	assert.JSONEq(t, string(rec.Response), string(got.Response))

	expired := &Record{Key: "old", ExpiresAt: time.Now().Add(-time.Second)}
	require.NoError(t, cache.Set(ctx, expired))
	miss, err = cache.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, miss)
}
