package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return NewRedisCache(client), mr, cleanup
}

func testCart(userID string) *domain.Cart {
	cartID := uuid.New()
	return &domain.Cart{
		ID:     cartID,
		UserID: userID,
		Lines: []domain.CartLine{
			{ID: uuid.New(), CartID: cartID, ProductID: 1, Quantity: 2},
			{ID: uuid.New(), CartID: cartID, ProductID: 2, Quantity: 3},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cart := testCart("user123")
	cartJSON, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("user123"), string(cartJSON)))

	got, err := cache.Get(context.Background(), "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", got.UserID)
	assert.Len(t, got.Lines, 2)
	assert.Equal(t, int64(1), got.Lines[0].ProductID)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	got, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("user123"), `{"id":"not a`))

	_, err := cache.Get(context.Background(), "user123")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestSet_RoundTripAndTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cart := testCart("user456")
	require.NoError(t, cache.Set(context.Background(), "user456", cart))

	stored, err := mr.Get(cacheKey("user456"))
	require.NoError(t, err)

	var got domain.Cart
	require.NoError(t, json.Unmarshal([]byte(stored), &got))
	assert.Equal(t, cart.ID, got.ID)
	assert.Len(t, got.Lines, 2)

	ttl := mr.TTL(cacheKey("user456"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)
}

func TestDelete(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("user999"), "{}"))
	require.True(t, mr.Exists(cacheKey("user999")))

	require.NoError(t, cache.Delete(context.Background(), "user999"))
	assert.False(t, mr.Exists(cacheKey("user999")))

	// deleting a missing key is not an error
	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}
