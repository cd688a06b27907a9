package cache

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

// CartCache is a read-through cache over the cart store. Misses are normal;
// any other failure is logged by the caller and never fails the request.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Nop always misses. Used when no Redis is configured and in tests that do
// not exercise caching.
type Nop struct{}

func (Nop) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }
func (Nop) Set(context.Context, string, *domain.Cart) error   { return nil }
func (Nop) Delete(context.Context, string) error              { return nil }
