package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repository"
)

func TestGetCart_EmptyWhenNoneExists(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)

	cart, err := sut.GetCart(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cart.UserID)
	assert.True(t, cart.IsEmpty())

	// the empty cart is not persisted
	_, err = store.GetCartByUserID(context.Background(), "alice")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

type stubCache struct {
	mu   sync.Mutex
	cart *domain.Cart
	dels int
}

func (c *stubCache) Get(context.Context, string) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return c.cart, nil
}

func (c *stubCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart = cart
	return nil
}

func (c *stubCache) Delete(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart = nil
	c.dels++
	return nil
}

func (c *stubCache) deletes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dels
}

func TestGetCart_ServedFromCache(t *testing.T) {
	store, _ := newTestStore()
	cached := &domain.Cart{UserID: "alice", Lines: []domain.CartLine{{ProductID: 1, Quantity: 2}}}
	sut := NewCartService(store, &stubCache{cart: cached})

	cart, err := sut.GetCart(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
}

func TestAddLine_CreatesCartLazily(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)

	cart, clamped, err := sut.AddLine(context.Background(), "alice", 1, nil, 3)
	require.NoError(t, err)
	assert.False(t, clamped)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)

	persisted, err := store.GetCartByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, persisted.Lines, 1)
}

// missingCartOnce reports the cart absent on the first read, reproducing the
// window where a concurrent first add wins the cart creation race after this
// request already missed.
type missingCartOnce struct {
	*repository.Memory
	mu     sync.Mutex
	missed bool
}

func (s *missingCartOnce) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	s.mu.Lock()
	first := !s.missed
	s.missed = true
	s.mu.Unlock()
	if first {
		return nil, repository.ErrCartNotFound
	}
	return s.Memory.GetCartByUserID(ctx, userID)
}

func TestAddLine_CreateRaceFallsBackToWinner(t *testing.T) {
	mem, _ := newTestStore()
	// the winner's cart already exists by the time CreateCart runs
	require.NoError(t, mem.CreateCart(context.Background(), &domain.Cart{ID: uuid.New(), UserID: "alice"}))
	sut := NewCartService(&missingCartOnce{Memory: mem}, cache.Nop{})

	cart, clamped, err := sut.AddLine(context.Background(), "alice", 1, nil, 2)
	require.NoError(t, err)
	assert.False(t, clamped)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
}

func TestAddLine_MergesDuplicatePair(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)
	ctx := context.Background()

	_, _, err := sut.AddLine(ctx, "alice", 1, nil, 3)
	require.NoError(t, err)
	cart, clamped, err := sut.AddLine(ctx, "alice", 1, nil, 4)
	require.NoError(t, err)

	assert.False(t, clamped)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 7, cart.Lines[0].Quantity)
}

func TestAddLine_ClampsToStock(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)

	// product 2 has stock 2
	cart, clamped, err := sut.AddLine(context.Background(), "alice", 2, nil, 5)
	require.NoError(t, err)

	assert.True(t, clamped)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
}

func TestAddLine_VariantScopedStock(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)

	// variant 10 has stock 4 even though product 1 has 10
	cart, clamped, err := sut.AddLine(context.Background(), "alice", 1, int64Ptr(10), 6)
	require.NoError(t, err)

	assert.True(t, clamped)
	assert.Equal(t, 4, cart.Lines[0].Quantity)
}

func TestAddLine_VariantAndBaseAreSeparateLines(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)
	ctx := context.Background()

	_, _, err := sut.AddLine(ctx, "alice", 1, nil, 1)
	require.NoError(t, err)
	cart, _, err := sut.AddLine(ctx, "alice", 1, int64Ptr(10), 1)
	require.NoError(t, err)

	assert.Len(t, cart.Lines, 2)
}

func TestAddLine_Failures(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)
	ctx := context.Background()

	_, _, err := sut.AddLine(ctx, "alice", 1, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = sut.AddLine(ctx, "alice", 99, nil, 1)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)

	_, _, err = sut.AddLine(ctx, "alice", 3, nil, 1)
	assert.ErrorIs(t, err, repository.ErrProductInactive)

	_, _, err = sut.AddLine(ctx, "alice", 1, int64Ptr(77), 1)
	assert.ErrorIs(t, err, repository.ErrVariantNotFound)
}

func TestAddLine_ZeroStockIsHardFailure(t *testing.T) {
	store, _ := newTestStore()
	store.SeedProduct(domain.Product{ID: 4, Name: "Sold Out", SKU: "GONE-04", Price: 10, Quantity: 0, IsActive: true})
	sut := newCartService(store)

	_, _, err := sut.AddLine(context.Background(), "alice", 4, nil, 1)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.ErrorContains(t, err, "Sold Out")
}

func TestSetQuantity(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)
	ctx := context.Background()

	cart, _, err := sut.AddLine(ctx, "alice", 1, nil, 3)
	require.NoError(t, err)
	lineID := cart.Lines[0].ID

	updated, err := sut.SetQuantity(ctx, "alice", lineID, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Lines[0].Quantity)

	_, err = sut.SetQuantity(ctx, "alice", lineID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	// product 1 has stock 10; SetQuantity rejects instead of clamping
	_, err = sut.SetQuantity(ctx, "alice", lineID, 11)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
}

func TestSetQuantity_ForeignLineReportedAbsent(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)
	ctx := context.Background()

	cart, _, err := sut.AddLine(ctx, "alice", 1, nil, 3)
	require.NoError(t, err)

	_, _, err = sut.AddLine(ctx, "bob", 1, nil, 1)
	require.NoError(t, err)

	_, err = sut.SetQuantity(ctx, "bob", cart.Lines[0].ID, 2)
	assert.ErrorIs(t, err, repository.ErrLineNotFound)
}

func TestRemoveLineAndClear(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)
	ctx := context.Background()

	cart, _, err := sut.AddLine(ctx, "alice", 1, nil, 3)
	require.NoError(t, err)
	_, _, err = sut.AddLine(ctx, "alice", 2, nil, 1)
	require.NoError(t, err)

	updated, err := sut.RemoveLine(ctx, "alice", cart.Lines[0].ID)
	require.NoError(t, err)
	assert.Len(t, updated.Lines, 1)

	require.NoError(t, sut.Clear(ctx, "alice"))
	after, err := store.GetCartByUserID(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, after.IsEmpty())
}

func TestClear_NoCartIsNoop(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)

	assert.NoError(t, sut.Clear(context.Background(), "nobody"))
}

func TestWrites_InvalidateCache(t *testing.T) {
	store, _ := newTestStore()
	sc := &stubCache{}
	sut := NewCartService(store, sc)
	ctx := context.Background()

	cart, _, err := sut.AddLine(ctx, "alice", 1, nil, 2)
	require.NoError(t, err)
	_, err = sut.SetQuantity(ctx, "alice", cart.Lines[0].ID, 3)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sc.deletes(), 2)
}

func TestTotals(t *testing.T) {
	store, _ := newTestStore()
	sut := newCartService(store)
	ctx := context.Background()

	_, _, err := sut.AddLine(ctx, "alice", 1, nil, 2) // 2 x 300
	require.NoError(t, err)
	cart, _, err := sut.AddLine(ctx, "alice", 2, nil, 1) // 1 x 100
	require.NoError(t, err)

	totals, err := sut.Totals(ctx, cart)
	require.NoError(t, err)
	assert.Equal(t, 700.0, totals.Subtotal)
	assert.Equal(t, 126.0, totals.Tax)
	assert.Equal(t, 0.0, totals.Shipping)
	assert.Equal(t, 826.0, totals.Total)
}
