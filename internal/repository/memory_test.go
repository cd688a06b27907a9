package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func seededMemory() *Memory {
	m := NewMemory()
	override := 25.0
	m.SeedProduct(domain.Product{ID: 1, Name: "Widget", SKU: "WDG-01", Price: 20, Quantity: 5, IsActive: true})
	m.SeedProduct(domain.Product{ID: 2, Name: "Gadget", SKU: "GDT-02", Price: 30, Quantity: 3, IsActive: false})
	m.SeedVariant(domain.Variant{ID: 7, ProductID: 1, Name: "Red", SKU: "WDG-01-R", Price: &override, Quantity: 2})
	return m
}

func TestMemoryReserve(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, 1, nil, 3))
	left, err := m.Available(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	err = m.Reserve(ctx, 1, nil, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// a failed reservation must not debit anything
	left, err = m.Available(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	assert.ErrorIs(t, m.Reserve(ctx, 99, nil, 1), ErrProductNotFound)
	assert.ErrorIs(t, m.Reserve(ctx, 2, nil, 1), ErrProductInactive)
}

func TestMemoryReserve_VariantScoped(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	variantID := int64(7)
	require.NoError(t, m.Reserve(ctx, 1, &variantID, 2))
	assert.ErrorIs(t, m.Reserve(ctx, 1, &variantID, 1), ErrInsufficientStock)

	// base product stock untouched by variant reservations
	left, err := m.Available(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, left)

	wrong := int64(8)
	assert.ErrorIs(t, m.Reserve(ctx, 1, &wrong, 1), ErrVariantNotFound)
}

func TestMemoryRelease(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, 1, nil, 3))
	require.NoError(t, m.Release(ctx, 1, nil, 3))

	left, err := m.Available(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, left)

	// releasing against a product no longer in the catalog is a no-op
	assert.NoError(t, m.Release(ctx, 99, nil, 1))
}

func TestMemoryWithTransaction_RollbackRestoresState(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTransaction(ctx, func(ctx context.Context) error {
		if err := m.Reserve(ctx, 1, nil, 4); err != nil {
			return err
		}
		if err := m.CreateCart(ctx, &domain.Cart{ID: uuid.New(), UserID: "alice"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	left, err := m.Available(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, left)
	_, err = m.GetCartByUserID(ctx, "alice")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMemoryWithTransaction_CommitKeepsState(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	err := m.WithTransaction(ctx, func(ctx context.Context) error {
		return m.Reserve(ctx, 1, nil, 4)
	})
	require.NoError(t, err)

	left, err := m.Available(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestMemoryWithTransaction_NestedReusesOuter(t *testing.T) {
	m := seededMemory()

	err := m.WithTransaction(context.Background(), func(ctx context.Context) error {
		return m.WithTransaction(ctx, func(ctx context.Context) error {
			return m.Reserve(ctx, 1, nil, 1)
		})
	})
	require.NoError(t, err)

	left, err := m.Available(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, left)
}

func TestMemoryReserve_ConcurrentNeverOversells(t *testing.T) {
	m := NewMemory()
	m.SeedProduct(domain.Product{ID: 1, Name: "Widget", SKU: "WDG-01", Price: 20, Quantity: 10, IsActive: true})
	ctx := context.Background()

	const workers = 25
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Reserve(ctx, 1, nil, 1)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 10, succeeded)

	left, err := m.Available(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, left)
}

func TestMemoryUpsertLine_MergesOnPair(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	cartID := uuid.New()
	require.NoError(t, m.CreateCart(ctx, &domain.Cart{ID: cartID, UserID: "alice"}))

	first := domain.CartLine{ID: uuid.New(), CartID: cartID, ProductID: 1, Quantity: 2}
	require.NoError(t, m.UpsertLine(ctx, &first))
	second := domain.CartLine{ID: uuid.New(), CartID: cartID, ProductID: 1, Quantity: 5}
	require.NoError(t, m.UpsertLine(ctx, &second))

	cart, err := m.GetCartByUserID(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
	assert.Equal(t, first.ID, cart.Lines[0].ID)
}

func TestMemoryCreateCart_DuplicateUser(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateCart(ctx, &domain.Cart{ID: uuid.New(), UserID: "alice"}))
	assert.ErrorIs(t, m.CreateCart(ctx, &domain.Cart{ID: uuid.New(), UserID: "alice"}), ErrCartExists)
}

func TestMemoryTransitionOrderStatus(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	order := domain.Order{ID: uuid.New(), UserID: "alice", Number: "ORD-20260828-0a0a0a0a", Status: domain.OrderStatusPending}
	require.NoError(t, m.CreateOrder(ctx, &order))

	require.NoError(t, m.TransitionOrderStatus(ctx, order.ID, domain.OrderStatusCancelled,
		domain.OrderStatusPending, domain.OrderStatusProcessing))

	// already cancelled, the guard refuses a second flip
	assert.ErrorIs(t, m.TransitionOrderStatus(ctx, order.ID, domain.OrderStatusCancelled,
		domain.OrderStatusPending, domain.OrderStatusProcessing), ErrOrderStateConflict)

	assert.ErrorIs(t, m.TransitionOrderStatus(ctx, uuid.New(), domain.OrderStatusCancelled,
		domain.OrderStatusPending), ErrOrderNotFound)

	fetched, err := m.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, fetched.Status)
}

func TestMemoryCreateOrder_DuplicateNumber(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	order := domain.Order{ID: uuid.New(), UserID: "alice", Number: "ORD-20260828-deadbeef"}
	require.NoError(t, m.CreateOrder(ctx, &order))

	dup := domain.Order{ID: uuid.New(), UserID: "bob", Number: order.Number}
	assert.ErrorIs(t, m.CreateOrder(ctx, &dup), ErrDuplicateOrderNumber)

	exists, err := m.OrderNumberExists(ctx, order.Number)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = m.OrderNumberExists(ctx, "ORD-20260828-00000000")
	require.NoError(t, err)
	assert.False(t, exists)
}
