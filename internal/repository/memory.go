package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// Memory implements Store in process. It backs the unit tests and the DB-less
// dev mode. WithTransaction holds the write lock for the whole unit and
// restores a snapshot on error, so the commit-or-nothing contract matches the
// Postgres implementation.
type Memory struct {
	mu          sync.RWMutex
	products    map[int64]domain.Product
	variants    map[int64]domain.Variant
	addresses   map[uuid.UUID]domain.Address
	cartsByUser map[string]domain.Cart
	lines       map[uuid.UUID]domain.CartLine
	orders      map[uuid.UUID]domain.Order
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		products:    make(map[int64]domain.Product),
		variants:    make(map[int64]domain.Variant),
		addresses:   make(map[uuid.UUID]domain.Address),
		cartsByUser: make(map[string]domain.Cart),
		lines:       make(map[uuid.UUID]domain.CartLine),
		orders:      make(map[uuid.UUID]domain.Order),
	}
}

// Seed helpers for tests and dev mode. Not part of the Store surface.

func (m *Memory) SeedProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *Memory) SeedVariant(v domain.Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants[v.ID] = v
}

func (m *Memory) SeedAddress(a domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[a.ID] = a
}

// transaction plumbing

type memTxKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(memTxKey{}).(bool)
	return ok && v
}

func (m *Memory) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}

func (m *Memory) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *Memory) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *Memory) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	products    map[int64]domain.Product
	variants    map[int64]domain.Variant
	addresses   map[uuid.UUID]domain.Address
	cartsByUser map[string]domain.Cart
	lines       map[uuid.UUID]domain.CartLine
	orders      map[uuid.UUID]domain.Order
}

func (m *Memory) snapshot() memSnapshot {
	return memSnapshot{
		products:    cloneMap(m.products),
		variants:    cloneMap(m.variants),
		addresses:   cloneMap(m.addresses),
		cartsByUser: cloneMap(m.cartsByUser),
		lines:       cloneMap(m.lines),
		orders:      cloneMap(m.orders),
	}
}

func (m *Memory) restore(s memSnapshot) {
	m.products = s.products
	m.variants = s.variants
	m.addresses = s.addresses
	m.cartsByUser = s.cartsByUser
	m.lines = s.lines
	m.orders = s.orders
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ProductRepository

func (m *Memory) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := p
	return &cp, nil
}

func (m *Memory) GetVariant(ctx context.Context, productID, variantID int64) (*domain.Variant, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	v, ok := m.variants[variantID]
	if !ok || v.ProductID != productID {
		return nil, ErrVariantNotFound
	}
	cp := v
	return &cp, nil
}

// StockLedger

func (m *Memory) Reserve(ctx context.Context, productID int64, variantID *int64, qty int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	p, ok := m.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if !p.IsActive {
		return ErrProductInactive
	}

	if variantID != nil {
		v, ok := m.variants[*variantID]
		if !ok || v.ProductID != productID {
			return ErrVariantNotFound
		}
		if v.Quantity < qty {
			return ErrInsufficientStock
		}
		v.Quantity -= qty
		m.variants[*variantID] = v
		return nil
	}

	if p.Quantity < qty {
		return ErrInsufficientStock
	}
	p.Quantity -= qty
	m.products[productID] = p
	return nil
}

func (m *Memory) Release(ctx context.Context, productID int64, variantID *int64, qty int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if variantID != nil {
		v, ok := m.variants[*variantID]
		if !ok || v.ProductID != productID {
			return nil // product gone from catalog, nothing to credit
		}
		v.Quantity += qty
		m.variants[*variantID] = v
		return nil
	}

	p, ok := m.products[productID]
	if !ok {
		return nil
	}
	p.Quantity += qty
	m.products[productID] = p
	return nil
}

func (m *Memory) Available(ctx context.Context, productID int64, variantID *int64) (int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	if variantID != nil {
		v, ok := m.variants[*variantID]
		if !ok || v.ProductID != productID {
			return 0, ErrVariantNotFound
		}
		return v.Quantity, nil
	}
	p, ok := m.products[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return p.Quantity, nil
}

// CartRepository

func (m *Memory) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	cart, ok := m.cartsByUser[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	cp := cart
	cp.Lines = m.linesOf(cart.ID)
	return &cp, nil
}

func (m *Memory) linesOf(cartID uuid.UUID) []domain.CartLine {
	var lines []domain.CartLine
	for _, l := range m.lines {
		if l.CartID == cartID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].AddedAt.Before(lines[j].AddedAt) })
	return lines
}

func (m *Memory) CreateCart(ctx context.Context, cart *domain.Cart) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if _, ok := m.cartsByUser[cart.UserID]; ok {
		return ErrCartExists
	}

	now := time.Now()
	c := *cart
	c.Lines = nil
	c.CreatedAt = now
	c.UpdatedAt = now
	m.cartsByUser[cart.UserID] = c
	return nil
}

func (m *Memory) UpsertLine(ctx context.Context, line *domain.CartLine) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	for id, l := range m.lines {
		if l.CartID == line.CartID && l.ProductID == line.ProductID && samePtr(l.VariantID, line.VariantID) {
			l.Quantity = line.Quantity
			m.lines[id] = l
			return nil
		}
	}

	l := *line
	if l.AddedAt.IsZero() {
		l.AddedAt = time.Now()
	}
	m.lines[l.ID] = l
	return nil
}

func (m *Memory) GetLine(ctx context.Context, lineID uuid.UUID) (*domain.CartLine, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	l, ok := m.lines[lineID]
	if !ok {
		return nil, ErrLineNotFound
	}
	cp := l
	return &cp, nil
}

func (m *Memory) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, qty int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	l, ok := m.lines[lineID]
	if !ok {
		return ErrLineNotFound
	}
	l.Quantity = qty
	m.lines[lineID] = l
	return nil
}

func (m *Memory) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if _, ok := m.lines[lineID]; !ok {
		return ErrLineNotFound
	}
	delete(m.lines, lineID)
	return nil
}

func (m *Memory) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	for id, l := range m.lines {
		if l.CartID == cartID {
			delete(m.lines, id)
		}
	}
	return nil
}

// AddressRepository

func (m *Memory) GetAddress(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	a, ok := m.addresses[id]
	if !ok {
		return nil, ErrAddressNotFound
	}
	cp := a
	return &cp, nil
}

// OrderRepository

func (m *Memory) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	for _, o := range m.orders {
		if o.Number == order.Number {
			return ErrDuplicateOrderNumber
		}
	}

	now := time.Now()
	o := *order
	o.Items = append([]domain.OrderItem(nil), order.Items...)
	o.CreatedAt = now
	o.UpdatedAt = now
	m.orders[o.ID] = o
	return nil
}

func (m *Memory) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *Memory) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	var orders []*domain.Order
	for _, o := range m.orders {
		if o.UserID != userID {
			continue
		}
		cp := o
		cp.Items = append([]domain.OrderItem(nil), o.Items...)
		orders = append(orders, &cp)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (m *Memory) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	for _, o := range m.orders {
		if o.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return nil
}

func (m *Memory) TransitionOrderStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus, from ...domain.OrderStatus) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	allowed := false
	for _, f := range from {
		if o.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrOrderStateConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return nil
}

func (m *Memory) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.PaymentStatus = status
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return nil
}

func samePtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
