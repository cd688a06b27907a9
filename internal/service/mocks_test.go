package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/publisher"
	"storefront/internal/repository"
)

// recordingNotifier captures dispatched events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	err    error
	events []recordedEvent
}

type recordedEvent struct {
	Event  publisher.Event
	Number string
}

func (n *recordingNotifier) Notify(_ context.Context, event publisher.Event, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, recordedEvent{Event: event, Number: order.Number})
	return nil
}

func (n *recordingNotifier) recorded() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

// newTestStore seeds a memory store with a small catalog:
//
//	product 1 "Espresso Grinder"  price 300  stock 10  active
//	product 2 "Pour-Over Kettle"  price 100  stock 2   active
//	product 3 "Retired Lamp"      price 50   stock 5   inactive
//	variant 10 of product 1, price override 320, stock 4
//	address addr1 owned by "alice"
func newTestStore() (*repository.Memory, uuid.UUID) {
	store := repository.NewMemory()
	override := 320.0
	store.SeedProduct(domain.Product{ID: 1, Name: "Espresso Grinder", SKU: "GRND-01", Price: 300, Quantity: 10, IsActive: true})
	store.SeedProduct(domain.Product{ID: 2, Name: "Pour-Over Kettle", SKU: "KETL-02", Price: 100, Quantity: 2, IsActive: true})
	store.SeedProduct(domain.Product{ID: 3, Name: "Retired Lamp", SKU: "LAMP-03", Price: 50, Quantity: 5, IsActive: false})
	store.SeedVariant(domain.Variant{ID: 10, ProductID: 1, Name: "220V", SKU: "GRND-01-220", Price: &override, Quantity: 4})

	addrID := uuid.New()
	store.SeedAddress(domain.Address{
		ID: addrID, UserID: "alice", FullName: "Alice Tester",
		Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
	})
	return store, addrID
}

func newCartService(store *repository.Memory) *CartService {
	return NewCartService(store, cache.Nop{})
}

func int64Ptr(v int64) *int64 { return &v }
