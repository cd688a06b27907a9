package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/pricing"
	"storefront/internal/publisher"
	"storefront/internal/repository"
)

// maxOrderNumberAttempts bounds the collision-regeneration loop. Exhaustion
// fails closed instead of looping under pathological collision rates.
const maxOrderNumberAttempts = 5

// CheckoutService converts a mutable cart into an immutable order. The atomic
// step (order insert, per-line stock reservation, cart clear) is one
// transaction: either all of it becomes visible or none of it does.
type CheckoutService struct {
	store    repository.Store
	cache    cache.CartCache
	notifier publisher.Notifier
	discount pricing.DiscountFunc
}

func NewCheckoutService(store repository.Store, cartCache cache.CartCache, notifier publisher.Notifier, discount pricing.DiscountFunc) *CheckoutService {
	if discount == nil {
		discount = pricing.ZeroDiscount
	}
	return &CheckoutService{
		store:    store,
		cache:    cartCache,
		notifier: notifier,
		discount: discount,
	}
}

type PlaceOrderInput struct {
	AddressID     uuid.UUID
	PaymentMethod domain.PaymentMethod
	Notes         string
}

// PlaceOrder validates the cart, prices it from live catalog data and
// materializes the order. A transaction that cannot commit because of a
// concurrent stock change (or an order-number insert race) is retried once;
// a second failure surfaces to the caller as retryable.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (*domain.Order, error) {
	if !domain.KnownPaymentMethod(in.PaymentMethod) {
		return nil, ErrUnknownPaymentMethod
	}

	address, err := s.store.GetAddress(ctx, in.AddressID)
	if err != nil {
		return nil, err
	}
	if address.UserID != userID {
		return nil, fmt.Errorf("address %s: %w", in.AddressID, ErrNotOwner)
	}

	order, err := s.placeOnce(ctx, userID, in, address)
	if errors.Is(err, repository.ErrTxConflict) || errors.Is(err, repository.ErrDuplicateOrderNumber) {
		log.Printf("checkout for user %s hit %v, retrying once", userID, err)
		order, err = s.placeOnce(ctx, userID, in, address)
	}
	if err != nil {
		return nil, err
	}

	s.invalidateCart(userID)
	s.notifyAsync(publisher.EventOrderConfirmed, order)
	return order, nil
}

func (s *CheckoutService) placeOnce(ctx context.Context, userID string, in PlaceOrderInput, address *domain.Address) (*domain.Order, error) {
	cart, err := s.store.GetCartByUserID(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// Validate and price against the live catalog immediately before the
	// atomic step. The conditional decrement inside the transaction is what
	// actually enforces stock; this pass exists to fail early with an error
	// naming the offending product.
	items, priced, err := s.freezeLines(ctx, cart)
	if err != nil {
		return nil, err
	}
	totals := pricing.Quote(priced, s.discount)

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		ShippingAddress: *address,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		Status:          initialStatus(in.PaymentMethod),
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Discount:        totals.Discount,
		Total:           totals.Total,
		Notes:           in.Notes,
		Items:           items,
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		number, err := s.pickOrderNumber(ctx)
		if err != nil {
			return err
		}
		order.Number = number
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}

		if err := s.store.CreateOrder(ctx, order); err != nil {
			return err
		}
		for _, item := range order.Items {
			if err := s.store.Reserve(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) || errors.Is(err, repository.ErrProductInactive) {
					return fmt.Errorf("product %q: %w", item.ProductName, err)
				}
				return err
			}
		}
		return s.store.ClearCart(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// freezeLines resolves every cart line against the live catalog and returns
// the frozen order items alongside the priced lines for the calculator.
func (s *CheckoutService) freezeLines(ctx context.Context, cart *domain.Cart) ([]domain.OrderItem, []pricing.PricedLine, error) {
	items := make([]domain.OrderItem, 0, len(cart.Lines))
	priced := make([]pricing.PricedLine, 0, len(cart.Lines))

	for _, line := range cart.Lines {
		product, err := s.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if !product.IsActive {
			return nil, nil, fmt.Errorf("product %q: %w", product.Name, repository.ErrProductInactive)
		}

		var variant *domain.Variant
		if line.VariantID != nil {
			variant, err = s.store.GetVariant(ctx, line.ProductID, *line.VariantID)
			if err != nil {
				return nil, nil, err
			}
		}

		if line.Quantity > domain.Stock(product, variant) {
			return nil, nil, fmt.Errorf("product %q: %w", product.Name, repository.ErrInsufficientStock)
		}

		name, sku := product.Name, product.SKU
		if variant != nil {
			name = fmt.Sprintf("%s (%s)", product.Name, variant.Name)
			sku = variant.SKU
		}
		unit := domain.UnitPrice(product, variant)

		items = append(items, domain.OrderItem{
			ID:          uuid.New(),
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: name,
			SKU:         sku,
			UnitPrice:   unit,
			Quantity:    line.Quantity,
			LineTotal:   unit * float64(line.Quantity),
		})
		priced = append(priced, pricing.PricedLine{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			UnitPrice: unit,
			Quantity:  line.Quantity,
		})
	}
	return items, priced, nil
}

// pickOrderNumber generates candidates until one is free, bounded by
// maxOrderNumberAttempts. A race between the lookup and the insert still
// surfaces as ErrDuplicateOrderNumber from CreateOrder and is retried at the
// PlaceOrder level.
func (s *CheckoutService) pickOrderNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		number, err := generateOrderNumber()
		if err != nil {
			return "", err
		}
		exists, err := s.store.OrderNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", ErrOrderNumberExhausted
}

func generateOrderNumber() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), hex.EncodeToString(buf)), nil
}

// initialStatus: pay-on-delivery orders are confirmed immediately, everything
// else stays pending until payment is confirmed out of band.
func initialStatus(method domain.PaymentMethod) domain.OrderStatus {
	if method == domain.PaymentCashOnDelivery {
		return domain.OrderStatusConfirmed
	}
	return domain.OrderStatusPending
}

func (s *CheckoutService) invalidateCart(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cart cache invalidate error: %v", err)
	}
}

func (s *CheckoutService) notifyAsync(event publisher.Event, order *domain.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, event, order); err != nil {
			log.Printf("notification %s for order %s failed: %v", event, order.Number, err)
		}
	}()
}
