package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/pricing"
	"storefront/internal/repository"
)

// CartService owns all cart mutations and the read-through cart cache. A cart
// is created lazily on first add and belongs to exactly one user, so no
// cross-cart coordination is needed here; stock is the only shared resource
// and it is only ever read from this service, never written.
type CartService struct {
	store repository.Store
	cache cache.CartCache
	sfg   singleflight.Group // prevents cache stampede
}

func NewCartService(store repository.Store, cartCache cache.CartCache) *CartService {
	return &CartService{
		store: store,
		cache: cartCache,
	}
}

// GetCart returns the user's cart, or an empty one if none exists yet. The
// empty cart is not persisted; persistence happens on first add.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cart cache get error: %v", err)
		}

		cart, err = s.store.GetCartByUserID(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(cacheCtx, userID, cart); errSet != nil {
				log.Printf("cart cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// AddLine adds quantity of a (product, variant) pair to the user's cart,
// merging into an existing line for the same pair. The resulting quantity is
// clamped to currently available stock; a reduced total is reported through
// the clamped return value as a partial success, not a failure.
func (s *CartService) AddLine(ctx context.Context, userID string, productID int64, variantID *int64, qty int) (*domain.Cart, bool, error) {
	if qty < 1 {
		return nil, false, ErrInvalidQuantity
	}

	product, variant, err := s.resolve(ctx, productID, variantID)
	if err != nil {
		return nil, false, err
	}

	stock := domain.Stock(product, variant)
	if stock == 0 {
		return nil, false, fmt.Errorf("product %q: %w", product.Name, repository.ErrInsufficientStock)
	}

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	desired := qty
	line := cart.FindLine(productID, variantID)
	if line != nil {
		desired = line.Quantity + qty
	}

	final := desired
	clamped := false
	if final > stock {
		final = stock
		clamped = true
	}

	upsert := domain.CartLine{
		ID:        uuid.New(),
		CartID:    cart.ID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  final,
	}
	if line != nil {
		upsert.ID = line.ID
	}
	if err := s.store.UpsertLine(ctx, &upsert); err != nil {
		return nil, false, err
	}

	s.invalidate(userID)
	updated, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return updated, clamped, nil
}

// SetQuantity sets a line's absolute quantity. Unlike AddLine it does not
// clamp: a value below 1 or above current stock is rejected.
func (s *CartService) SetQuantity(ctx context.Context, userID string, lineID uuid.UUID, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	line, err := s.ownedLine(ctx, userID, lineID)
	if err != nil {
		return nil, err
	}

	product, variant, err := s.resolve(ctx, line.ProductID, line.VariantID)
	if err != nil {
		return nil, err
	}
	if qty > domain.Stock(product, variant) {
		return nil, fmt.Errorf("product %q: %w", product.Name, repository.ErrInsufficientStock)
	}

	if err := s.store.UpdateLineQuantity(ctx, lineID, qty); err != nil {
		return nil, err
	}

	s.invalidate(userID)
	return s.store.GetCartByUserID(ctx, userID)
}

// RemoveLine deletes one line from the user's cart.
func (s *CartService) RemoveLine(ctx context.Context, userID string, lineID uuid.UUID) (*domain.Cart, error) {
	if _, err := s.ownedLine(ctx, userID, lineID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteLine(ctx, lineID); err != nil {
		return nil, err
	}

	s.invalidate(userID)
	return s.store.GetCartByUserID(ctx, userID)
}

// Clear removes every line from the user's cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	cart, err := s.store.GetCartByUserID(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.ClearCart(ctx, cart.ID); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// Totals prices the cart from live catalog data for the cart view. Lines
// whose product has vanished or gone inactive since being added are priced at
// zero rather than failing the whole view; checkout rejects them properly.
func (s *CartService) Totals(ctx context.Context, cart *domain.Cart) (pricing.Totals, error) {
	priced := make([]pricing.PricedLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		product, variant, err := s.resolve(ctx, line.ProductID, line.VariantID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) ||
				errors.Is(err, repository.ErrVariantNotFound) ||
				errors.Is(err, repository.ErrProductInactive) {
				continue
			}
			return pricing.Totals{}, err
		}
		priced = append(priced, pricing.PricedLine{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			UnitPrice: domain.UnitPrice(product, variant),
			Quantity:  line.Quantity,
		})
	}
	return pricing.Quote(priced, pricing.ZeroDiscount), nil
}

// resolve loads the product and, when requested, its variant, rejecting
// missing or inactive products.
func (s *CartService) resolve(ctx context.Context, productID int64, variantID *int64) (*domain.Product, *domain.Variant, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if !product.IsActive {
		return nil, nil, fmt.Errorf("product %q: %w", product.Name, repository.ErrProductInactive)
	}

	var variant *domain.Variant
	if variantID != nil {
		variant, err = s.store.GetVariant(ctx, productID, *variantID)
		if err != nil {
			return nil, nil, err
		}
	}
	return product, variant, nil
}

// ownedLine fetches a line and verifies it belongs to the user's cart. A line
// owned by someone else is reported as absent, not forbidden, to avoid
// leaking other carts' line ids.
func (s *CartService) ownedLine(ctx context.Context, userID string, lineID uuid.UUID) (*domain.CartLine, error) {
	line, err := s.store.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, repository.ErrLineNotFound
		}
		return nil, err
	}
	if line.CartID != cart.ID {
		return nil, repository.ErrLineNotFound
	}
	return line, nil
}

func (s *CartService) getOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	cart = &domain.Cart{ID: uuid.New(), UserID: userID}
	if err := s.store.CreateCart(ctx, cart); err != nil {
		// lost the creation race against a concurrent first add; use the
		// winner's cart
		if errors.Is(err, repository.ErrCartExists) {
			return s.store.GetCartByUserID(ctx, userID)
		}
		return nil, err
	}
	return cart, nil
}

func (s *CartService) invalidate(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cart cache invalidate error: %v", err)
	}
}
