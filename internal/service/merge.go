package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// MergeGuestCart folds a client-held guest cart into the user's server cart.
// It runs once, at login, before any other cart read. Lines are processed in
// input order; a line that cannot be merged is skipped with a warning rather
// than aborting the merge. Quantities are summed with any existing line for
// the same (product, variant) pair and clamped to available stock.
//
// The whole merge is one transaction: either every upsert lands or none does.
// A serialization failure, or a cart created by a concurrent request between
// the merge's read and its lazy insert, rolls the attempt back and is retried
// once against the now-existing cart. The response is the client's signal to
// drop its guest storage, so the clear happens after processing, never before.
func (s *CartService) MergeGuestCart(ctx context.Context, userID string, guest []domain.GuestLine) (*domain.Cart, []domain.MergeWarning, error) {
	warnings, err := s.mergeOnce(ctx, userID, guest)
	if errors.Is(err, repository.ErrTxConflict) || errors.Is(err, repository.ErrCartExists) {
		log.Printf("guest cart merge for user %s hit %v, retrying once", userID, err)
		warnings, err = s.mergeOnce(ctx, userID, guest)
	}
	if err != nil {
		return nil, nil, err
	}

	s.invalidate(userID)
	cart, err := s.store.GetCartByUserID(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		// every guest line was skipped and no cart existed beforehand
		return &domain.Cart{UserID: userID}, warnings, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return cart, warnings, nil
}

func (s *CartService) mergeOnce(ctx context.Context, userID string, guest []domain.GuestLine) ([]domain.MergeWarning, error) {
	warnings := make([]domain.MergeWarning, 0)

	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.store.GetCartByUserID(ctx, userID)
		created := true
		if errors.Is(err, repository.ErrCartNotFound) {
			// carts are created lazily; only persist one if a line survives
			cart = &domain.Cart{ID: uuid.New(), UserID: userID}
			created = false
		} else if err != nil {
			return err
		}

		for _, g := range guest {
			warn := func(reason, name string) {
				warnings = append(warnings, domain.MergeWarning{
					ProductID:   g.ProductID,
					VariantID:   g.VariantID,
					ProductName: name,
					Reason:      reason,
				})
			}

			if g.Quantity < 1 {
				warn("invalid quantity", "")
				continue
			}

			product, err := s.store.GetProduct(ctx, g.ProductID)
			if errors.Is(err, repository.ErrProductNotFound) {
				warn("product no longer exists", "")
				continue
			}
			if err != nil {
				return err
			}
			if !product.IsActive {
				warn("product is no longer available", product.Name)
				continue
			}

			var variant *domain.Variant
			if g.VariantID != nil {
				variant, err = s.store.GetVariant(ctx, g.ProductID, *g.VariantID)
				if errors.Is(err, repository.ErrVariantNotFound) {
					warn("variant no longer exists", product.Name)
					continue
				}
				if err != nil {
					return err
				}
			}

			stock := domain.Stock(product, variant)
			if stock == 0 {
				warn("out of stock", product.Name)
				continue
			}

			desired := g.Quantity
			line := cart.FindLine(g.ProductID, g.VariantID)
			if line != nil {
				desired = line.Quantity + g.Quantity
			}
			final := desired
			if final > stock {
				final = stock
				warn(fmt.Sprintf("quantity reduced to available stock (%d)", stock), product.Name)
			}

			upsert := domain.CartLine{
				ID:        uuid.New(),
				CartID:    cart.ID,
				ProductID: g.ProductID,
				VariantID: g.VariantID,
				Quantity:  final,
			}
			if line != nil {
				upsert.ID = line.ID
			}
			if !created {
				if err := s.store.CreateCart(ctx, cart); err != nil {
					return err
				}
				created = true
			}
			if err := s.store.UpsertLine(ctx, &upsert); err != nil {
				return err
			}

			// keep the working copy current so a duplicate guest line for the
			// same pair merges against what we just wrote
			if line != nil {
				line.Quantity = final
			} else {
				cart.Lines = append(cart.Lines, upsert)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return warnings, nil
}
