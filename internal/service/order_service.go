package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/publisher"
	"storefront/internal/repository"
)

// OrderService drives the order lifecycle after checkout. Customers may only
// cancel; admins may move an order to any known status.
type OrderService struct {
	store    repository.Store
	notifier publisher.Notifier
}

func NewOrderService(store repository.Store, notifier publisher.Notifier) *OrderService {
	return &OrderService{store: store, notifier: notifier}
}

// GetOrder returns an order visible to the caller: its owner, or any admin.
func (s *OrderService) GetOrder(ctx context.Context, userID string, isAdmin bool, id uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotOwner)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.store.ListOrdersByUserID(ctx, userID)
}

// Cancel performs a customer-initiated cancellation. Allowed only from
// PENDING or PROCESSING. Stock release for every item and the status flip to
// CANCELLED are one transaction; a partially applied cancellation is never
// observable.
func (s *OrderService) Cancel(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	cancel := func(ctx context.Context) error {
		return s.store.WithTransaction(ctx, func(ctx context.Context) error {
			order, err := s.store.GetOrderByID(ctx, id)
			if err != nil {
				return err
			}
			if order.UserID != userID {
				return fmt.Errorf("order %s: %w", id, ErrNotOwner)
			}
			if !order.Cancellable() {
				return fmt.Errorf("cannot cancel order in status %s: %w", order.Status, IllegalTransitionError)
			}

			// The conditional flip is the real guard: the plain read above takes
			// no lock, so a racing cancellation can also see a cancellable
			// status. Only one transaction can move the order out of it, and the
			// releases below run in that transaction alone.
			err = s.store.TransitionOrderStatus(ctx, id, domain.OrderStatusCancelled,
				domain.OrderStatusPending, domain.OrderStatusProcessing)
			if errors.Is(err, repository.ErrOrderStateConflict) {
				return fmt.Errorf("cannot cancel order in status %s: %w", order.Status, IllegalTransitionError)
			}
			if err != nil {
				return err
			}

			for _, item := range order.Items {
				if err := s.store.Release(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := cancel(ctx)
	if errors.Is(err, repository.ErrTxConflict) {
		log.Printf("cancellation of order %s hit a conflict, retrying once", id)
		err = cancel(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s.store.GetOrderByID(ctx, id)
}

// SetStatus is the admin transition: any known status is accepted. Moving an
// order into SHIPPED or DELIVERED dispatches exactly one notification when
// the status actually changed; a dispatch failure never rolls back or fails
// the update.
func (s *OrderService) SetStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !domain.KnownStatus(status) {
		return nil, fmt.Errorf("%q: %w", status, ErrUnknownStatus)
	}

	order, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}

	if err := s.store.UpdateOrderStatus(ctx, id, status); err != nil {
		return nil, err
	}
	order.Status = status

	switch status {
	case domain.OrderStatusShipped:
		s.notifyAsync(publisher.EventOrderShipped, order)
	case domain.OrderStatusDelivered:
		s.notifyAsync(publisher.EventOrderDelivered, order)
	}
	return order, nil
}

// SetPaymentStatus records an out-of-band payment result. Marking a PENDING
// order as PAID confirms it.
func (s *OrderService) SetPaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Order, error) {
	if !domain.KnownPaymentStatus(status) {
		return nil, fmt.Errorf("%q: %w", status, ErrUnknownStatus)
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.store.GetOrderByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.UpdatePaymentStatus(ctx, id, status); err != nil {
			return err
		}
		if status == domain.PaymentStatusPaid && order.Status == domain.OrderStatusPending {
			return s.store.UpdateOrderStatus(ctx, id, domain.OrderStatusConfirmed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetOrderByID(ctx, id)
}

func (s *OrderService) notifyAsync(event publisher.Event, order *domain.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, event, order); err != nil {
			log.Printf("notification %s for order %s failed: %v", event, order.Number, err)
		}
	}()
}
