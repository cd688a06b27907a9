package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrProductInactive      = errors.New("product is not active")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrCartNotFound         = errors.New("cart not found")
	ErrCartExists           = errors.New("cart already exists for user")
	ErrLineNotFound         = errors.New("cart line not found")
	ErrAddressNotFound      = errors.New("address not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrOrderStateConflict   = errors.New("order status does not allow this transition")

	// ErrTxConflict signals that the transaction could not commit because of a
	// concurrent conflicting update. Safe to retry once.
	ErrTxConflict = errors.New("transaction conflict")
)

type ProductRepository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetVariant(ctx context.Context, productID, variantID int64) (*domain.Variant, error)
}

// StockLedger is the only path that mutates on-hand stock. Reserve is a
// conditional decrement that never lets quantity go negative; Release is an
// unconditional increment. Both join the ctx-carried transaction when one is
// open.
type StockLedger interface {
	Reserve(ctx context.Context, productID int64, variantID *int64, qty int) error
	Release(ctx context.Context, productID int64, variantID *int64, qty int) error
	Available(ctx context.Context, productID int64, variantID *int64) (int, error)
}

type CartRepository interface {
	GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, cart *domain.Cart) error
	UpsertLine(ctx context.Context, line *domain.CartLine) error
	GetLine(ctx context.Context, lineID uuid.UUID) (*domain.CartLine, error)
	UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, qty int) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
	ClearCart(ctx context.Context, cartID uuid.UUID) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	// TransitionOrderStatus flips the status only when the current status is one
	// of from, as a single conditional write. Like Reserve, the condition lives
	// in the statement itself, so two concurrent transitions of the same order
	// cannot both pass the guard; the loser gets ErrOrderStateConflict.
	TransitionOrderStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus, from ...domain.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
}

type AddressRepository interface {
	GetAddress(ctx context.Context, id uuid.UUID) (*domain.Address, error)
}

// TxManager runs fn inside one transaction. Repository calls made with the ctx
// it passes to fn share that transaction. Nested calls reuse the open one.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is the full persistence surface the services depend on.
type Store interface {
	ProductRepository
	StockLedger
	CartRepository
	OrderRepository
	AddressRepository
	TxManager
}
