package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"storefront/internal/domain"
)

// CreateOrder inserts the order row and its frozen items. The shipping address
// is stored as a JSON snapshot, not a reference, so later address edits do not
// rewrite history.
func (r *Postgres) CreateOrder(ctx context.Context, order *domain.Order) error {
	addrJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `INSERT INTO orders
	          (id, number, user_id, shipping_address, payment_method, payment_status, status,
	           subtotal, tax, shipping, discount, total, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, insertErr := r.q(ctx).ExecContext(ctx, query,
		order.ID, order.Number, order.UserID, addrJSON,
		order.PaymentMethod, order.PaymentStatus, order.Status,
		order.Subtotal, order.Tax, order.Shipping, order.Discount, order.Total, order.Notes)
	if insertErr != nil {
		if isUniqueViolation(insertErr, "orders_number_key") {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("insert order: %w", mapConflict(insertErr))
	}

	itemQuery := `INSERT INTO order_items
	              (id, order_id, product_id, variant_id, product_name, sku, unit_price, quantity, line_total)
	              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, item := range order.Items {
		if _, err := r.q(ctx).ExecContext(ctx, itemQuery,
			item.ID, order.ID, item.ProductID, item.VariantID,
			item.ProductName, item.SKU, item.UnitPrice, item.Quantity, item.LineTotal); err != nil {
			return fmt.Errorf("insert order item: %w", mapConflict(err))
		}
	}
	return nil
}

func (r *Postgres) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, number, user_id, shipping_address, payment_method, payment_status, status,
	                 subtotal, tax, shipping, discount, total, notes, created_at, updated_at
	          FROM orders WHERE id = $1`

	order, err := r.scanOrder(r.q(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	items, err := r.orderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *Postgres) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT id, number, user_id, shipping_address, payment_method, payment_status, status,
	                 subtotal, tax, shipping, discount, total, notes, created_at, updated_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.q(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order iteration: %w", err)
	}

	for _, order := range orders {
		items, err := r.orderItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Postgres) scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var addrJSON []byte
	err := row.Scan(
		&order.ID, &order.Number, &order.UserID, &addrJSON,
		&order.PaymentMethod, &order.PaymentStatus, &order.Status,
		&order.Subtotal, &order.Tax, &order.Shipping, &order.Discount, &order.Total,
		&order.Notes, &order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	return &order, nil
}

func (r *Postgres) orderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `SELECT id, order_id, product_id, variant_id, product_name, sku, unit_price, quantity, line_total
	          FROM order_items WHERE order_id = $1`

	rows, err := r.q(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID,
			&it.ProductName, &it.SKU, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order item iteration: %w", err)
	}
	return items, nil
}

func (r *Postgres) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query order number: %w", err)
	}
	return exists, nil
}

func (r *Postgres) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	res, err := r.q(ctx).ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", mapConflict(err))
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// TransitionOrderStatus is the guarded counterpart of UpdateOrderStatus: the
// status predicate sits in the UPDATE itself. Under READ COMMITTED a competing
// transaction blocks on the row lock and re-evaluates the predicate against the
// committed row, so after one transition lands every racing one matches zero
// rows and is refused.
func (r *Postgres) TransitionOrderStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus, from ...domain.OrderStatus) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	res, err := r.q(ctx).ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`,
		to, id, pq.Array(states))
	if err != nil {
		return fmt.Errorf("transition order status: %w", mapConflict(err))
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}

	var exists bool
	if err := r.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("classify transition failure: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrOrderStateConflict
}

func (r *Postgres) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	res, err := r.q(ctx).ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", mapConflict(err))
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
