package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

func (r *Postgres) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	query := `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`

	var cart domain.Cart
	err := r.q(ctx).QueryRowContext(ctx, query, userID).Scan(
		&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart by user id: %w", err)
	}

	lines, err := r.cartLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Lines = lines
	return &cart, nil
}

func (r *Postgres) cartLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	query := `SELECT id, cart_id, product_id, variant_id, quantity, added_at
	          FROM cart_lines WHERE cart_id = $1 ORDER BY added_at`

	rows, err := r.q(ctx).QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.VariantID, &l.Quantity, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart line iteration: %w", err)
	}
	return lines, nil
}

func (r *Postgres) CreateCart(ctx context.Context, cart *domain.Cart) error {
	query := `INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1, $2, NOW(), NOW())`

	if _, err := r.q(ctx).ExecContext(ctx, query, cart.ID, cart.UserID); err != nil {
		if isUniqueViolation(err, "carts_user_id_key") {
			return ErrCartExists
		}
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

// UpsertLine writes the line's absolute quantity, merging on the
// (cart, product, variant) key. The caller decides the final quantity;
// duplicate-add summation and stock clamping happen in the service.
func (r *Postgres) UpsertLine(ctx context.Context, line *domain.CartLine) error {
	query := `INSERT INTO cart_lines (id, cart_id, product_id, variant_id, quantity, added_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())
	          ON CONFLICT (cart_id, product_id, (COALESCE(variant_id, 0)))
	          DO UPDATE SET quantity = EXCLUDED.quantity`

	if _, err := r.q(ctx).ExecContext(ctx, query,
		line.ID, line.CartID, line.ProductID, line.VariantID, line.Quantity); err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (r *Postgres) GetLine(ctx context.Context, lineID uuid.UUID) (*domain.CartLine, error) {
	query := `SELECT id, cart_id, product_id, variant_id, quantity, added_at
	          FROM cart_lines WHERE id = $1`

	var l domain.CartLine
	err := r.q(ctx).QueryRowContext(ctx, query, lineID).Scan(
		&l.ID, &l.CartID, &l.ProductID, &l.VariantID, &l.Quantity, &l.AddedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart line: %w", err)
	}
	return &l, nil
}

func (r *Postgres) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, qty int) error {
	query := `UPDATE cart_lines SET quantity = $1 WHERE id = $2`

	res, err := r.q(ctx).ExecContext(ctx, query, qty, lineID)
	if err != nil {
		return fmt.Errorf("update cart line quantity: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *Postgres) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *Postgres) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if _, err := r.q(ctx).ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *Postgres) GetAddress(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	query := `SELECT id, user_id, full_name, line1, line2, city, postal_code, country, phone
	          FROM addresses WHERE id = $1`

	var a domain.Address
	err := r.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.FullName, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.Country, &a.Phone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query address: %w", err)
	}
	return &a, nil
}
