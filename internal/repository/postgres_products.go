package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

func (r *Postgres) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT id, name, sku, price, quantity, is_active, created_at, updated_at
	          FROM products WHERE id = $1`

	var p domain.Product
	err := r.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SKU, &p.Price, &p.Quantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return &p, nil
}

func (r *Postgres) GetVariant(ctx context.Context, productID, variantID int64) (*domain.Variant, error) {
	query := `SELECT id, product_id, name, sku, price, quantity
	          FROM variants WHERE id = $1 AND product_id = $2`

	var v domain.Variant
	err := r.q(ctx).QueryRowContext(ctx, query, variantID, productID).Scan(
		&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.Quantity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query variant by id: %w", err)
	}
	return &v, nil
}

// Reserve decrements stock only when enough remains, in one statement, so two
// concurrent checkouts against the last unit cannot both succeed. A
// read-then-write sequence here would be a race.
func (r *Postgres) Reserve(ctx context.Context, productID int64, variantID *int64, qty int) error {
	var res sql.Result
	var err error

	if variantID != nil {
		query := `UPDATE variants v SET quantity = v.quantity - $1
		          FROM products p
		          WHERE v.id = $2 AND v.product_id = p.id AND v.product_id = $3
		            AND p.is_active AND v.quantity >= $1`
		res, err = r.q(ctx).ExecContext(ctx, query, qty, *variantID, productID)
	} else {
		query := `UPDATE products SET quantity = quantity - $1, updated_at = NOW()
		          WHERE id = $2 AND is_active AND quantity >= $1`
		res, err = r.q(ctx).ExecContext(ctx, query, qty, productID)
	}
	if err != nil {
		return fmt.Errorf("reserve stock: %w", mapConflict(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve stock rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	return r.classifyReserveFailure(ctx, productID, variantID)
}

// classifyReserveFailure distinguishes why the conditional decrement matched
// nothing: missing product/variant, inactive product, or not enough stock.
func (r *Postgres) classifyReserveFailure(ctx context.Context, productID int64, variantID *int64) error {
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return ErrProductInactive
	}
	if variantID != nil {
		if _, err := r.GetVariant(ctx, productID, *variantID); err != nil {
			return err
		}
	}
	return ErrInsufficientStock
}

// Release credits stock back unconditionally. Crediting a product the catalog
// has since deleted is a no-op.
func (r *Postgres) Release(ctx context.Context, productID int64, variantID *int64, qty int) error {
	var err error
	if variantID != nil {
		query := `UPDATE variants SET quantity = quantity + $1 WHERE id = $2 AND product_id = $3`
		_, err = r.q(ctx).ExecContext(ctx, query, qty, *variantID, productID)
	} else {
		query := `UPDATE products SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2`
		_, err = r.q(ctx).ExecContext(ctx, query, qty, productID)
	}
	if err != nil {
		return fmt.Errorf("release stock: %w", mapConflict(err))
	}
	return nil
}

func (r *Postgres) Available(ctx context.Context, productID int64, variantID *int64) (int, error) {
	var qty int
	var err error
	if variantID != nil {
		query := `SELECT quantity FROM variants WHERE id = $1 AND product_id = $2`
		err = r.q(ctx).QueryRowContext(ctx, query, *variantID, productID).Scan(&qty)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrVariantNotFound
		}
	} else {
		query := `SELECT quantity FROM products WHERE id = $1`
		err = r.q(ctx).QueryRowContext(ctx, query, productID).Scan(&qty)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
	}
	if err != nil {
		return 0, fmt.Errorf("query available stock: %w", err)
	}
	return qty, nil
}
