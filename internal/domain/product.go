package domain

import "time"

// Product is a catalog entity. The core only reads it, except for the stock
// quantity, which is mutated exclusively through the repository's StockLedger.
type Product struct {
	ID        int64
	Name      string
	SKU       string
	Price     float64
	Quantity  int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Variant carries its own stock and an optional price override. When a cart
// line references a variant, stock and price resolve from the variant, never
// from the parent product.
type Variant struct {
	ID        int64
	ProductID int64
	Name      string
	SKU       string
	Price     *float64
	Quantity  int
}

// UnitPrice resolves the effective price for a (product, variant) pair.
func UnitPrice(p *Product, v *Variant) float64 {
	if v != nil && v.Price != nil {
		return *v.Price
	}
	return p.Price
}

// Stock resolves the available on-hand quantity for a (product, variant) pair.
func Stock(p *Product, v *Variant) int {
	if v != nil {
		return v.Quantity
	}
	return p.Quantity
}
