package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart holds the mutable pre-checkout state for one user. Prices are never
// snapshotted here; they are read live from the catalog at render and checkout
// time.
type Cart struct {
	ID        uuid.UUID
	UserID    string
	Lines     []CartLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine is one (product, variant) entry. At most one line exists per
// (ProductID, VariantID) pair in a cart; duplicate adds merge quantities.
type CartLine struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID int64
	VariantID *int64
	Quantity  int
	AddedAt   time.Time
}

// GuestLine is one entry of a client-held guest cart, handed to the merge
// engine wholesale at login.
type GuestLine struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// MergeWarning reports a guest line that was skipped or clamped during merge.
type MergeWarning struct {
	ProductID   int64  `json:"product_id"`
	VariantID   *int64 `json:"variant_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Reason      string `json:"reason"`
}

// FindLine returns the cart line matching the (product, variant) pair, or nil.
func (c *Cart) FindLine(productID int64, variantID *int64) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID && sameVariant(c.Lines[i].VariantID, variantID) {
			return &c.Lines[i]
		}
	}
	return nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

func sameVariant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
