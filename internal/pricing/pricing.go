// Package pricing computes order totals from live cart lines. Everything here
// is a pure function; tax and shipping are flat-rate by design.
package pricing

const (
	// TaxRate is applied to the subtotal.
	TaxRate = 0.18

	// FreeShippingThreshold is the subtotal at or above which shipping is waived.
	FreeShippingThreshold = 500.0

	// FlatShippingFee applies below the free-shipping threshold.
	FlatShippingFee = 50.0
)

// PricedLine is a cart line with its unit price resolved from the live catalog.
type PricedLine struct {
	ProductID int64
	VariantID *int64
	UnitPrice float64
	Quantity  int
}

// Totals is the checkout cost breakdown.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// DiscountFunc is the extension point for coupon/promotion logic. It receives
// the subtotal and the priced lines and returns the discount amount.
type DiscountFunc func(subtotal float64, lines []PricedLine) float64

// ZeroDiscount is the default: no discount applied.
func ZeroDiscount(float64, []PricedLine) float64 { return 0 }

// Subtotal sums unit price times quantity over all lines.
func Subtotal(lines []PricedLine) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.UnitPrice * float64(l.Quantity)
	}
	return sum
}

// Tax returns the flat-rate tax on a subtotal.
func Tax(subtotal float64) float64 {
	return subtotal * TaxRate
}

// Shipping returns the shipping fee for a subtotal.
func Shipping(subtotal float64) float64 {
	if FreeShippingEligible(subtotal) {
		return 0
	}
	return FlatShippingFee
}

// FreeShippingEligible reports whether the subtotal qualifies for free shipping.
func FreeShippingEligible(subtotal float64) bool {
	return subtotal >= FreeShippingThreshold
}

// Total combines the components: subtotal + tax + shipping - discount.
func Total(subtotal, tax, shipping, discount float64) float64 {
	return subtotal + tax + shipping - discount
}

// Quote prices a set of lines with the given discount hook.
func Quote(lines []PricedLine, discount DiscountFunc) Totals {
	if discount == nil {
		discount = ZeroDiscount
	}
	subtotal := Subtotal(lines)
	tax := Tax(subtotal)
	shipping := Shipping(subtotal)
	d := discount(subtotal, lines)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: d,
		Total:    Total(subtotal, tax, shipping, d),
	}
}
