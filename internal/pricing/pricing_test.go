package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotal(t *testing.T) {
	assert.Equal(t, 1180.0, Total(1000, 180, 0, 0))
}

func TestShipping_BelowThreshold(t *testing.T) {
	assert.Equal(t, 50.0, Shipping(400))
}

func TestShipping_AtAndAboveThreshold(t *testing.T) {
	assert.Equal(t, 0.0, Shipping(500))
	assert.Equal(t, 0.0, Shipping(600))
}

func TestQuote(t *testing.T) {
	lines := []PricedLine{
		{ProductID: 1, UnitPrice: 300, Quantity: 2},
		{ProductID: 2, UnitPrice: 400, Quantity: 1},
	}

	got := Quote(lines, nil)

	assert.Equal(t, 1000.0, got.Subtotal)
	assert.Equal(t, 180.0, got.Tax)
	assert.Equal(t, 0.0, got.Shipping)
	assert.Equal(t, 0.0, got.Discount)
	assert.Equal(t, 1180.0, got.Total)
}

func TestQuote_FlatShippingBelowThreshold(t *testing.T) {
	lines := []PricedLine{{ProductID: 1, UnitPrice: 200, Quantity: 2}}

	got := Quote(lines, ZeroDiscount)

	assert.Equal(t, 400.0, got.Subtotal)
	assert.Equal(t, 50.0, got.Shipping)
	assert.Equal(t, 400.0+72.0+50.0, got.Total)
}

func TestQuote_DiscountHook(t *testing.T) {
	lines := []PricedLine{{ProductID: 1, UnitPrice: 500, Quantity: 2}}
	tenPercent := func(subtotal float64, _ []PricedLine) float64 { return subtotal * 0.1 }

	got := Quote(lines, tenPercent)

	assert.Equal(t, 100.0, got.Discount)
	assert.Equal(t, 1000.0+180.0-100.0, got.Total)
}

func TestFreeShippingEligible(t *testing.T) {
	assert.False(t, FreeShippingEligible(499.99))
	assert.True(t, FreeShippingEligible(500))
}
