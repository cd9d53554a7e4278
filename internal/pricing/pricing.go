package pricing

import (
	"math"

	"pasar/internal/apperrors"
)

const (
	// Orders above this items total ship for free.
	freeShippingThreshold = 100.0
	flatShippingPrice     = 10.0
	taxRate               = 0.15
)

// Line is one product/quantity pair with its server-resolved unit price.
type Line struct {
	UnitPrice float64
	Qty       int
}

// Totals is the full price breakdown of an order.
type Totals struct {
	ItemsPrice    float64 `json:"items_price"`
	ShippingPrice float64 `json:"shipping_price"`
	TaxPrice      float64 `json:"tax_price"`
	TotalPrice    float64 `json:"total_price"`
}

// Compute calculates the price breakdown for a set of lines. It is pure: no
// I/O, same input always yields the same output. The whole computation fails
// on an empty list or any negative price/quantity; there are no partial totals.
func Compute(lines []Line) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, apperrors.Validation("order must contain at least one item")
	}

	var itemsPrice float64
	for _, line := range lines {
		if line.UnitPrice < 0 {
			return Totals{}, apperrors.Validation("unit price must not be negative")
		}
		if line.Qty < 0 {
			return Totals{}, apperrors.Validation("quantity must not be negative")
		}
		itemsPrice += line.UnitPrice * float64(line.Qty)
	}
	itemsPrice = round2(itemsPrice)

	shippingPrice := flatShippingPrice
	if itemsPrice > freeShippingThreshold {
		shippingPrice = 0
	}

	taxPrice := round2(itemsPrice * taxRate)
	totalPrice := round2(itemsPrice + shippingPrice + taxPrice)

	return Totals{
		ItemsPrice:    itemsPrice,
		ShippingPrice: shippingPrice,
		TaxPrice:      taxPrice,
		TotalPrice:    totalPrice,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
