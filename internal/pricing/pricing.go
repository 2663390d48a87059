// Package pricing computes plan quotes from a plan structure.
package pricing

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/schedule"
)

// Breakdown keys.
const (
	KeyPerDelivery    = "per_delivery"
	KeyDeliveries     = "deliveries"
	KeySubtotal       = "subtotal"
	KeyDeliveryFee    = "delivery_fee"
	KeySavingsPercent = "savings_percent"
	KeySavings        = "savings"
	KeyTotal          = "total"
)

var (
	// MinPerDelivery is the floor applied to the per-delivery budget.
	MinPerDelivery = decimal.RequireFromString("1.00")
	// DeliveryFee is charged on every delivery.
	DeliveryFee = decimal.RequireFromString("9.95")
)

// DiscountPercent is the upfront multi-year discount applied to the flowers subtotal.
func DiscountPercent(years int) int64 {
	switch {
	case years >= 4:
		return 15
	case years == 3:
		return 10
	case years == 2:
		return 5
	default:
		return 0
	}
}

// Quote prices a structure. The structure must be valid.
func Quote(s model.Structure) (model.PriceQuote, error) {
	if err := s.Validate(); err != nil {
		return model.PriceQuote{}, fmt.Errorf("quote: %w", err)
	}
	per := decimal.Max(s.Budget, MinPerDelivery).Round(2)
	n := schedule.Count(s.Frequency, s.Years)
	count := decimal.NewFromInt(int64(n))

	subtotal := per.Mul(count)
	pct := DiscountPercent(s.Years)
	savings := subtotal.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100)).Round(2)
	fee := DeliveryFee.Mul(count)
	total := subtotal.Sub(savings).Add(fee)

	return model.PriceQuote{
		Amount: total,
		Breakdown: map[string]string{
			KeyPerDelivery:    per.StringFixed(2),
			KeyDeliveries:     strconv.Itoa(n),
			KeySubtotal:       subtotal.StringFixed(2),
			KeyDeliveryFee:    fee.StringFixed(2),
			KeySavingsPercent: strconv.FormatInt(pct, 10),
			KeySavings:        savings.StringFixed(2),
			KeyTotal:          total.StringFixed(2),
		},
	}, nil
}
