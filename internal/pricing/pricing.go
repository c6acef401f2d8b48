// Package pricing resolves wholesale unit prices and turns a cart into a
// priced quote. Everything here is pure and works on integer currency units.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

// DefaultTaxRatePercent is used when settings carry no rate.
const DefaultTaxRatePercent = 11.0

type Quote struct {
	Subtotal  int64 `json:"subtotal"`
	Discount  int64 `json:"discount"`
	OtherFees int64 `json:"other_fees"`
	Tax       int64 `json:"tax"`
	Total     int64 `json:"total"`
}

// ResolveUnitPrice returns the price of the wholesale level with the largest
// MinQty not exceeding qty, or the tier's base price when none qualifies.
// Levels sharing a MinQty resolve to the one listed first on the tier.
func ResolveUnitPrice(tier domain.PriceTier, qty int) int64 {
	if len(tier.WholesaleLevels) == 0 {
		return tier.Price
	}

	levels := make([]domain.WholesaleLevel, len(tier.WholesaleLevels))
	copy(levels, tier.WholesaleLevels)
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].MinQty > levels[j].MinQty
	})

	for _, level := range levels {
		if qty >= level.MinQty {
			return level.Price
		}
	}
	return tier.Price
}

func LineTotal(line domain.CartLine) int64 {
	return ResolveUnitPrice(line.Tier, line.Quantity) * int64(line.Quantity)
}

func Subtotal(lines []domain.CartLine) int64 {
	subtotal := int64(0)
	for _, line := range lines {
		subtotal += LineTotal(line)
	}
	return subtotal
}

// Tax applies taxRatePercent to base and rounds half away from zero to a
// whole currency unit.
func Tax(base int64, taxRatePercent float64) int64 {
	if base == 0 || taxRatePercent == 0 {
		return 0
	}
	rate := decimal.NewFromFloat(taxRatePercent).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(base).Mul(rate).Round(0).IntPart()
}

// Calculate prices a cart. Tax applies to subtotal minus discount; other fees
// are added after tax and are never taxed.
func Calculate(lines []domain.CartLine, discount int64, otherFees int64, taxRatePercent float64) Quote {
	subtotal := Subtotal(lines)
	tax := Tax(subtotal-discount, taxRatePercent)

	return Quote{
		Subtotal:  subtotal,
		Discount:  discount,
		OtherFees: otherFees,
		Tax:       tax,
		Total:     subtotal - discount + otherFees + tax,
	}
}

// QuoteItems reprices committed transaction items from their tier
// snapshots.
func QuoteItems(items []domain.TransactionItem, discount int64, otherFees int64, taxRatePercent float64) Quote {
	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.CartLine{
			Item:     domain.Item{ID: item.ItemID, Name: item.Name},
			Tier:     item.PriceTier,
			Quantity: item.Quantity,
		})
	}
	return Calculate(lines, discount, otherFees, taxRatePercent)
}
