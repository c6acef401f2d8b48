package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

func coffeeTier() domain.PriceTier {
	return domain.PriceTier{
		UnitName:         "pcs",
		Price:            25000,
		Stock:            50,
		ConversionFactor: 1,
		WholesaleLevels: []domain.WholesaleLevel{
			{MinQty: 5, Price: 22000},
			{MinQty: 10, Price: 20000},
		},
	}
}

func TestResolveUnitPricePicksLargestQualifyingLevel(t *testing.T) {
	tier := coffeeTier()

	assert.Equal(t, int64(25000), ResolveUnitPrice(tier, 1))
	assert.Equal(t, int64(25000), ResolveUnitPrice(tier, 4))
	assert.Equal(t, int64(22000), ResolveUnitPrice(tier, 5))
	assert.Equal(t, int64(22000), ResolveUnitPrice(tier, 9))
	assert.Equal(t, int64(20000), ResolveUnitPrice(tier, 10))
	assert.Equal(t, int64(20000), ResolveUnitPrice(tier, 250))
}

func TestResolveUnitPriceWithoutLevelsUsesTierPrice(t *testing.T) {
	tier := domain.PriceTier{UnitName: "box", Price: 120000, ConversionFactor: 12}
	assert.Equal(t, int64(120000), ResolveUnitPrice(tier, 30))
}

func TestResolveUnitPriceTiePrefersFirstListedLevel(t *testing.T) {
	tier := domain.PriceTier{
		UnitName: "pcs",
		Price:    10000,
		WholesaleLevels: []domain.WholesaleLevel{
			{MinQty: 3, Price: 9000},
			{MinQty: 3, Price: 8500},
		},
	}
	assert.Equal(t, int64(9000), ResolveUnitPrice(tier, 3))
}

func TestResolveUnitPriceDoesNotReorderTier(t *testing.T) {
	tier := coffeeTier()
	_ = ResolveUnitPrice(tier, 10)
	require.Len(t, tier.WholesaleLevels, 2)
	assert.Equal(t, 5, tier.WholesaleLevels[0].MinQty)
}

func TestCalculateCoffeeWholesaleScenario(t *testing.T) {
	lines := []domain.CartLine{{
		Item:     domain.Item{ID: "coffee", Name: "Coffee"},
		Tier:     coffeeTier(),
		Quantity: 10,
	}}

	quote := Calculate(lines, 0, 0, DefaultTaxRatePercent)

	assert.Equal(t, int64(200000), quote.Subtotal)
	assert.Equal(t, int64(22000), quote.Tax)
	assert.Equal(t, int64(222000), quote.Total)
}

func TestCalculateTaxesAfterDiscountAndBeforeFees(t *testing.T) {
	lines := []domain.CartLine{{
		Item:     domain.Item{ID: "tea"},
		Tier:     domain.PriceTier{UnitName: "pcs", Price: 10000},
		Quantity: 3,
	}}

	quote := Calculate(lines, 5000, 2000, 10)

	assert.Equal(t, int64(30000), quote.Subtotal)
	assert.Equal(t, int64(2500), quote.Tax)
	assert.Equal(t, int64(30000-5000+2000+2500), quote.Total)
}

func TestTaxRoundsToWholeUnit(t *testing.T) {
	assert.Equal(t, int64(2), Tax(15, 11)) // 1.65
	assert.Equal(t, int64(1), Tax(13, 11)) // 1.43
	assert.Equal(t, int64(0), Tax(1000, 0))
}

func TestQuoteItemsUsesSnapshotTiers(t *testing.T) {
	items := []domain.TransactionItem{{
		ItemID:    "coffee",
		Name:      "Coffee",
		Quantity:  10,
		PriceTier: coffeeTier(),
	}}

	quote := QuoteItems(items, 0, 0, DefaultTaxRatePercent)
	assert.Equal(t, int64(222000), quote.Total)
}
