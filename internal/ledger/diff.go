package ledger

import "github.com/aamamaludin23/electronkasir/internal/domain"

type lineKey struct {
	itemID   string
	tierName string
}

// DiffStock returns the stock deltas that move inventory from the state
// after oldItems was sold to the state after newLines is sold instead.
// Quantities are summed per (item, tier) on both sides, so a key present on
// both sides yields old-new, one only in oldItems yields +old and one only
// in newLines yields -new. Zero deltas are omitted. Output order follows
// first appearance, old side first.
func DiffStock(oldItems []domain.TransactionItem, newLines []domain.CartLine) []StockDelta {
	order := make([]lineKey, 0, len(oldItems)+len(newLines))
	net := make(map[lineKey]int, len(oldItems)+len(newLines))

	add := func(key lineKey, qty int) {
		if _, ok := net[key]; !ok {
			order = append(order, key)
		}
		net[key] += qty
	}

	for _, item := range oldItems {
		add(lineKey{itemID: item.ItemID, tierName: item.PriceTier.UnitName}, item.Quantity)
	}
	for _, line := range newLines {
		add(lineKey{itemID: line.Item.ID, tierName: line.Tier.UnitName}, -line.Quantity)
	}

	deltas := make([]StockDelta, 0, len(order))
	for _, key := range order {
		if net[key] == 0 {
			continue
		}
		deltas = append(deltas, StockDelta{ItemID: key.itemID, TierName: key.tierName, Delta: net[key]})
	}
	return deltas
}

// SaleDeltas returns the deltas that remove lines from stock.
func SaleDeltas(lines []domain.CartLine) []StockDelta {
	return DiffStock(nil, lines)
}
