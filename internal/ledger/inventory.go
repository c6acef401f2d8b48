// Package ledger holds the pure bookkeeping rules for stock, customer debt
// and shift cash. Functions take snapshots and return new snapshots; nothing
// here touches storage.
package ledger

import (
	"fmt"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

// StockDelta is a signed stock change for one tier of one item.
type StockDelta struct {
	ItemID   string `json:"item_id"`
	TierName string `json:"tier_name"`
	Delta    int    `json:"delta"`
}

// StockWarning reports a tier whose stock ended at or below zero.
type StockWarning struct {
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name"`
	TierName string `json:"tier_name"`
	Stock    int    `json:"stock"`
}

// StaleItemReferenceError is returned when an item or tier referenced by a
// cart, held transaction or delta no longer exists.
type StaleItemReferenceError struct {
	ItemID   string
	TierName string
}

func (e *StaleItemReferenceError) Error() string {
	if e.TierName == "" {
		return fmt.Sprintf("stale item reference: item %q no longer exists", e.ItemID)
	}
	return fmt.Sprintf("stale item reference: item %q tier %q no longer exists", e.ItemID, e.TierName)
}

// ApplyDelta adds delta to one tier's stock in place. Stock is not clamped.
func ApplyDelta(item *domain.Item, tierName string, delta int) error {
	for i := range item.Tiers {
		if item.Tiers[i].UnitName == tierName {
			item.Tiers[i].Stock += delta
			return nil
		}
	}
	return &StaleItemReferenceError{ItemID: item.ID, TierName: tierName}
}

// BulkApply applies every delta to a copy of items. Either all deltas land
// and the new snapshot is returned, or the first stale reference is returned
// and items is left as it was. Only touched items are included in changed.
func BulkApply(items []domain.Item, deltas []StockDelta) (updated []domain.Item, changed []domain.Item, err error) {
	updated = CloneItems(items)
	index := make(map[string]int, len(updated))
	for i, item := range updated {
		index[item.ID] = i
	}

	touched := make([]int, 0, len(deltas))
	seen := make(map[int]bool, len(deltas))
	for _, delta := range deltas {
		pos, ok := index[delta.ItemID]
		if !ok {
			return nil, nil, &StaleItemReferenceError{ItemID: delta.ItemID, TierName: delta.TierName}
		}
		if err := ApplyDelta(&updated[pos], delta.TierName, delta.Delta); err != nil {
			return nil, nil, err
		}
		if !seen[pos] {
			seen[pos] = true
			touched = append(touched, pos)
		}
	}

	changed = make([]domain.Item, 0, len(touched))
	for _, pos := range touched {
		changed = append(changed, updated[pos])
	}
	return updated, changed, nil
}

// StockWarnings lists the tiers touched by deltas that sit at or below zero
// in items.
func StockWarnings(items []domain.Item, deltas []StockDelta) []StockWarning {
	byID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	warnings := make([]StockWarning, 0)
	reported := make(map[string]bool)
	for _, delta := range deltas {
		key := delta.ItemID + "\x00" + delta.TierName
		if reported[key] {
			continue
		}
		item, ok := byID[delta.ItemID]
		if !ok {
			continue
		}
		tier, ok := item.Tier(delta.TierName)
		if !ok || tier.Stock > 0 {
			continue
		}
		reported[key] = true
		warnings = append(warnings, StockWarning{
			ItemID:   item.ID,
			ItemName: item.Name,
			TierName: tier.UnitName,
			Stock:    tier.Stock,
		})
	}
	return warnings
}

// LowStock returns items with at least one tier at or below threshold.
func LowStock(items []domain.Item, threshold int) []domain.Item {
	result := make([]domain.Item, 0)
	for _, item := range items {
		for _, tier := range item.Tiers {
			if tier.Stock <= threshold {
				result = append(result, item)
				break
			}
		}
	}
	return result
}

func CloneItems(items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	for i, item := range items {
		out[i] = CloneItem(item)
	}
	return out
}

func CloneItem(item domain.Item) domain.Item {
	clone := item
	clone.Tiers = make([]domain.PriceTier, len(item.Tiers))
	for i, tier := range item.Tiers {
		clone.Tiers[i] = CloneTier(tier)
	}
	return clone
}

func CloneTier(tier domain.PriceTier) domain.PriceTier {
	clone := tier
	if tier.WholesaleLevels != nil {
		clone.WholesaleLevels = append([]domain.WholesaleLevel(nil), tier.WholesaleLevels...)
	}
	return clone
}
