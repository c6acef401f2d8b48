package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/ledger"
	"github.com/aamamaludin23/electronkasir/internal/store"
	"github.com/aamamaludin23/electronkasir/internal/xid"
)

var ErrDuplicateBarcode = fmt.Errorf("%w: barcode already used", store.ErrInvalidTransaction)

// SaveItem creates or replaces an item. Stock on an existing tier is kept;
// stock only moves through sales, edits, receipts and opname.
func (s *Service) SaveItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item.Name = strings.TrimSpace(item.Name)
	item.CostUnit = strings.TrimSpace(item.CostUnit)
	if item.SaleStatus == "" {
		item.SaleStatus = domain.SaleStatusOnSale
	}
	if err := validateItem(item); err != nil {
		return domain.Item{}, err
	}

	items, err := s.store.Items().List(ctx)
	if err != nil {
		return domain.Item{}, err
	}

	creating := item.ID == ""
	if creating {
		item.ID = xid.New("item")
	}

	var existing *domain.Item
	for i := range items {
		other := items[i]
		if other.ID == item.ID {
			existing = &other
			continue
		}
		for _, tier := range item.Tiers {
			if tier.Barcode == "" {
				continue
			}
			for _, otherTier := range other.Tiers {
				if otherTier.Barcode == tier.Barcode {
					return domain.Item{}, fmt.Errorf("%w: %s on %s", ErrDuplicateBarcode, tier.Barcode, other.Name)
				}
			}
		}
	}
	if existing == nil && !creating {
		return domain.Item{}, store.ErrNotFound
	}

	item = ledger.CloneItem(item)
	for i := range item.Tiers {
		if existing == nil {
			continue
		}
		if current, ok := existing.Tier(item.Tiers[i].UnitName); ok {
			item.Tiers[i].Stock = current.Stock
		}
	}

	if err := s.persist(ctx, "save_item", store.Patch{Items: []domain.Item{item}}); err != nil {
		return domain.Item{}, err
	}
	s.logAudit(ctx, "item.save", "item", item.ID, item.Name)
	return item, nil
}

// DeleteItem removes an item. Items sold in a completed transaction stay,
// since editing that sale restores their stock. Held transactions that
// reference a deleted item can no longer be resumed.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.store.Transactions().List(ctx)
	if err != nil {
		return err
	}
	for _, tx := range txs {
		if tx.Status != domain.TxStatusCompleted {
			continue
		}
		for _, item := range tx.Items {
			if item.ItemID == id {
				return ErrItemInUse
			}
		}
	}

	if err := s.store.Items().Delete(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "item.delete", "item", id, "")
	return nil
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.Item, error) {
	return s.store.Items().Get(ctx, id)
}

// ListItems filters by a case-insensitive match on name, code or category.
func (s *Service) ListItems(ctx context.Context, query string) ([]domain.Item, error) {
	items, err := s.store.Items().List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items, nil
	}
	result := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), query) ||
			strings.Contains(strings.ToLower(item.Code), query) ||
			strings.Contains(strings.ToLower(item.Category), query) {
			result = append(result, item)
		}
	}
	return result, nil
}

// FindByBarcode returns the item and the tier carrying the barcode.
func (s *Service) FindByBarcode(ctx context.Context, barcode string) (domain.Item, domain.PriceTier, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Item{}, domain.PriceTier{}, store.ErrNotFound
	}
	items, err := s.store.Items().List(ctx)
	if err != nil {
		return domain.Item{}, domain.PriceTier{}, err
	}
	for _, item := range items {
		for _, tier := range item.Tiers {
			if tier.Barcode == barcode {
				return item, tier, nil
			}
		}
	}
	return domain.Item{}, domain.PriceTier{}, store.ErrNotFound
}

// SaveCustomer creates or updates a customer. Outstanding debt is owned by
// the debt ledger and is never taken from the request.
func (s *Service) SaveCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Email = strings.TrimSpace(customer.Email)
	if customer.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrInvalidTransaction)
	}

	if customer.ID == "" {
		customer.ID = xid.New("cust")
		customer.OutstandingDebt = 0
	} else {
		existing, err := s.store.Customers().Get(ctx, customer.ID)
		if err != nil {
			return domain.Customer{}, err
		}
		customer.OutstandingDebt = existing.OutstandingDebt
	}

	if err := s.persist(ctx, "save_customer", store.Patch{Customers: []domain.Customer{customer}}); err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer.save", "customer", customer.ID, customer.Name)
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	return s.store.Customers().Get(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.store.Customers().List(ctx)
}

// ReceiveStock adds delivered quantities to an item's tiers.
func (s *Service) ReceiveStock(ctx context.Context, req domain.StockInRequest) (domain.Item, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Item{}, err
	}

	deltas := make([]ledger.StockDelta, 0, len(req.Tiers))
	for _, tier := range req.Tiers {
		if tier.Quantity <= 0 {
			return domain.Item{}, ErrInvalidAmount
		}
		deltas = append(deltas, ledger.StockDelta{ItemID: req.ItemID, TierName: tier.TierName, Delta: tier.Quantity})
	}
	return s.adjustStock(ctx, "receive_stock", req.ItemID, deltas)
}

// StockOpname sets each counted tier to the physical count.
func (s *Service) StockOpname(ctx context.Context, req domain.StockOpnameRequest) (domain.Item, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Item{}, err
	}

	item, err := s.store.Items().Get(ctx, req.ItemID)
	if err != nil {
		return domain.Item{}, err
	}
	deltas := make([]ledger.StockDelta, 0, len(req.Counts))
	for _, count := range req.Counts {
		if count.Quantity < 0 {
			return domain.Item{}, ErrInvalidAmount
		}
		tier, ok := item.Tier(count.TierName)
		if !ok {
			return domain.Item{}, &ledger.StaleItemReferenceError{ItemID: item.ID, TierName: count.TierName}
		}
		deltas = append(deltas, ledger.StockDelta{ItemID: item.ID, TierName: tier.UnitName, Delta: count.Quantity - tier.Stock})
	}
	return s.adjustStock(ctx, "stock_opname", item.ID, deltas)
}

// LowStock lists items with a tier at or below the configured threshold.
func (s *Service) LowStock(ctx context.Context) ([]domain.Item, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Items().List(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.LowStock(items, settings.LowStockThreshold), nil
}

func (s *Service) adjustStock(ctx context.Context, operation string, itemID string, deltas []ledger.StockDelta) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.store.Items().List(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	_, changed, err := ledger.BulkApply(items, deltas)
	if err != nil {
		return domain.Item{}, err
	}
	if err := s.persist(ctx, operation, store.Patch{Items: changed}); err != nil {
		return domain.Item{}, err
	}
	s.logAudit(ctx, "item."+operation, "item", itemID, fmt.Sprintf("%d tier(s)", len(deltas)))

	if len(changed) == 0 {
		return s.store.Items().Get(ctx, itemID)
	}
	return changed[0], nil
}

func validateItem(item domain.Item) error {
	if item.Name == "" {
		return fmt.Errorf("%w: item name is required", store.ErrInvalidTransaction)
	}
	if item.SaleStatus != domain.SaleStatusOnSale && item.SaleStatus != domain.SaleStatusDiscontinued {
		return fmt.Errorf("%w: unknown sale status %q", store.ErrInvalidTransaction, item.SaleStatus)
	}
	if len(item.Tiers) == 0 {
		return fmt.Errorf("%w: item needs at least one price tier", store.ErrInvalidTransaction)
	}
	if item.CostUnit == "" {
		return fmt.Errorf("%w: cost unit is required", store.ErrInvalidTransaction)
	}

	var errs []error
	seen := make(map[string]bool, len(item.Tiers))
	barcodes := make(map[string]bool, len(item.Tiers))
	for _, tier := range item.Tiers {
		name := strings.TrimSpace(tier.UnitName)
		switch {
		case name == "":
			errs = append(errs, errors.New("tier unit name is required"))
		case seen[name]:
			errs = append(errs, fmt.Errorf("duplicate tier %q", name))
		}
		seen[name] = true
		if tier.Price <= 0 {
			errs = append(errs, fmt.Errorf("tier %q price must be positive", name))
		}
		if tier.ConversionFactor <= 0 {
			errs = append(errs, fmt.Errorf("tier %q conversion factor must be positive", name))
		}
		if tier.Barcode != "" {
			if barcodes[tier.Barcode] {
				errs = append(errs, fmt.Errorf("barcode %q repeated within item", tier.Barcode))
			}
			barcodes[tier.Barcode] = true
		}
		for _, level := range tier.WholesaleLevels {
			if level.MinQty <= 0 || level.Price <= 0 {
				errs = append(errs, fmt.Errorf("tier %q has an invalid wholesale level", name))
				break
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", store.ErrInvalidTransaction, errors.Join(errs...))
	}
	return nil
}
