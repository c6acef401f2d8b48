package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/ledger"
	"github.com/aamamaludin23/electronkasir/internal/store"
)

// Store keeps every collection in process memory behind one lock, so a
// patch is applied atomically with respect to all readers.
type Store struct {
	mu           sync.RWMutex
	items        *table[domain.Item]
	customers    *table[domain.Customer]
	transactions *table[domain.Transaction]
	debtPayments *table[domain.DebtPayment]
	shifts       *table[domain.Shift]
	users        *table[domain.UserAccount]
	auditLogs    *table[domain.AuditLog]
}

func New() *Store {
	s := &Store{}
	s.items = newTable(&s.mu, ledger.CloneItem)
	s.customers = newTable(&s.mu, identity[domain.Customer])
	s.transactions = newTable(&s.mu, cloneTransaction)
	s.debtPayments = newTable(&s.mu, identity[domain.DebtPayment])
	s.shifts = newTable(&s.mu, cloneShift)
	s.users = newTable(&s.mu, identity[domain.UserAccount])
	s.auditLogs = newTable(&s.mu, identity[domain.AuditLog])
	return s
}

// NewSeeded returns a store holding a small demo catalog, the walk-in
// customer and the default admin/cashier accounts.
func NewSeeded(adminPassword string, cashierPassword string) *Store {
	s := New()

	for _, item := range seedItems() {
		s.items.put(item)
	}
	s.customers.put(domain.Customer{ID: domain.WalkInCustomerID, Name: "Walk-in"})
	s.customers.put(domain.Customer{ID: "cust-budi", Name: "Budi Santoso", Phone: "081234567890"})

	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPassword, domain.RoleAdmin},
		{"cashier", cashierPassword, domain.RoleCashier},
	} {
		if u.password == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			panic(fmt.Sprintf("memory store: hash seed password for %s: %v", u.username, err))
		}
		s.users.put(domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		})
	}

	return s
}

func seedItems() []domain.Item {
	return []domain.Item{
		{
			ID: "item-kopi", Name: "Kopi Sachet", Code: "KOPI-01", Category: "beverage", Brand: "Kapal",
			SaleStatus: domain.SaleStatusOnSale, CostPrice: 18000, CostUnit: "pcs",
			Tiers: []domain.PriceTier{
				{
					UnitName: "pcs", Price: 25000, Stock: 50, Barcode: "8990001000011", ConversionFactor: 1,
					WholesaleLevels: []domain.WholesaleLevel{{MinQty: 5, Price: 22000}, {MinQty: 10, Price: 20000}},
				},
				{UnitName: "box", Price: 280000, Stock: 6, Barcode: "8990001000028", ConversionFactor: 12},
			},
		},
		{
			ID: "item-gula", Name: "Gula 1kg", Code: "GULA-01", Category: "grocery",
			SaleStatus: domain.SaleStatusOnSale, CostPrice: 15000, CostUnit: "kg",
			Tiers: []domain.PriceTier{{UnitName: "kg", Price: 17400, Stock: 40, Barcode: "8990002000010", ConversionFactor: 1}},
		},
		{
			ID: "item-mie", Name: "Mie Goreng Instan", Code: "MIE-01", Category: "grocery", Brand: "Indo",
			SaleStatus: domain.SaleStatusOnSale, CostPrice: 2700, CostUnit: "pcs",
			Tiers: []domain.PriceTier{
				{
					UnitName: "pcs", Price: 3500, Stock: 120, Barcode: "8990003000019", ConversionFactor: 1,
					WholesaleLevels: []domain.WholesaleLevel{{MinQty: 40, Price: 3200}},
				},
				{UnitName: "dus", Price: 125000, Stock: 3, Barcode: "8990003000026", ConversionFactor: 40},
			},
		},
		{
			ID: "item-air", Name: "Air Mineral 600ml", Code: "AIR-01", Category: "beverage",
			SaleStatus: domain.SaleStatusOnSale, CostPrice: 2900, CostUnit: "pcs",
			Tiers: []domain.PriceTier{{UnitName: "pcs", Price: 3900, Stock: 4, Barcode: "8990004000018", ConversionFactor: 1}},
		},
	}
}

func (s *Store) Items() store.Repository[domain.Item]               { return s.items }
func (s *Store) Customers() store.Repository[domain.Customer]       { return s.customers }
func (s *Store) Transactions() store.Repository[domain.Transaction] { return s.transactions }
func (s *Store) DebtPayments() store.Repository[domain.DebtPayment] { return s.debtPayments }
func (s *Store) Shifts() store.Repository[domain.Shift]             { return s.shifts }
func (s *Store) Users() store.Repository[domain.UserAccount]        { return s.users }
func (s *Store) AuditLogs() store.Repository[domain.AuditLog]       { return s.auditLogs }

func (s *Store) Apply(ctx context.Context, patch store.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range patch.DeletedTransactionIDs {
		if _, ok := s.transactions.rows[id]; !ok {
			return fmt.Errorf("delete transaction %s: %w", id, store.ErrNotFound)
		}
	}

	for _, item := range patch.Items {
		s.items.put(item)
	}
	for _, customer := range patch.Customers {
		s.customers.put(customer)
	}
	for _, shift := range patch.Shifts {
		s.shifts.put(shift)
	}
	for _, tx := range patch.Transactions {
		s.transactions.put(tx)
	}
	for _, payment := range patch.DebtPayments {
		s.debtPayments.put(payment)
	}
	for _, id := range patch.DeletedTransactionIDs {
		s.transactions.remove(id)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

type table[T store.Record] struct {
	mu    *sync.RWMutex
	rows  map[string]T
	order []string
	clone func(T) T
}

func newTable[T store.Record](mu *sync.RWMutex, clone func(T) T) *table[T] {
	return &table[T]{mu: mu, rows: make(map[string]T), clone: clone}
}

func (t *table[T]) List(_ context.Context) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]T, 0, len(t.order))
	for _, id := range t.order {
		result = append(result, t.clone(t.rows[id]))
	}
	return result, nil
}

func (t *table[T]) Get(_ context.Context, id string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, store.ErrNotFound
	}
	return t.clone(row), nil
}

func (t *table[T]) Save(_ context.Context, record T) error {
	if record.RecordID() == "" {
		return store.ErrInvalidTransaction
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.put(record)
	return nil
}

func (t *table[T]) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[id]; !ok {
		return store.ErrNotFound
	}
	t.remove(id)
	return nil
}

// put and remove expect the caller to hold the write lock.
func (t *table[T]) put(record T) {
	id := record.RecordID()
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = t.clone(record)
}

func (t *table[T]) remove(id string) {
	delete(t.rows, id)
	if idx := slices.Index(t.order, id); idx >= 0 {
		t.order = slices.Delete(t.order, idx, idx+1)
	}
}

func identity[T any](v T) T {
	return v
}

func cloneTransaction(src domain.Transaction) domain.Transaction {
	clone := src
	clone.Items = make([]domain.TransactionItem, len(src.Items))
	for i, item := range src.Items {
		clone.Items[i] = item
		clone.Items[i].PriceTier = ledger.CloneTier(item.PriceTier)
	}
	return clone
}

func cloneShift(src domain.Shift) domain.Shift {
	clone := src
	clone.Expenses = append([]domain.Expense(nil), src.Expenses...)
	if src.EndTime != nil {
		end := *src.EndTime
		clone.EndTime = &end
	}
	return clone
}
