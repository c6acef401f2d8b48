package store

import (
	"context"
	"errors"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Record is anything stored by id.
type Record interface {
	RecordID() string
}

// Repository is a typed record collection. List returns records in
// first-insert order.
type Repository[T Record] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, record T) error
	Delete(ctx context.Context, id string) error
}

// Patch is a set of record writes that must land together.
type Patch struct {
	Items                 []domain.Item
	Customers             []domain.Customer
	Transactions          []domain.Transaction
	DebtPayments          []domain.DebtPayment
	Shifts                []domain.Shift
	DeletedTransactionIDs []string
}

func (p Patch) Empty() bool {
	return len(p.Items) == 0 &&
		len(p.Customers) == 0 &&
		len(p.Transactions) == 0 &&
		len(p.DebtPayments) == 0 &&
		len(p.Shifts) == 0 &&
		len(p.DeletedTransactionIDs) == 0
}

// Store exposes one repository per collection and an atomic multi-collection
// write. Apply either persists every write in the patch or none of them.
type Store interface {
	Items() Repository[domain.Item]
	Customers() Repository[domain.Customer]
	Transactions() Repository[domain.Transaction]
	DebtPayments() Repository[domain.DebtPayment]
	Shifts() Repository[domain.Shift]
	Users() Repository[domain.UserAccount]
	AuditLogs() Repository[domain.AuditLog]
	Apply(ctx context.Context, patch Patch) error
}

// Collection names shared by the document backed stores.
const (
	CollectionItems        = "items"
	CollectionCustomers    = "customers"
	CollectionTransactions = "transactions"
	CollectionDebtPayments = "debt_payments"
	CollectionShifts       = "shifts"
	CollectionUsers        = "users"
	CollectionAuditLogs    = "audit_logs"
)

// Write is one upsert or delete inside a patch, flattened for backends that
// store every collection the same way.
type Write struct {
	Collection string
	ID         string
	Record     any
	Delete     bool
}

// Writes flattens the patch in a stable order: items, customers, shifts,
// transactions, debt payments, then deletions.
func (p Patch) Writes() []Write {
	writes := make([]Write, 0, len(p.Items)+len(p.Customers)+len(p.Shifts)+len(p.Transactions)+len(p.DebtPayments)+len(p.DeletedTransactionIDs))
	for _, item := range p.Items {
		writes = append(writes, Write{Collection: CollectionItems, ID: item.ID, Record: item})
	}
	for _, customer := range p.Customers {
		writes = append(writes, Write{Collection: CollectionCustomers, ID: customer.ID, Record: customer})
	}
	for _, shift := range p.Shifts {
		writes = append(writes, Write{Collection: CollectionShifts, ID: shift.ID, Record: shift})
	}
	for _, tx := range p.Transactions {
		writes = append(writes, Write{Collection: CollectionTransactions, ID: tx.ID, Record: tx})
	}
	for _, payment := range p.DebtPayments {
		writes = append(writes, Write{Collection: CollectionDebtPayments, ID: payment.ID, Record: payment})
	}
	for _, id := range p.DeletedTransactionIDs {
		writes = append(writes, Write{Collection: CollectionTransactions, ID: id, Delete: true})
	}
	return writes
}
