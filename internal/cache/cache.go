package cache

import (
	"context"
	"sync"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

// LastTransactionCache remembers the most recently committed transaction so
// the receipt can be reprinted without scanning history.
type LastTransactionCache interface {
	Get(ctx context.Context) (*domain.Transaction, bool, error)
	Set(ctx context.Context, tx domain.Transaction) error
}

type NoopLastTransactionCache struct{}

func (NoopLastTransactionCache) Get(_ context.Context) (*domain.Transaction, bool, error) {
	return nil, false, nil
}

func (NoopLastTransactionCache) Set(_ context.Context, _ domain.Transaction) error {
	return nil
}

// MemoryLastTransactionCache keeps the pointer in process memory.
type MemoryLastTransactionCache struct {
	mu sync.RWMutex
	tx *domain.Transaction
}

func (c *MemoryLastTransactionCache) Get(_ context.Context) (*domain.Transaction, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tx == nil {
		return nil, false, nil
	}
	clone := *c.tx
	clone.Items = append([]domain.TransactionItem(nil), c.tx.Items...)
	return &clone, true, nil
}

func (c *MemoryLastTransactionCache) Set(_ context.Context, tx domain.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx.Items = append([]domain.TransactionItem(nil), tx.Items...)
	c.tx = &tx
	return nil
}
