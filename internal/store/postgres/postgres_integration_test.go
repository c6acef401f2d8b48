package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("ELECTRONKASIR_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ELECTRONKASIR_TEST_DATABASE_URL to run postgres integration test")
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestApplyCommitsPatchAtomically(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	itemID := fmt.Sprintf("item-it-%d", stamp)
	txID := fmt.Sprintf("tx-it-%d", stamp)
	heldID := fmt.Sprintf("tx-held-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ANY($1)`, []string{itemID, txID, heldID})
	})

	item := domain.Item{
		ID:         itemID,
		Name:       "Produk IT",
		SaleStatus: domain.SaleStatusOnSale,
		CostUnit:   "pcs",
		Tiers:      []domain.PriceTier{{UnitName: "pcs", Price: 12000, Stock: 10, ConversionFactor: 1}},
	}
	if err := s.Items().Save(ctx, item); err != nil {
		t.Fatalf("save item: %v", err)
	}
	if err := s.Transactions().Save(ctx, domain.Transaction{ID: heldID, Status: domain.TxStatusPending}); err != nil {
		t.Fatalf("save held: %v", err)
	}

	item.Tiers[0].Stock = 8
	err := s.Apply(ctx, store.Patch{
		Items:                 []domain.Item{item},
		Transactions:          []domain.Transaction{{ID: txID, Status: domain.TxStatusCompleted, Total: 24000}},
		DeletedTransactionIDs: []string{heldID},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.Items().Get(ctx, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Tiers[0].Stock != 8 {
		t.Fatalf("expected stock 8, got %d", got.Tiers[0].Stock)
	}
	if _, err := s.Transactions().Get(ctx, heldID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected held transaction to be deleted, got %v", err)
	}
}

func TestApplyRollsBackOnMissingDeletion(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	itemID := fmt.Sprintf("item-rb-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, itemID)
	})

	err := s.Apply(ctx, store.Patch{
		Items:                 []domain.Item{{ID: itemID, Name: "Rollback"}},
		DeletedTransactionIDs: []string{"tx-does-not-exist"},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Items().Get(ctx, itemID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected rollback of item write, got %v", err)
	}
}
