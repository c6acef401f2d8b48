package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

func TestMemoryLastTransactionCacheKeepsLatest(t *testing.T) {
	c := &MemoryLastTransactionCache{}
	ctx := context.Background()

	if _, ok, _ := c.Get(ctx); ok {
		t.Fatalf("expected empty cache")
	}

	_ = c.Set(ctx, domain.Transaction{ID: "tx-1"})
	_ = c.Set(ctx, domain.Transaction{ID: "tx-2", Items: []domain.TransactionItem{{ItemID: "a", Quantity: 1}}})

	tx, ok, err := c.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if tx.ID != "tx-2" {
		t.Fatalf("expected tx-2, got %s", tx.ID)
	}
	tx.Items[0].Quantity = 99

	again, _, _ := c.Get(ctx)
	if again.Items[0].Quantity != 1 {
		t.Fatalf("cached transaction leaked mutation")
	}
}

func TestRedisLastTransactionCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("ELECTRONKASIR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set ELECTRONKASIR_TEST_REDIS_ADDR to run redis integration test")
	}

	c := NewRedisLastTransactionCache(addr, "", 0, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := c.Set(ctx, domain.Transaction{ID: "tx-redis", Total: 222000}); err != nil {
		t.Fatalf("set: %v", err)
	}
	tx, ok, err := c.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if tx.ID != "tx-redis" || tx.Total != 222000 {
		t.Fatalf("unexpected cached transaction: %+v", tx)
	}
}
