package mongodb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/store"
)

func TestRepositoryRoundTripAndApply(t *testing.T) {
	uri := os.Getenv("ELECTRONKASIR_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("set ELECTRONKASIR_TEST_MONGODB_URI (replica set) to run mongodb integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := fmt.Sprintf("electronkasir_it_%d", time.Now().UnixNano())
	s, err := New(ctx, uri, dbName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close()
	})

	for _, id := range []string{"b", "a"} {
		require.NoError(t, s.Customers().Save(ctx, domain.Customer{ID: id, Name: id}))
	}
	customers, err := s.Customers().List(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	require.Equal(t, "b", customers[0].ID)

	end := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.Apply(ctx, store.Patch{
		Customers: []domain.Customer{{ID: "a", Name: "a", OutstandingDebt: 5000}},
		Shifts:    []domain.Shift{{ID: "shift-1", Status: domain.ShiftStatusClosed, EndTime: &end}},
	}))

	customer, err := s.Customers().Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(5000), customer.OutstandingDebt)

	shift, err := s.Shifts().Get(ctx, "shift-1")
	require.NoError(t, err)
	require.NotNil(t, shift.EndTime)
	require.True(t, end.Equal(*shift.EndTime))

	err = s.Apply(ctx, store.Patch{
		Customers:             []domain.Customer{{ID: "c", Name: "c"}},
		DeletedTransactionIDs: []string{"missing"},
	})
	require.True(t, errors.Is(err, store.ErrNotFound))
	_, err = s.Customers().Get(ctx, "c")
	require.True(t, errors.Is(err, store.ErrNotFound))
}
