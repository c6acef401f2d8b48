package replication

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/store/memory"
)

type receivingServer struct {
	mu      sync.Mutex
	batches [][]domain.Transaction
	fail    bool
}

func (s *receivingServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "Bearer sync-token", r.Header.Get("Authorization"))

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"maintenance"}`))
			return
		}
		var body batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.batches = append(s.batches, body.Transactions)
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestSyncOncePushesOnlyNewOrChangedCompletedTransactions(t *testing.T) {
	srv := &receivingServer{}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Transactions().Save(ctx, domain.Transaction{ID: "tx-1", Status: domain.TxStatusCompleted, Total: 1000}))
	require.NoError(t, s.Transactions().Save(ctx, domain.Transaction{ID: "tx-held", Status: domain.TxStatusPending}))

	r := NewReplicator(s.Transactions(), NewHTTPSink(ts.URL, "sync-token"), nil, nil)

	pushed, err := r.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pushed)

	pushed, err = r.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pushed)

	require.NoError(t, s.Transactions().Save(ctx, domain.Transaction{ID: "tx-1", Status: domain.TxStatusCompleted, Total: 800}))
	pushed, err = r.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pushed)

	require.Len(t, srv.batches, 2)
	assert.Equal(t, int64(800), srv.batches[1][0].Total)
}

func TestSyncOnceKeepsPendingOnSinkFailure(t *testing.T) {
	srv := &receivingServer{fail: true}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Transactions().Save(ctx, domain.Transaction{ID: "tx-1", Status: domain.TxStatusCompleted}))

	r := NewReplicator(s.Transactions(), NewHTTPSink(ts.URL, "sync-token"), nil, nil)
	_, err := r.SyncOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance")

	srv.mu.Lock()
	srv.fail = false
	srv.mu.Unlock()

	pushed, err := r.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pushed)
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	sched := NewScheduler(NewReplicator(memory.New().Transactions(), nil, nil, nil), "not a cron", nil)
	assert.Error(t, sched.Start())
}
