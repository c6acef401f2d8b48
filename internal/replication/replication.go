// Package replication pushes committed transactions to an off-device
// endpoint. It only reads from the store; settlement never waits on it.
package replication

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/metrics"
	"github.com/aamamaludin23/electronkasir/internal/store"
)

// Sink receives batches of transactions. Implementations must treat a
// transaction id as an idempotency key.
type Sink interface {
	Push(ctx context.Context, transactions []domain.Transaction) error
}

// HTTPSink is a resty-backed Sink that PUTs batches as JSON.
type HTTPSink struct {
	httpClient *resty.Client
}

type batchRequest struct {
	Transactions []domain.Transaction `json:"transactions"`
}

type apiError struct {
	Error string `json:"error"`
}

func NewHTTPSink(baseURL string, token string) *HTTPSink {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPSink{httpClient: client}
}

func (s *HTTPSink) Push(ctx context.Context, transactions []domain.Transaction) error {
	apiErr := new(apiError)
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(batchRequest{Transactions: transactions}).
		SetError(apiErr).
		Put("/transactions")
	if err != nil {
		return fmt.Errorf("push transactions: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("replication endpoint error: status=%d, message=%s", resp.StatusCode(), apiErr.Error)
	}
	return nil
}

// Replicator tracks which transaction versions the sink already has and
// pushes only new or changed completed transactions.
type Replicator struct {
	transactions store.Repository[domain.Transaction]
	sink         Sink
	metrics      *metrics.Metrics
	logger       *zap.Logger
	batchSize    int

	mu     sync.Mutex
	synced map[string][32]byte
}

func NewReplicator(transactions store.Repository[domain.Transaction], sink Sink, m *metrics.Metrics, logger *zap.Logger) *Replicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replicator{
		transactions: transactions,
		sink:         sink,
		metrics:      m,
		logger:       logger,
		batchSize:    100,
		synced:       make(map[string][32]byte),
	}
}

// SyncOnce pushes every pending change and returns how many transactions
// were accepted by the sink.
func (r *Replicator) SyncOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.transactions.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	pending := make([]domain.Transaction, 0)
	digests := make(map[string][32]byte)
	for _, tx := range all {
		if tx.Status != domain.TxStatusCompleted {
			continue
		}
		digest, err := fingerprint(tx)
		if err != nil {
			return 0, err
		}
		if prev, ok := r.synced[tx.ID]; ok && prev == digest {
			continue
		}
		digests[tx.ID] = digest
		pending = append(pending, tx)
	}

	pushed := 0
	for start := 0; start < len(pending); start += r.batchSize {
		end := min(start+r.batchSize, len(pending))
		batch := pending[start:end]
		if err := r.sink.Push(ctx, batch); err != nil {
			r.metrics.Replicated("failed", len(batch))
			return pushed, err
		}
		for _, tx := range batch {
			r.synced[tx.ID] = digests[tx.ID]
		}
		pushed += len(batch)
		r.metrics.Replicated("ok", len(batch))
	}
	return pushed, nil
}

func fingerprint(tx domain.Transaction) ([32]byte, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode transaction %s: %w", tx.ID, err)
	}
	return sha256.Sum256(raw), nil
}
