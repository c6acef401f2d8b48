// Package events carries business notifications (committed sales, edits,
// low stock, closed shifts) out of the settlement path. Delivery is
// asynchronous and best effort: a slow or broken broker never blocks a sale.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	TypeTransactionCommitted = "transaction.committed"
	TypeTransactionEdited    = "transaction.edited"
	TypeTransactionHeld      = "transaction.held"
	TypeStockLow             = "stock.low"
	TypeDebtPaid             = "debt.paid"
	TypeShiftClosed          = "shift.closed"
)

type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	level := zap.InfoLevel
	if event.Type == TypeStockLow {
		level = zap.WarnLevel
	}
	p.logger.Check(level, "business event").Write(
		zap.String("type", event.Type),
		zap.Time("occurred_at", event.OccurredAt),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// Dispatcher queues events and hands them to a Publisher from a single
// background goroutine. Emit never blocks; events are dropped with a warning
// when the queue is full.
type Dispatcher struct {
	publisher Publisher
	logger    *zap.Logger
	queue     chan Event
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(publisher Publisher, logger *zap.Logger, buffer int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer < 1 {
		buffer = 256
	}
	d := &Dispatcher{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan Event, buffer),
		timeout:   5 * time.Second,
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Emit(eventType string, payload any) {
	if d == nil {
		return
	}
	event := Event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("event queue full, dropping event", zap.String("type", eventType))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.publisher.Publish(ctx, event); err != nil {
			d.logger.Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
	return nil
}
