package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	transactionsCommitted *prometheus.CounterVec
	salesAmount           *prometheus.CounterVec
	transactionEdits      prometheus.Counter
	stockWarnings         prometheus.Counter
	persistenceFailures   *prometheus.CounterVec
	shiftsClosed          prometheus.Counter
	replicated            *prometheus.CounterVec
	httpRequests          *prometheus.CounterVec
	httpDuration          *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transactionsCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "electronkasir_transactions_committed_total",
			Help: "Committed sales by payment method.",
		}, []string{"payment_method"}),
		salesAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "electronkasir_sales_amount_total",
			Help: "Sum of committed sale totals in currency units.",
		}, []string{"payment_method"}),
		transactionEdits: factory.NewCounter(prometheus.CounterOpts{
			Name: "electronkasir_transaction_edits_total",
			Help: "Edits applied to committed transactions.",
		}),
		stockWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "electronkasir_stock_warnings_total",
			Help: "Tiers that reached zero or negative stock after a sale or edit.",
		}),
		persistenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "electronkasir_persistence_failures_total",
			Help: "Atomic store writes that failed, by operation.",
		}, []string{"operation"}),
		shiftsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "electronkasir_shifts_closed_total",
			Help: "Closed shifts.",
		}),
		replicated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "electronkasir_replication_transactions_total",
			Help: "Transactions pushed to the replication endpoint, by outcome.",
		}, []string{"outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "electronkasir_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "electronkasir_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TransactionCommitted(paymentMethod string, total int64) {
	if m == nil {
		return
	}
	m.transactionsCommitted.WithLabelValues(paymentMethod).Inc()
	m.salesAmount.WithLabelValues(paymentMethod).Add(float64(total))
}

func (m *Metrics) TransactionEdited() {
	if m == nil {
		return
	}
	m.transactionEdits.Inc()
}

func (m *Metrics) StockWarnings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.stockWarnings.Add(float64(n))
}

func (m *Metrics) PersistenceFailure(operation string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) ShiftClosed() {
	if m == nil {
		return
	}
	m.shiftsClosed.Inc()
}

func (m *Metrics) Replicated(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.replicated.WithLabelValues(outcome).Add(float64(n))
}

// Middleware records count and latency for every request. route should be a
// low-cardinality label derived from the path.
func (m *Metrics) Middleware(route func(r *http.Request) string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		label := route(r)
		m.httpRequests.WithLabelValues(r.Method, label, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, label).Observe(time.Since(startedAt).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
