package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aamamaludin23/electronkasir/internal/cache"
	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/events"
	"github.com/aamamaludin23/electronkasir/internal/ledger"
	"github.com/aamamaludin23/electronkasir/internal/metrics"
	"github.com/aamamaludin23/electronkasir/internal/pricing"
	"github.com/aamamaludin23/electronkasir/internal/store"
	"github.com/aamamaludin23/electronkasir/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// SettingsProvider supplies the store-wide settings read at the start of
// each operation.
type SettingsProvider interface {
	Settings(ctx context.Context) (domain.Settings, error)
}

// StaticSettings serves a fixed settings value.
type StaticSettings domain.Settings

func (s StaticSettings) Settings(_ context.Context) (domain.Settings, error) {
	settings := domain.Settings(s)
	if settings.TaxRatePercent == 0 {
		settings.TaxRatePercent = pricing.DefaultTaxRatePercent
	}
	return settings, nil
}

type Options struct {
	Cache   cache.LastTransactionCache
	Events  *events.Dispatcher
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Service is the single-session settlement engine. Every mutating operation
// holds mu, reads snapshots from the store, computes the full outcome in
// memory and persists it with one Store.Apply call.
type Service struct {
	mu       sync.Mutex
	store    store.Store
	settings SettingsProvider
	lastTx   cache.LastTransactionCache
	events   *events.Dispatcher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func New(st store.Store, settings SettingsProvider, opts Options) *Service {
	if settings == nil {
		settings = StaticSettings{}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopLastTransactionCache{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Service{
		store:    st,
		settings: settings,
		lastTx:   opts.Cache,
		events:   opts.Events,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	return s.settings.Settings(ctx)
}

// persist applies the patch or reports ErrPersistence wrapping the cause.
func (s *Service) persist(ctx context.Context, operation string, patch store.Patch) error {
	if patch.Empty() {
		return nil
	}
	if err := s.store.Apply(ctx, patch); err != nil {
		s.metrics.PersistenceFailure(operation)
		s.logger.Error("atomic write failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrPersistence, operation, err)
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}
	s.logger.Info("audit",
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.String("actor", actor.Username),
		zap.String("detail", detail),
	)
	if err := s.store.AuditLogs().Save(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.String("entity_id", entityID), zap.Error(err))
	}
}

// ListAuditLogs returns the newest entries first.
func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	logs, err := s.store.AuditLogs().List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.AuditLog, 0, min(limit, len(logs)))
	for i := len(logs) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, logs[i])
	}
	return result, nil
}

func (s *Service) emitStockWarnings(warnings []ledger.StockWarning) {
	if len(warnings) == 0 {
		return
	}
	s.metrics.StockWarnings(len(warnings))
	for _, warning := range warnings {
		s.events.Emit(events.TypeStockLow, warning)
	}
}

func cashierName(ctx context.Context, requested string) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return ""
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}
