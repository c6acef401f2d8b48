package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aamamaludin23/electronkasir/internal/cache"
	"github.com/aamamaludin23/electronkasir/internal/config"
	"github.com/aamamaludin23/electronkasir/internal/events"
	"github.com/aamamaludin23/electronkasir/internal/httpapi"
	"github.com/aamamaludin23/electronkasir/internal/metrics"
	"github.com/aamamaludin23/electronkasir/internal/replication"
	"github.com/aamamaludin23/electronkasir/internal/service"
	"github.com/aamamaludin23/electronkasir/internal/store"
	"github.com/aamamaludin23/electronkasir/internal/store/memory"
	mongostore "github.com/aamamaludin23/electronkasir/internal/store/mongodb"
	pgstore "github.com/aamamaludin23/electronkasir/internal/store/postgres"
	"github.com/aamamaludin23/electronkasir/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 4)

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("record store unavailable", zap.String("backend", cfg.Backend()), zap.Error(err))
	}
	closers = append(closers, closeStore)

	var lastTx cache.LastTransactionCache = &cache.MemoryLastTransactionCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisLastTransactionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 24*time.Hour)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, keeping last transaction in memory", zap.Error(err))
		} else {
			lastTx = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis")
		}
	}

	var publisher events.Publisher = events.NewLogPublisher(logger.Named(log, "events"))
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn("amqp unavailable, logging events instead", zap.Error(err))
		} else {
			publisher = amqpPublisher
			closers = append(closers, amqpPublisher.Close)
			log.Info("events: amqp", zap.String("exchange", cfg.AMQPExchange))
		}
	}
	dispatcher := events.NewDispatcher(publisher, logger.Named(log, "events"), 256)
	// The dispatcher drains before the publisher is closed.
	closers = append([]func() error{dispatcher.Close}, closers...)

	m := metrics.New()
	svc := service.New(st, service.StaticSettings{
		TaxRatePercent:    cfg.TaxRatePercent,
		LowStockThreshold: cfg.LowStockThreshold,
		StoreName:         cfg.StoreName,
		Address:           cfg.StoreAddress,
		Phone:             cfg.StorePhone,
		ReceiptNotes:      cfg.ReceiptNotes,
	}, service.Options{
		Cache:   lastTx,
		Events:  dispatcher,
		Metrics: m,
		Logger:  logger.Named(log, "service"),
	})

	auth := httpapi.NewAuthManager(
		cfg.AuthSecret,
		time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute,
		cfg.ManagerPIN,
		store.NewUserDirectory(st.Users()),
		logger.Named(log, "auth"),
	)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       m,
		Logger:        logger.Named(log, "http"),
	})

	var scheduler *replication.Scheduler
	if cfg.SyncEndpoint != "" {
		replicator := replication.NewReplicator(st.Transactions(), replication.NewHTTPSink(cfg.SyncEndpoint, cfg.SyncToken), m, logger.Named(log, "replication"))
		scheduler = replication.NewScheduler(replicator, cfg.SyncSchedule, logger.Named(log, "replication"))
		if err := scheduler.Start(); err != nil {
			log.Fatal("invalid SYNC_SCHEDULE", zap.String("schedule", cfg.SyncSchedule), zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("electronkasir listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

type recordStore interface {
	store.Store
	Close() error
}

// openStore connects the configured backend. Durable backends are seeded with
// the default accounts and the walk-in customer on first start.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, func() error, error) {
	var st recordStore
	switch cfg.Backend() {
	case config.BackendPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st = pg
	case config.BackendMongoDB:
		mg, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		st = mg
	default:
		log.Info("repository", zap.String("backend", config.BackendMemory))
		mem := memory.NewSeeded(cfg.AdminPassword, cfg.CashierPassword)
		return mem, mem.Close, nil
	}

	log.Info("repository", zap.String("backend", cfg.Backend()))
	seeded, err := store.SeedUsers(ctx, st.Users(), cfg.AdminPassword, cfg.CashierPassword)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("seed users: %w", err)
	}
	if seeded {
		log.Info("seeded default accounts")
	}
	if err := store.EnsureWalkInCustomer(ctx, st.Customers()); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("ensure walk-in customer: %w", err)
	}
	return st, st.Close, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	if len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be set and at least 8 characters")
	}
	return nil
}

// validatePINStrength rejects repeated, sequential and commonly used PINs.
func validatePINStrength(pin string) error {
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return fmt.Errorf("PIN must contain digits only")
		}
	}

	common := map[string]bool{
		"121212": true, "112233": true, "123123": true, "159753": true, "147258": true,
	}
	if common[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	repeated := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return fmt.Errorf("repeated-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		step := int(pin[i]) - int(pin[i-1])
		if step != 1 {
			ascending = false
		}
		if step != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}
	return nil
}
