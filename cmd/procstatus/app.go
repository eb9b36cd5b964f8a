package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
	"github.com/matiasleandrokruk/procstatus/internal/infra/cache"
	"github.com/matiasleandrokruk/procstatus/internal/infra/config"
	"github.com/matiasleandrokruk/procstatus/internal/infra/eventbus"
	"github.com/matiasleandrokruk/procstatus/internal/infra/logging"
	"github.com/matiasleandrokruk/procstatus/internal/infra/sqlite"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *sql.DB
	registry *prometheus.Registry
	bus      *eventbus.Bus
	memory   *cache.Memory
	service  *recordstatus.Service
	closers  []func() error
}

// openApp opens and migrates the database and builds the record status
// service over the configured cache backend.
func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		bus:      eventbus.New(),
		memory:   cache.NewMemory(),
	}
	a.closers = append(a.closers, func() error {
		a.bus.Close()
		return nil
	})
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.DBPath != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	a.db, err = sqlite.NewDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.db.Close)

	applied, err := sqlite.MigrateUp(ctx, a.db)
	if err != nil {
		a.close()
		return nil, err
	}
	for _, m := range applied {
		logger.Info("migration applied", zap.Int("version", m.Version), zap.String("name", m.Name))
	}

	shared, err := a.sharedBackend(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	metrics := cache.NewMetrics(a.registry)
	a.service = recordstatus.NewService(a.db,
		recordstatus.WithSharedCache(cache.NewLookaside("shared", shared, cfg.CacheTTL,
			cache.WithMetrics(metrics), cache.WithLogger(logger))),
		recordstatus.WithStaticCache(cache.NewLookaside("static", cache.NewMemory(), cfg.StaticTTL,
			cache.WithMetrics(metrics), cache.WithLogger(logger))),
		recordstatus.WithBus(a.bus),
		recordstatus.WithLogger(logger.Named("recordstatus")),
	)
	return a, nil
}

func (a *app) sharedBackend(ctx context.Context) (cache.Cache, error) {
	if a.cfg.CacheBackend != config.CacheBackendRedis {
		return a.memory, nil
	}
	r, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, r.Close)
	a.logger.Info("shared cache on redis", zap.String("addr", a.cfg.RedisAddr))
	return r, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
	return errors.Join(errs...)
}
