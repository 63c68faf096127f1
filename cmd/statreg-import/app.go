package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/uploadlog"
	uploadpersistence "github.com/iota-uz/statreg/modules/dataupload/infrastructure/persistence"
	"github.com/iota-uz/statreg/modules/dataupload/services"
	"github.com/iota-uz/statreg/modules/dataupload/services/analysis"
	"github.com/iota-uz/statreg/modules/dataupload/services/populate"
	"github.com/iota-uz/statreg/modules/statunit/infrastructure/lookupcache"
	unitpersistence "github.com/iota-uz/statreg/modules/statunit/infrastructure/persistence"
	"github.com/iota-uz/statreg/modules/statunit/infrastructure/searchindex"
	unitservices "github.com/iota-uz/statreg/modules/statunit/services"
	"github.com/iota-uz/statreg/pkg/authz"
	"github.com/iota-uz/statreg/pkg/composables"
	"github.com/iota-uz/statreg/pkg/configuration"
	"github.com/iota-uz/statreg/pkg/outbox"
)

// app holds the wired pipeline shared by the subcommands.
type app struct {
	cfg    *configuration.Configuration
	logger *logrus.Entry
	pool   *pgxpool.Pool
	redis  *redis.Client
	index  searchindex.Client
	perms  *authz.Service
	jobs   queuejob.Repository
	logs   uploadlog.Repository
	worker *services.QueueWorker
}

func connect(ctx context.Context, cfg *configuration.Configuration) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, cfg.Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect to database: %w", err))
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping database: %w", err))
	}
	return pool, nil
}

func newApp(ctx context.Context, cfg *configuration.Configuration) (*app, error) {
	logger := logrus.NewEntry(cfg.Logger())

	rules, err := analysis.LoadRules(cfg.Import.AnalysisRulesPath)
	if err != nil {
		return nil, withCode(exitValidation, err)
	}
	rules.Calculation.StatID = rules.Calculation.StatID || cfg.Import.ValidateStatIDChecksum

	perms, err := authz.NewService(authz.ConfigFrom(cfg))
	if err != nil {
		return nil, withCode(exitValidation, err)
	}

	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		perms:  perms,
		jobs:   uploadpersistence.NewQueueRepository(),
		logs:   uploadpersistence.NewUploadLogRepository(),
		index:  searchindex.Nop{},
	}

	var cache redis.Cmdable
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.close()
			return nil, withCode(exitValidation, fmt.Errorf("parse REDIS_URL: %w", err))
		}
		a.redis = redis.NewClient(opts)
		cache = a.redis
	}
	if cfg.SearchIndex.URL != "" {
		a.index = searchindex.NewClient(cfg.SearchIndex.URL, cfg.SearchIndex.Index, searchindex.WithTimeout(cfg.SearchIndex.Timeout))
	}

	units := unitpersistence.NewStatUnitRepository()
	lookups := lookupcache.New(unitpersistence.NewLookupRepository(), cache, cfg.Redis.LookupCacheTTL, logger)

	populator := populate.NewPopulator(units, unitservices.NewLookupResolver(lookups), populate.Options{
		PersonsGoodQuality: cfg.Import.PersonsGoodQuality,
		Permissions:        perms,
	})
	analyzer := analysis.NewService(units, analysis.ServiceOptions{Rules: rules, Logger: logger})
	coordinator := unitservices.NewCoordinator(units, unitpersistence.NewHistoryRepository(), unitservices.CoordinatorOptions{
		Permissions: perms,
		Logger:      logger,
	})

	publisher := outbox.NewPublisher()
	table, err := outbox.ParseTable(cfg.Outbox.Table)
	if err != nil {
		a.close()
		return nil, withCode(exitValidation, err)
	}
	a.worker = services.NewQueueWorker(a.jobs, a.logs, populator, analyzer, coordinator, services.QueueWorkerOptions{
		PollInterval:    cfg.Import.PollInterval,
		ReclaimInterval: cfg.Import.ReclaimInterval,
		DequeueTimeout:  cfg.Import.DequeueTimeout,
		LogBufferMax:    cfg.Import.LogBufferMax,
		UploadsRoot:     cfg.Import.UploadsRoot,
		IndexRequired:   cfg.SearchIndex.Required,
		Index:           a.index,
		Permissions:     perms,
		NewWriteBuffer: func() *unitservices.WriteBuffer {
			return unitservices.NewWriteBuffer(publisher, table, cfg.Import.WriteBufferMax, nil)
		},
		Logger: logger,
	})
	return a, nil
}

// context returns ctx carrying the pool and logger the repositories look up.
func (a *app) context(ctx context.Context) context.Context {
	ctx = composables.WithPool(ctx, a.pool)
	return composables.WithLogger(ctx, a.logger)
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close redis client")
		}
	}
	a.pool.Close()
}
