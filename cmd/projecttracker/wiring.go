package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Moadams/ProjectTracker/internal/audit"
	"github.com/Moadams/ProjectTracker/internal/auth"
	"github.com/Moadams/ProjectTracker/internal/cache"
	"github.com/Moadams/ProjectTracker/internal/config"
	"github.com/Moadams/ProjectTracker/internal/httpapi"
	"github.com/Moadams/ProjectTracker/internal/notify"
	"github.com/Moadams/ProjectTracker/internal/obs"
	"github.com/Moadams/ProjectTracker/internal/project"
	"github.com/Moadams/ProjectTracker/internal/store/pg"
	"github.com/Moadams/ProjectTracker/internal/worker"
)

// services is the fully wired object graph behind serve and seed.
type services struct {
	db        *pg.Store
	pool      *worker.Pool
	publisher *notify.AMQPPublisher

	auditLog audit.Store
	sink     *audit.Sink
	auth     *auth.Orchestrator
	projects *project.Service
}

func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	s := &services{}

	var (
		authStore auth.Store
		repo      project.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.db = db
		authStore = db.Auth()
		s.auditLog = db.Audit()
		repo = db.Projects()
	} else {
		obs.Logger().Warn("DATABASE_URL not set; using in-memory stores")
		authStore = auth.NewMemoryStore()
		s.auditLog = audit.NewMemoryStore()
		repo = project.NewMemoryRepository()
	}

	timeout := cfg.SideEffectTimeoutDuration()
	s.pool = worker.NewPool(cfg.SideEffectWorkers, cfg.SideEffectQueue, worker.WithDefaultTimeout(timeout))
	s.sink = audit.NewSink(s.auditLog, s.pool, audit.WithTaskTimeout(timeout))

	codec, err := auth.NewTokenCodec(cfg.JWTSecret,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithAccessTTL(cfg.AccessTTL()),
		auth.WithRefreshTTL(cfg.RefreshTTL()),
	)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	if cfg.JWTSecret == "" {
		obs.Logger().Warn("JWT_SECRET not set; token issuance is disabled")
	}

	opts := []auth.Option{
		auth.WithHasher(auth.NewBcryptHasher(cfg.BcryptCost)),
		auth.WithAuditSink(s.sink),
		auth.WithTasks(s.pool),
		auth.WithSideEffectTimeout(timeout),
	}
	if cfg.AMQPURL != "" {
		pub, err := notify.DialAMQP(ctx, notify.AMQPConfig{
			URL:          cfg.AMQPURL,
			Exchange:     cfg.AMQPExchange,
			DialAttempts: 5,
			RetryDelay:   2 * time.Second,
		})
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		s.publisher = pub
		opts = append(opts, auth.WithPublisher(pub))
	}

	s.auth, err = auth.NewOrchestrator(authStore, codec, opts...)
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	regions := cache.New(cache.WithDefaults(cfg.CacheMaxEntries, cfg.CacheTTL()))
	s.projects = project.NewService(repo, regions, s.sink)
	return s, nil
}

// readiness pings the database when one is configured.
func (s *services) readiness() httpapi.ReadinessChecker {
	if s.db == nil {
		return httpapi.PingFunc(nil)
	}
	return httpapi.PingFunc(s.db.Ping)
}

// close drains detached work before releasing the broker and the pool.
func (s *services) close(ctx context.Context) {
	var errs []error
	if s.pool != nil {
		if err := s.pool.Close(ctx); err != nil && !errors.Is(err, worker.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		obs.Logger().Warn("shutdown incomplete", zap.Error(err))
	}
}
