package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"caresignal/internal/adherence"
	alerthandler "caresignal/internal/alert/handler"
	alertstore "caresignal/internal/alert/store"
	"caresignal/internal/alertlog"
	boundaryhandler "caresignal/internal/boundary/handler"
	boundaryservice "caresignal/internal/boundary/service"
	boundarystore "caresignal/internal/boundary/store"
	"caresignal/internal/fanout"
	"caresignal/internal/lifecycle"
	lifecyclemetrics "caresignal/internal/lifecycle/metrics"
	"caresignal/internal/platform/config"
	"caresignal/internal/platform/httpserver"
	"caresignal/internal/platform/logger"
	"caresignal/internal/platform/postgres"
	platformredis "caresignal/internal/platform/redis"
	"caresignal/internal/reference"
	referencehandler "caresignal/internal/reference/handler"
	schedulehandler "caresignal/internal/schedule/handler"
	scheduleservice "caresignal/internal/schedule/service"
	schedulestore "caresignal/internal/schedule/store"
	"caresignal/internal/scoring"
	signalhandler "caresignal/internal/signal/handler"
	signalstore "caresignal/internal/signal/store"
	httptransport "caresignal/internal/transport/http"
	"caresignal/internal/verification"
	verificationhandler "caresignal/internal/verification/handler"
	verificationmetrics "caresignal/internal/verification/metrics"
	id "caresignal/pkg/domain"
)

// main wires stores, the evaluation engine, and transport together. Business
// logic lives in the internal packages; everything here is assembly.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			log.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		signals    signalstore.Store
		boundaries boundarystore.Store
		alerts     alertstore.Store
		schedules  schedulestore.Store
	)
	if db != nil {
		signals = signalstore.NewPostgresStore(db)
		boundaries = boundarystore.NewPostgresStore(db)
		alerts = alertstore.NewPostgresStore(db)
		schedules = schedulestore.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		signals = signalstore.NewInMemoryStore()
		boundaries = boundarystore.NewInMemoryStore()
		alerts = alertstore.NewInMemoryStore()
		schedules = schedulestore.NewInMemoryStore()
		log.Warn("POSTGRES_URL not set, state will not survive restarts")
	}

	var references reference.Store
	if redisClient != nil {
		references, err = reference.NewRedisStore(redisClient)
		if err != nil {
			log.Error("failed to build reference store", "error", err)
			os.Exit(1)
		}
	} else {
		references = reference.NewInMemoryStore()
	}

	// The hub snapshots through the manager, and the manager publishes
	// through the hub. Capture the manager by reference to break the cycle.
	var manager *lifecycle.Manager
	hub := fanout.NewHub(
		fanout.WithSnapshot(func(ctx context.Context, subjectID id.SubjectID) ([]fanout.Event, error) {
			return manager.Snapshot(ctx, subjectID)
		}),
		fanout.WithHubLogger(log),
	)
	defer hub.Close()

	var bus fanout.Bus = hub
	var redisBus *fanout.RedisBus
	if redisClient != nil {
		redisBus, err = fanout.NewRedisBus(redisClient, hub, log)
		if err != nil {
			log.Error("failed to build redis fanout bridge", "error", err)
			os.Exit(1)
		}
		bus = redisBus
	}

	journal, err := alertlog.New(cfg.Kafka, log)
	if err != nil {
		log.Error("failed to connect to kafka", "error", err)
		os.Exit(1)
	}
	if journal != nil {
		defer journal.Close()
	}

	managerOpts := []lifecycle.Option{
		lifecycle.WithBus(bus),
		lifecycle.WithMetrics(lifecyclemetrics.New()),
		lifecycle.WithLogger(log),
		lifecycle.WithRetryLimit(cfg.Engine.StateRetryLimit),
		lifecycle.WithAdherenceStages(cfg.Engine.AdherenceDegradingFloor, cfg.Engine.AdherenceNotifyThreshold),
	}
	if journal != nil {
		managerOpts = append(managerOpts, lifecycle.WithJournal(journal))
	}
	manager, err = lifecycle.New(signals, boundaries, alerts, managerOpts...)
	if err != nil {
		log.Error("failed to build lifecycle manager", "error", err)
		os.Exit(1)
	}

	scorer, err := scoring.NewHTTPClient(cfg.Scoring.BaseURL, cfg.Scoring.Timeout)
	if err != nil {
		log.Error("invalid scoring configuration", "error", err)
		os.Exit(1)
	}

	verifier, err := verification.New(signals, manager, scorer,
		adherence.Config{
			MaxDailyAttempts:      cfg.Engine.MaxDailyAttempts,
			MatchThreshold:        cfg.Engine.MatchThreshold,
			TextScoreMinThreshold: cfg.Engine.TextScoreMinThreshold,
		},
		verification.WithResolver(references),
		verification.WithSchedules(schedules),
		verification.WithMaxReferenceImages(cfg.Engine.MaxReferenceImages),
		verification.WithMetrics(verificationmetrics.New()),
		verification.WithLogger(log),
	)
	if err != nil {
		log.Error("failed to build verification service", "error", err)
		os.Exit(1)
	}

	boundarySvc, err := boundaryservice.New(boundaries, boundaryservice.WithLogger(log))
	if err != nil {
		log.Error("failed to build boundary service", "error", err)
		os.Exit(1)
	}
	scheduleSvc, err := scheduleservice.New(schedules, scheduleservice.WithLogger(log))
	if err != nil {
		log.Error("failed to build schedule service", "error", err)
		os.Exit(1)
	}

	signalHandler := signalhandler.New(manager, bus, log)
	router := httptransport.NewRouter(httptransport.Options{
		Logger:         log,
		RequestTimeout: 30 * time.Second,
		Handlers: []httptransport.Registrar{
			signalHandler,
			verificationhandler.New(verifier, log),
			boundaryhandler.New(boundarySvc, log),
			schedulehandler.New(scheduleSvc, log),
			alerthandler.New(manager, log),
			referencehandler.New(references, log),
		},
		Streaming:    []httptransport.StreamingRegistrar{signalHandler},
		HealthChecks: healthChecks(db, redisClient),
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting caresignal", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if redisBus != nil {
		g.Go(func() error {
			return redisBus.Run(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("caresignal stopped")
}

type pingHealth struct {
	db *sql.DB
}

func (p pingHealth) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func healthChecks(db *sql.DB, redisClient *platformredis.Client) map[string]httptransport.HealthChecker {
	checks := make(map[string]httptransport.HealthChecker)
	if db != nil {
		checks["postgres"] = pingHealth{db: db}
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	return checks
}
