package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduler/internal/config"
	"github.com/clinicdesk/clinic-scheduler/internal/db"
	redisclient "github.com/clinicdesk/clinic-scheduler/internal/redis"
	"github.com/clinicdesk/clinic-scheduler/internal/reservation"
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "maintenance-worker").Logger()
	log.Info().Msg("starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	log.Info().
		Str("env", cfg.Env).
		Str("resolve_cron", cfg.ResolveCron).
		Str("migrate_cron", cfg.MigrateCron).
		Int("resolve_days_ahead", cfg.ResolveDaysAhead).
		Msg("configured")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := reservation.NewPgRepository(pgPool)

	gen, err := loadGenerator(rootCtx, repo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("schedule catalog load error")
	}

	svc := reservation.NewService(repo, gen, redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL), cfg, log)

	// Run both maintenance passes once at startup, then on schedule.
	runResolve(rootCtx, svc, cfg.ResolveDaysAhead, log)
	runMigrate(rootCtx, svc, log)

	c := cron.New()
	if _, err := c.AddFunc(cfg.ResolveCron, func() {
		runResolve(rootCtx, svc, cfg.ResolveDaysAhead, log)
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.ResolveCron).Msg("invalid RESOLVE_CRON")
	}
	if _, err := c.AddFunc(cfg.MigrateCron, func() {
		runMigrate(rootCtx, svc, log)
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.MigrateCron).Msg("invalid MIGRATE_CRON")
	}
	c.Start()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received, stopping maintenance worker")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn().Msg("running jobs did not finish before shutdown timeout")
	}
}

// runResolve resolves assignments for today and the configured number
// of days ahead.
func runResolve(ctx context.Context, svc *reservation.Service, daysAhead int, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	today := schedule.DateOf(time.Now().UTC())

	assigned, unassigned := 0, 0
	for i := 0; i <= daysAhead; i++ {
		res, err := svc.ResolveAssignments(runCtx, today.AddDate(0, 0, i))
		if err != nil {
			log.Error().Err(err).Msg("resolve run error")
			return
		}
		assigned += res.AssignedCount
		unassigned += res.UnassignedCount
	}

	log.Info().
		Int("assigned", assigned).
		Int("unassigned", unassigned).
		Dur("took", time.Since(start)).
		Msg("resolve run complete")
}

func runMigrate(ctx context.Context, svc *reservation.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	res, err := svc.MigrateConflicts(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("migrate run error")
		return
	}

	log.Info().
		Int("moved", res.MovedCount).
		Int("unresolved", res.UnresolvedCount).
		Dur("took", time.Since(start)).
		Msg("migrate run complete")
}

func loadGenerator(ctx context.Context, repo reservation.Repository, log zerolog.Logger) (*schedule.Generator, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	providers, err := repo.ListProviders(loadCtx)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		log.Warn().Msg("no providers in storage, using built-in roster")
		providers = schedule.DefaultProviders()
	}

	closed, err := repo.ListClosedDates(loadCtx)
	if err != nil {
		return nil, err
	}

	catalog, err := schedule.NewCatalog(providers)
	if err != nil {
		return nil, err
	}

	return schedule.NewGenerator(catalog, schedule.NewClosureSet(closed)), nil
}
