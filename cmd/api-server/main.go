package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduler/internal/api"
	"github.com/clinicdesk/clinic-scheduler/internal/config"
	"github.com/clinicdesk/clinic-scheduler/internal/db"
	redisclient "github.com/clinicdesk/clinic-scheduler/internal/redis"
	"github.com/clinicdesk/clinic-scheduler/internal/reservation"
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

const version = "1.0.0"

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	log.Info().Str("version", version).Msg("starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configured")

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

	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	svc := reservation.NewService(repo, gen, locker, cfg, log)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
		Logger:  log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// loadGenerator builds the slot generator from the provider templates
// and closed dates in storage, falling back to the built-in clinic
// roster when the providers table is empty.
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

	log.Info().Int("providers", len(providers)).Int("closed_dates", len(closed)).Msg("schedule catalog loaded")
	return schedule.NewGenerator(catalog, schedule.NewClosureSet(closed)), nil
}
