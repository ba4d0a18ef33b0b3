package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduler/internal/reservation"
)

type RouterConfig struct {
	Service *reservation.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/availability", availabilityHandler(cfg.Service))
	r.Get("/availability/monthly", monthlyAvailabilityHandler(cfg.Service))

	r.Post("/reservations", createReservationHandler(cfg.Service))
	r.Get("/reservations", listReservationsHandler(cfg.Service))
	r.Post("/reservations/{id}/cancel", cancelReservationHandler(cfg.Service))
	r.Post("/reservations/{id}/move", moveReservationHandler(cfg.Service))
	r.Get("/reservations/{id}/moves", moveHistoryHandler(cfg.Service))

	r.Post("/assignments/resolve", resolveAssignmentsHandler(cfg.Service))
	r.Post("/conflicts/migrate", migrateConflictsHandler(cfg.Service))

	return r
}
