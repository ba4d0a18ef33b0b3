package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduler/internal/config"
	redisclient "github.com/clinicdesk/clinic-scheduler/internal/redis"
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

var (
	// ErrInvalidSlot means the requested time is not in the relevant
	// schedule for the date. User-correctable.
	ErrInvalidSlot = errors.New("requested time is not a valid slot for this date")
	// ErrPastDate means the requested date is already over.
	ErrPastDate = errors.New("reservation date is in the past")
	// ErrUnknownProvider means the provider ID is not in the catalog.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrSlotContended means another booking for the same slot holds
	// the lock right now. Callers should retry shortly.
	ErrSlotContended = errors.New("slot is currently being booked, please retry")
)

// Service is the scheduling and assignment engine: availability
// reporting, booking, deterministic assignment resolution, conflict
// migration and the move history log.
type Service struct {
	repo        Repository
	gen         *schedule.Generator
	locker      redisclient.Locker
	log         zerolog.Logger
	horizonDays int
	now         func() time.Time
}

func NewService(repo Repository, gen *schedule.Generator, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	horizon := cfg.HorizonDays
	if horizon <= 0 {
		horizon = 60
	}
	return &Service{
		repo:        repo,
		gen:         gen,
		locker:      locker,
		log:         log,
		horizonDays: horizon,
		now:         time.Now,
	}
}

// ListReservations returns non-cancelled reservations for a date,
// optionally narrowed to the reservations a provider is on the hook
// for (resolved assignment, or preference while unresolved).
func (s *Service) ListReservations(ctx context.Context, date time.Time, providerID *string) ([]Reservation, error) {
	if providerID != nil {
		if _, ok := s.gen.Catalog().Provider(*providerID); !ok {
			return nil, ErrUnknownProvider
		}
	}

	rows, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	if providerID == nil {
		return rows, nil
	}

	out := make([]Reservation, 0, len(rows))
	for _, r := range rows {
		if eff := r.EffectiveProviderID(); eff != nil && *eff == *providerID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListPatientReservations returns every reservation (including
// cancelled ones) recorded for a patient reference.
func (s *Service) ListPatientReservations(ctx context.Context, patientRef string) ([]Reservation, error) {
	rows, err := s.repo.ListByPatient(ctx, patientRef)
	if err != nil {
		return nil, fmt.Errorf("list patient reservations: %w", err)
	}
	return rows, nil
}

// MoveHistory returns the append-only move log for a reservation,
// ordered by move timestamp.
func (s *Service) MoveHistory(ctx context.Context, reservationID int64) ([]MoveHistoryEntry, error) {
	if _, err := s.repo.GetReservation(ctx, reservationID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListMoves(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list move history: %w", err)
	}
	return entries, nil
}
