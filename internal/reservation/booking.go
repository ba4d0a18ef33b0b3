package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/clinicdesk/clinic-scheduler/internal/redis"
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

// CreateReservation atomically admits a new booking. The slot must be
// valid for the requested provider (or for at least one provider when
// no preference is given) and the date must not be in the past. The
// redis lock narrows the check-then-insert race; the storage uniqueness
// constraint is the authoritative guard and surfaces as
// ErrDuplicateSlot.
func (s *Service) CreateReservation(ctx context.Context, providerID *string, date time.Time, slot schedule.Slot, patientRef string) (*Reservation, error) {
	date = schedule.DateOf(date)
	if date.Before(schedule.DateOf(s.now())) {
		return nil, ErrPastDate
	}
	if _, err := schedule.ParseSlot(string(slot)); err != nil {
		return nil, ErrInvalidSlot
	}

	lockProvider := "any"
	if providerID != nil {
		if _, ok := s.gen.Catalog().Provider(*providerID); !ok {
			return nil, ErrUnknownProvider
		}
		if !s.gen.IsValidSlot(*providerID, date, slot) {
			return nil, ErrInvalidSlot
		}
		lockProvider = *providerID
	} else {
		valid := false
		for _, u := range s.gen.UnionSlots(date) {
			if u == slot {
				valid = true
				break
			}
		}
		if !valid {
			return nil, ErrInvalidSlot
		}
	}

	var created *Reservation
	lockKey := fmt.Sprintf("%s:%s:%s", schedule.DateKey(date), lockProvider, slot)

	err := s.locker.WithSlotLock(ctx, lockKey, func(lockCtx context.Context) error {
		// Pre-check inside the critical section. Only an optimization:
		// the insert below still hits the unique index.
		if providerID != nil {
			rows, err := s.repo.ListByDate(lockCtx, date)
			if err != nil {
				return fmt.Errorf("check existing reservations: %w", err)
			}
			for _, r := range rows {
				if eff := r.EffectiveProviderID(); eff != nil && *eff == *providerID && r.TimeSlot == slot {
					return ErrDuplicateSlot
				}
			}
		}

		r, err := s.repo.CreateReservation(lockCtx, Reservation{
			Date:                date,
			TimeSlot:            slot,
			PreferredProviderID: providerID,
			AssignedProviderID:  providerID,
			Status:              StatusConfirmed,
			PatientRef:          patientRef,
		})
		if err != nil {
			return err
		}

		created = r
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	s.log.Info().
		Int64("reservation_id", created.ID).
		Str("date", schedule.DateKey(date)).
		Str("time", string(slot)).
		Msg("reservation created")

	return created, nil
}

// CancelReservation transitions a reservation to cancelled, which
// immediately frees its slot. Cancelling an already-cancelled
// reservation is a no-op success.
func (s *Service) CancelReservation(ctx context.Context, id int64) error {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if r.Status == StatusCancelled {
		return nil
	}
	if _, err := s.repo.SetStatus(ctx, id, StatusCancelled); err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}

	s.log.Info().Int64("reservation_id", id).Msg("reservation cancelled")
	return nil
}

// MoveReservation relocates a reservation to a new date and time at an
// admin's request, keeping the assigned provider (and the patient's
// preference) untouched, and appends a move history entry. A history
// write failure does not undo the move.
func (s *Service) MoveReservation(ctx context.Context, id int64, toDate time.Time, toSlot schedule.Slot) (*Reservation, error) {
	if _, err := schedule.ParseSlot(string(toSlot)); err != nil {
		return nil, ErrInvalidSlot
	}

	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	toDate = schedule.DateOf(toDate)
	if err := s.repo.Relocate(ctx, id, toDate, toSlot, r.AssignedProviderID); err != nil {
		return nil, err
	}

	if _, err := s.repo.InsertMove(ctx, MoveHistoryEntry{
		ReservationID:  id,
		FromDate:       r.Date,
		FromTime:       r.TimeSlot,
		FromProviderID: r.AssignedProviderID,
		ToDate:         toDate,
		ToTime:         toSlot,
		ToProviderID:   r.AssignedProviderID,
	}); err != nil {
		s.log.Warn().Err(err).Int64("reservation_id", id).Msg("move recorded but history insert failed")
	}

	return s.repo.GetReservation(ctx, id)
}
