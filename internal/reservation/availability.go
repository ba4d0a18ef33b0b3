package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

// SlotAvailability is one row of the availability report for a date.
// RemainingCount is only populated in the no-provider case: it counts
// providers who have the slot in their own schedule and are not booked
// at it.
type SlotAvailability struct {
	Time           schedule.Slot
	Available      bool
	RemainingCount *int
}

// DayAvailability is one day of the monthly summary. Total counts the
// valid (provider, slot) pairs for the day; Available subtracts the
// distinct reserved pairs that fall inside the assignee's schedule.
type DayAvailability struct {
	Date      time.Time
	Available int
	Total     int
}

// Availability reports per-slot openness for a date. Pure read; every
// call is independently consistent with the reservations read at call
// time.
func (s *Service) Availability(ctx context.Context, date time.Time, providerID *string) ([]SlotAvailability, error) {
	date = schedule.DateOf(date)

	if providerID != nil {
		if _, ok := s.gen.Catalog().Provider(*providerID); !ok {
			return nil, ErrUnknownProvider
		}
	}

	rows, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	if providerID != nil {
		booked := make(map[schedule.Slot]bool)
		for _, r := range rows {
			if eff := r.EffectiveProviderID(); eff != nil && *eff == *providerID {
				booked[r.TimeSlot] = true
			}
		}

		valid := s.gen.SlotsFor(*providerID, date)
		out := make([]SlotAvailability, 0, len(valid))
		for _, slot := range valid {
			out = append(out, SlotAvailability{Time: slot, Available: !booked[slot]})
		}
		return out, nil
	}

	bookedBy := make(map[string]map[schedule.Slot]bool)
	for _, r := range rows {
		eff := r.EffectiveProviderID()
		if eff == nil {
			continue
		}
		if bookedBy[*eff] == nil {
			bookedBy[*eff] = make(map[schedule.Slot]bool)
		}
		bookedBy[*eff][r.TimeSlot] = true
	}

	union := s.gen.UnionSlots(date)
	out := make([]SlotAvailability, 0, len(union))
	for _, slot := range union {
		count := 0
		for _, id := range s.gen.Catalog().IDs() {
			if s.gen.IsValidSlot(id, date, slot) && !bookedBy[id][slot] {
				count++
			}
		}
		remaining := count
		out = append(out, SlotAvailability{
			Time:           slot,
			Available:      count > 0,
			RemainingCount: &remaining,
		})
	}
	return out, nil
}

// MonthlyAvailability summarizes open capacity per day of a month,
// optionally for a single provider.
func (s *Service) MonthlyAvailability(ctx context.Context, year int, month time.Month, providerID *string) ([]DayAvailability, error) {
	if providerID != nil {
		if _, ok := s.gen.Catalog().Provider(*providerID); !ok {
			return nil, ErrUnknownProvider
		}
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	rows, err := s.repo.ListBetween(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	byDate := make(map[string][]Reservation)
	for _, r := range rows {
		k := schedule.DateKey(r.Date)
		byDate[k] = append(byDate[k], r)
	}

	targets := s.gen.Catalog().IDs()
	if providerID != nil {
		targets = []string{*providerID}
	}

	days := make([]DayAvailability, 0, last.Day())
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		total := 0
		for _, id := range targets {
			total += len(s.gen.SlotsFor(id, d))
		}

		reserved := make(map[slotKey]bool)
		for _, r := range byDate[schedule.DateKey(d)] {
			eff := r.EffectiveProviderID()
			if eff == nil || !inTargets(targets, *eff) {
				continue
			}
			if s.gen.IsValidSlot(*eff, d, r.TimeSlot) {
				reserved[slotKey{providerID: *eff, slot: r.TimeSlot}] = true
			}
		}

		days = append(days, DayAvailability{
			Date:      d,
			Available: total - len(reserved),
			Total:     total,
		})
	}
	return days, nil
}

func inTargets(targets []string, id string) bool {
	for _, t := range targets {
		if t == id {
			return true
		}
	}
	return false
}
