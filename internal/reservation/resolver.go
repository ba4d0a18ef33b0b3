package reservation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

// ResolveResult reports one resolver run. Assignment failures are
// counted and identified, not raised: the rest of the batch completes.
type ResolveResult struct {
	AssignedCount   int
	UnassignedCount int
	UnassignedIDs   []int64
}

// ResolveAssignments deterministically assigns a provider to every
// reservation on date that lacks one. Rows that already carry an
// assignment are left untouched and only claim their slot: the migrator
// may relocate a reservation away from its preferred provider, and the
// resolver must not revert that repair. Re-running over an identical
// reservation set yields identical assignments.
func (s *Service) ResolveAssignments(ctx context.Context, date time.Time) (*ResolveResult, error) {
	date = schedule.DateOf(date)

	rows, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	ordered := append([]Reservation(nil), rows...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	occupied := make(occupancy)
	for _, r := range ordered {
		if eff := r.EffectiveProviderID(); eff != nil {
			occupied[slotKey{providerID: *eff, slot: r.TimeSlot}] = true
		}
	}

	result := &ResolveResult{}

	// Preference rows whose assignment was never materialized get the
	// preference written through; explicit preference always wins and
	// is never displaced by the random pass.
	for _, r := range ordered {
		if r.AssignedProviderID != nil || r.PreferredProviderID == nil {
			continue
		}
		if err := s.repo.AssignProvider(ctx, r.ID, *r.PreferredProviderID); err != nil {
			return nil, fmt.Errorf("assign reservation %d: %w", r.ID, err)
		}
		result.AssignedCount++
	}

	counter := uint64(assignSeed)
	for _, r := range ordered {
		if r.EffectiveProviderID() != nil {
			continue
		}
		placed := false
		for _, id := range shuffledProviders(s.gen.Catalog().IDs(), &counter) {
			key := slotKey{providerID: id, slot: r.TimeSlot}
			if !occupied[key] && s.gen.IsValidSlot(id, date, r.TimeSlot) {
				if err := s.repo.AssignProvider(ctx, r.ID, id); err != nil {
					return nil, fmt.Errorf("assign reservation %d: %w", r.ID, err)
				}
				occupied[key] = true
				placed = true
				break
			}
		}
		if placed {
			result.AssignedCount++
		} else {
			result.UnassignedCount++
			result.UnassignedIDs = append(result.UnassignedIDs, r.ID)
		}
	}

	s.log.Info().
		Str("date", schedule.DateKey(date)).
		Int("assigned", result.AssignedCount).
		Int("unassigned", result.UnassignedCount).
		Msg("assignment resolution complete")

	if result.UnassignedCount > 0 {
		s.log.Warn().
			Str("date", schedule.DateKey(date)).
			Ints64("reservation_ids", result.UnassignedIDs).
			Msg("reservations left unassigned")
	}

	return result, nil
}
