package reservation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

// MigrateResult reports one migrator run. Unresolved conflicts are
// reported, never silently dropped.
type MigrateResult struct {
	MovedCount      int
	UnresolvedCount int
	UnresolvedIDs   []int64
	Moves           []MoveHistoryEntry
}

type conflict struct {
	res Reservation
	// providerID is the provider the reservation currently sits with,
	// nil for unresolved rows the seeded pass could not place anywhere.
	providerID *string
}

// MigrateConflicts repairs reservations sitting in a slot outside their
// provider's schedule, typically after a template change. The
// occupied-slot state is recomputed per date from the currently valid
// assignments, with the resolver's seeded pass deciding placeability of
// still-unresolved rows, so the relocation search runs against ground
// truth rather than stale state. The pass is idempotent: a second run
// with no intervening writes moves nothing.
func (s *Service) MigrateConflicts(ctx context.Context) (*MigrateResult, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	byDate := make(map[string][]Reservation)
	var dates []time.Time
	for _, r := range rows {
		k := schedule.DateKey(r.Date)
		if _, seen := byDate[k]; !seen {
			dates = append(dates, r.Date)
		}
		byDate[k] = append(byDate[k], r)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	occupiedByDate := make(map[string]occupancy)
	var conflicts []conflict
	for _, d := range dates {
		k := schedule.DateKey(d)
		occupied, found := s.groundTruthForDate(d, byDate[k])
		occupiedByDate[k] = occupied
		conflicts = append(conflicts, found...)
	}

	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].res.ID < conflicts[j].res.ID })

	result := &MigrateResult{}
	for _, c := range conflicts {
		toDate, toSlot, toProvider, found := s.findDestination(c, occupiedByDate)
		if !found {
			result.UnresolvedCount++
			result.UnresolvedIDs = append(result.UnresolvedIDs, c.res.ID)
			s.log.Warn().
				Int64("reservation_id", c.res.ID).
				Str("date", schedule.DateKey(c.res.Date)).
				Str("time", string(c.res.TimeSlot)).
				Msg("no relocation target within search horizon")
			continue
		}

		toKey := schedule.DateKey(toDate)
		if occupiedByDate[toKey] == nil {
			occupiedByDate[toKey] = make(occupancy)
		}
		occupiedByDate[toKey][slotKey{providerID: toProvider, slot: toSlot}] = true

		if err := s.repo.Relocate(ctx, c.res.ID, toDate, toSlot, &toProvider); err != nil {
			return nil, fmt.Errorf("relocate reservation %d: %w", c.res.ID, err)
		}

		fromProvider := c.providerID
		if fromProvider == nil {
			fromProvider = c.res.EffectiveProviderID()
		}
		entry, err := s.repo.InsertMove(ctx, MoveHistoryEntry{
			ReservationID:  c.res.ID,
			FromDate:       c.res.Date,
			FromTime:       c.res.TimeSlot,
			FromProviderID: fromProvider,
			ToDate:         toDate,
			ToTime:         toSlot,
			ToProviderID:   &toProvider,
		})
		if err != nil {
			return nil, fmt.Errorf("record move for reservation %d: %w", c.res.ID, err)
		}

		result.MovedCount++
		result.Moves = append(result.Moves, *entry)

		s.log.Info().
			Int64("reservation_id", c.res.ID).
			Str("from", fmt.Sprintf("%s %s", schedule.DateKey(c.res.Date), c.res.TimeSlot)).
			Str("to", fmt.Sprintf("%s %s %s", schedule.DateKey(toDate), toSlot, toProvider)).
			Msg("reservation relocated")
	}

	s.log.Info().
		Int("moved", result.MovedCount).
		Int("unresolved", result.UnresolvedCount).
		Msg("conflict migration complete")

	return result, nil
}

// groundTruthForDate rebuilds one date's occupancy and collects its
// conflicts. Rows with an effective provider claim their slot when the
// slot is valid and are conflicts otherwise; unresolved rows run
// through the resolver's seeded pass and are conflicts when it can
// place them nowhere. Conflicting rows claim nothing, so their old
// slots are free for the relocation search without extra bookkeeping.
func (s *Service) groundTruthForDate(date time.Time, rows []Reservation) (occupancy, []conflict) {
	ordered := append([]Reservation(nil), rows...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	occupied := make(occupancy)
	var conflicts []conflict

	for _, r := range ordered {
		eff := r.EffectiveProviderID()
		if eff == nil {
			continue
		}
		if s.gen.IsValidSlot(*eff, date, r.TimeSlot) {
			occupied[slotKey{providerID: *eff, slot: r.TimeSlot}] = true
		} else {
			conflicts = append(conflicts, conflict{res: r, providerID: eff})
		}
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
				occupied[key] = true
				placed = true
				break
			}
		}
		if !placed {
			conflicts = append(conflicts, conflict{res: r})
		}
	}

	return occupied, conflicts
}

// findDestination runs the strict priority search: same date and
// provider nearest in time, then same date other providers in canonical
// order, then forward business days up to the horizon.
func (s *Service) findDestination(c conflict, occupiedByDate map[string]occupancy) (time.Time, schedule.Slot, string, bool) {
	date := c.res.Date
	occupied := occupiedByDate[schedule.DateKey(date)]

	origProvider := ""
	if c.providerID != nil {
		origProvider = *c.providerID
	} else if ids := s.gen.Catalog().IDs(); len(ids) > 0 {
		origProvider = ids[0]
	}

	// Same date, same provider.
	if slot, ok := s.nearestFreeSlot(origProvider, date, c.res.TimeSlot, occupied); ok {
		return date, slot, origProvider, true
	}

	// Same date, other providers in canonical order.
	for _, alt := range s.gen.Catalog().IDs() {
		if alt == origProvider {
			continue
		}
		if slot, ok := s.nearestFreeSlot(alt, date, c.res.TimeSlot, occupied); ok {
			return date, slot, alt, true
		}
	}

	// Forward business days, same provider first.
	providers := []string{origProvider}
	for _, alt := range s.gen.Catalog().IDs() {
		if alt != origProvider {
			providers = append(providers, alt)
		}
	}

	horizon := schedule.DateOf(date).AddDate(0, 0, s.horizonDays)
	for d := schedule.NextBusinessDay(date); !d.After(horizon); d = schedule.NextBusinessDay(d) {
		k := schedule.DateKey(d)
		if occupiedByDate[k] == nil {
			occupiedByDate[k] = make(occupancy)
		}
		for _, p := range providers {
			for _, slot := range s.gen.SlotsFor(p, d) {
				if !occupiedByDate[k][slotKey{providerID: p, slot: slot}] {
					return d, slot, p, true
				}
			}
		}
	}

	return time.Time{}, "", "", false
}

// nearestFreeSlot picks the free valid slot for providerID on date that
// is closest in time to ref; exact distance ties go to the earlier
// slot.
func (s *Service) nearestFreeSlot(providerID string, date time.Time, ref schedule.Slot, occupied occupancy) (schedule.Slot, bool) {
	var best schedule.Slot
	bestDelta := -1
	for _, slot := range s.gen.SlotsFor(providerID, date) {
		if occupied[slotKey{providerID: providerID, slot: slot}] {
			continue
		}
		delta := slot.Delta(ref)
		if bestDelta < 0 || delta < bestDelta {
			best = slot
			bestDelta = delta
		}
	}
	return best, bestDelta >= 0
}
