package schedule

import (
	"sort"
	"time"
)

// Calendar reports clinic-wide closures (public holidays and the like).
// Closure data is owned by an external collaborator; the generator only
// reads it.
type Calendar interface {
	IsClosed(date time.Time) bool
}

// ClosureSet is a fixed Calendar backed by a set of closed dates.
type ClosureSet map[string]struct{}

func NewClosureSet(dates []time.Time) ClosureSet {
	s := make(ClosureSet, len(dates))
	for _, d := range dates {
		s[DateKey(d)] = struct{}{}
	}
	return s
}

func (s ClosureSet) IsClosed(date time.Time) bool {
	_, ok := s[DateKey(date)]
	return ok
}

// Generator derives valid (provider, time) pairs for a calendar date
// from the catalog and the closure calendar. It holds no mutable state
// and is safe for concurrent use.
type Generator struct {
	catalog  *Catalog
	calendar Calendar
}

func NewGenerator(catalog *Catalog, calendar Calendar) *Generator {
	return &Generator{catalog: catalog, calendar: calendar}
}

func (g *Generator) Catalog() *Catalog {
	return g.catalog
}

// SlotsFor returns the ordered valid start times for a provider on
// date, or nil when the clinic or the provider is closed that day.
func (g *Generator) SlotsFor(providerID string, date time.Time) []Slot {
	p, ok := g.catalog.Provider(providerID)
	if !ok {
		return nil
	}
	date = DateOf(date)
	if g.calendar.IsClosed(date) {
		return nil
	}
	return p.Template.SlotsOn(date.Weekday())
}

// UnionSlots returns the deduplicated, sorted union of every provider's
// valid slots for date. A slot appears here if at least one provider
// can take it.
func (g *Generator) UnionSlots(date time.Time) []Slot {
	seen := make(map[Slot]struct{})
	for _, id := range g.catalog.IDs() {
		for _, s := range g.SlotsFor(id, date) {
			seen[s] = struct{}{}
		}
	}
	out := make([]Slot, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minutes() < out[j].Minutes() })
	return out
}

// IsValidSlot reports whether slot is in providerID's schedule on date.
func (g *Generator) IsValidSlot(providerID string, date time.Time, slot Slot) bool {
	for _, s := range g.SlotsFor(providerID, date) {
		if s == slot {
			return true
		}
	}
	return false
}
