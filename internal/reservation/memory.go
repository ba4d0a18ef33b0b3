package reservation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

// MemRepository is an in-memory Repository used by tests and local
// development. It mirrors the Postgres semantics, including the partial
// uniqueness constraint on (date, assigned provider, time) among
// non-cancelled reservations; rows with no assigned provider never
// collide, matching how NULLs behave in a unique index.
type MemRepository struct {
	mu           sync.Mutex
	seq          int64
	moveSeq      int64
	reservations map[int64]*Reservation
	moves        []MoveHistoryEntry
	providers    []schedule.Provider
	closedDates  []time.Time
}

func NewMemRepository(providers []schedule.Provider, closedDates []time.Time) *MemRepository {
	return &MemRepository{
		reservations: make(map[int64]*Reservation),
		providers:    providers,
		closedDates:  closedDates,
	}
}

func (m *MemRepository) occupied(date time.Time, providerID string, slot schedule.Slot, excludeID int64) bool {
	for _, r := range m.reservations {
		if r.ID == excludeID || !r.Active() || r.AssignedProviderID == nil {
			continue
		}
		if r.Date.Equal(date) && *r.AssignedProviderID == providerID && r.TimeSlot == slot {
			return true
		}
	}
	return false
}

func (m *MemRepository) CreateReservation(_ context.Context, r Reservation) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.Date = schedule.DateOf(r.Date)
	if r.AssignedProviderID != nil && m.occupied(r.Date, *r.AssignedProviderID, r.TimeSlot, 0) {
		return nil, ErrDuplicateSlot
	}

	m.seq++
	r.ID = m.seq
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.reservations[r.ID] = &r

	copied := r
	return &copied, nil
}

func (m *MemRepository) GetReservation(_ context.Context, id int64) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *MemRepository) list(filter func(*Reservation) bool) []Reservation {
	var out []Reservation
	for _, r := range m.reservations {
		if filter(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemRepository) ListByDate(_ context.Context, date time.Time) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := schedule.DateOf(date)
	return m.list(func(r *Reservation) bool {
		return r.Active() && r.Date.Equal(d)
	}), nil
}

func (m *MemRepository) ListActive(_ context.Context) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.list(func(r *Reservation) bool {
		return r.Active()
	}), nil
}

func (m *MemRepository) ListBetween(_ context.Context, from, to time.Time) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lo, hi := schedule.DateOf(from), schedule.DateOf(to)
	return m.list(func(r *Reservation) bool {
		return r.Active() && !r.Date.Before(lo) && !r.Date.After(hi)
	}), nil
}

func (m *MemRepository) ListByPatient(_ context.Context, patientRef string) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.list(func(r *Reservation) bool {
		return r.PatientRef == patientRef
	}), nil
}

func (m *MemRepository) SetStatus(_ context.Context, id int64, status Status) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	copied := *r
	return &copied, nil
}

func (m *MemRepository) AssignProvider(_ context.Context, id int64, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return ErrReservationNotFound
	}
	if m.occupied(r.Date, providerID, r.TimeSlot, id) {
		return ErrDuplicateSlot
	}
	r.AssignedProviderID = &providerID
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemRepository) Relocate(_ context.Context, id int64, date time.Time, slot schedule.Slot, providerID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return ErrReservationNotFound
	}
	d := schedule.DateOf(date)
	if providerID != nil && m.occupied(d, *providerID, slot, id) {
		return ErrDuplicateSlot
	}
	r.Date = d
	r.TimeSlot = slot
	r.AssignedProviderID = providerID
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemRepository) InsertMove(_ context.Context, e MoveHistoryEntry) (*MoveHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.moveSeq++
	e.ID = m.moveSeq
	if e.MovedAt.IsZero() {
		e.MovedAt = time.Now()
	}
	m.moves = append(m.moves, e)

	copied := e
	return &copied, nil
}

func (m *MemRepository) ListMoves(_ context.Context, reservationID int64) ([]MoveHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MoveHistoryEntry
	for _, e := range m.moves {
		if e.ReservationID == reservationID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MovedAt.Equal(out[j].MovedAt) {
			return out[i].MovedAt.Before(out[j].MovedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemRepository) ListProviders(_ context.Context) ([]schedule.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schedule.Provider(nil), m.providers...), nil
}

func (m *MemRepository) ListClosedDates(_ context.Context) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.closedDates...), nil
}
