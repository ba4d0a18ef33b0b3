package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrDuplicateSlot is the canonical signal that a non-cancelled
	// reservation already occupies the (date, provider, time) tuple.
	// The storage layer raises it from its uniqueness constraint; the
	// Booking Guard's read-based pre-check is only an optimization.
	ErrDuplicateSlot = errors.New("slot already booked for this provider")
)

// Repository contains all storage interactions needed by the engine.
type Repository interface {
	// CreateReservation persists r (ID and timestamps assigned by the
	// store) and returns ErrDuplicateSlot on a uniqueness violation.
	CreateReservation(ctx context.Context, r Reservation) (*Reservation, error)
	GetReservation(ctx context.Context, id int64) (*Reservation, error)

	// ListByDate returns non-cancelled reservations for a date in
	// ascending ID order.
	ListByDate(ctx context.Context, date time.Time) ([]Reservation, error)
	// ListActive returns every non-cancelled reservation ordered by
	// date then ID.
	ListActive(ctx context.Context) ([]Reservation, error)
	// ListBetween returns non-cancelled reservations with from <= date
	// <= to, ordered by date then ID.
	ListBetween(ctx context.Context, from, to time.Time) ([]Reservation, error)
	ListByPatient(ctx context.Context, patientRef string) ([]Reservation, error)

	SetStatus(ctx context.Context, id int64, status Status) (*Reservation, error)
	// AssignProvider sets the resolved provider. Raises
	// ErrDuplicateSlot if the target tuple is already occupied.
	AssignProvider(ctx context.Context, id int64, providerID string) error
	// Relocate moves a reservation to a new (date, time, provider).
	Relocate(ctx context.Context, id int64, date time.Time, slot schedule.Slot, providerID *string) error

	InsertMove(ctx context.Context, e MoveHistoryEntry) (*MoveHistoryEntry, error)
	ListMoves(ctx context.Context, reservationID int64) ([]MoveHistoryEntry, error)

	ListProviders(ctx context.Context) ([]schedule.Provider, error)
	ListClosedDates(ctx context.Context) ([]time.Time, error)
}
