package reservation

import (
	"time"

	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusVisited     Status = "visited"
	StatusUnprocessed Status = "unprocessed"
	StatusCancelled   Status = "cancelled"
)

// Reservation is a patient's claim on a (date, provider, time) slot.
// IDs are monotonically increasing; the Resolver and Migrator both
// process reservations in ascending ID order, which is what makes their
// output reproducible.
type Reservation struct {
	ID                  int64
	Date                time.Time
	TimeSlot            schedule.Slot
	PreferredProviderID *string
	AssignedProviderID  *string
	Status              Status
	PatientRef          string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EffectiveProviderID is the provider the reservation currently counts
// against: the resolved assignment when present, otherwise the
// patient's preference.
func (r Reservation) EffectiveProviderID() *string {
	if r.AssignedProviderID != nil {
		return r.AssignedProviderID
	}
	return r.PreferredProviderID
}

func (r Reservation) Active() bool {
	return r.Status != StatusCancelled
}

// MoveHistoryEntry records one relocation of a reservation. Entries are
// append-only; the sequence ordered by MovedAt yields the move count
// and the most recent reassignment for any consumer.
type MoveHistoryEntry struct {
	ID             int64
	ReservationID  int64
	FromDate       time.Time
	FromTime       schedule.Slot
	FromProviderID *string
	ToDate         time.Time
	ToTime         schedule.Slot
	ToProviderID   *string
	MovedAt        time.Time
}
