package api

import (
	"time"

	"github.com/clinicdesk/clinic-scheduler/internal/reservation"
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

type CreateReservationRequest struct {
	ProviderID *string `json:"provider_id,omitempty"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	PatientRef string  `json:"patient_ref"`
}

type MoveReservationRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type ResolveRequest struct {
	Date string `json:"date"`
}

type ReservationResponse struct {
	ID                  int64     `json:"id"`
	Date                string    `json:"date"`
	Time                string    `json:"time"`
	PreferredProviderID *string   `json:"preferred_provider_id,omitempty"`
	AssignedProviderID  *string   `json:"assigned_provider_id,omitempty"`
	Status              string    `json:"status"`
	PatientRef          string    `json:"patient_ref"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toReservationResponse(r reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:                  r.ID,
		Date:                schedule.DateKey(r.Date),
		Time:                string(r.TimeSlot),
		PreferredProviderID: r.PreferredProviderID,
		AssignedProviderID:  r.AssignedProviderID,
		Status:              string(r.Status),
		PatientRef:          r.PatientRef,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func toReservationResponses(rows []reservation.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, toReservationResponse(r))
	}
	return out
}

type SlotAvailabilityResponse struct {
	Time           string `json:"time"`
	Available      bool   `json:"available"`
	RemainingCount *int   `json:"remaining_count,omitempty"`
}

type AvailabilityResponse struct {
	Date       string                     `json:"date"`
	ProviderID *string                    `json:"provider_id,omitempty"`
	Slots      []SlotAvailabilityResponse `json:"slots"`
}

type DayAvailabilityResponse struct {
	Date      string `json:"date"`
	Available int    `json:"available"`
	Total     int    `json:"total"`
}

type MonthlyAvailabilityResponse struct {
	Year       int                       `json:"year"`
	Month      int                       `json:"month"`
	ProviderID *string                   `json:"provider_id,omitempty"`
	Days       []DayAvailabilityResponse `json:"days"`
}

type MoveHistoryResponse struct {
	ID             int64     `json:"id"`
	ReservationID  int64     `json:"reservation_id"`
	FromDate       string    `json:"from_date"`
	FromTime       string    `json:"from_time"`
	FromProviderID *string   `json:"from_provider_id,omitempty"`
	ToDate         string    `json:"to_date"`
	ToTime         string    `json:"to_time"`
	ToProviderID   *string   `json:"to_provider_id,omitempty"`
	MovedAt        time.Time `json:"moved_at"`
}

func toMoveHistoryResponse(e reservation.MoveHistoryEntry) MoveHistoryResponse {
	return MoveHistoryResponse{
		ID:             e.ID,
		ReservationID:  e.ReservationID,
		FromDate:       schedule.DateKey(e.FromDate),
		FromTime:       string(e.FromTime),
		FromProviderID: e.FromProviderID,
		ToDate:         schedule.DateKey(e.ToDate),
		ToTime:         string(e.ToTime),
		ToProviderID:   e.ToProviderID,
		MovedAt:        e.MovedAt,
	}
}

type ResolveResponse struct {
	Date            string  `json:"date"`
	AssignedCount   int     `json:"assigned_count"`
	UnassignedCount int     `json:"unassigned_count"`
	UnassignedIDs   []int64 `json:"unassigned_ids,omitempty"`
}

type MigrateResponse struct {
	MovedCount      int                   `json:"moved_count"`
	UnresolvedCount int                   `json:"unresolved_count"`
	UnresolvedIDs   []int64               `json:"unresolved_ids,omitempty"`
	Moves           []MoveHistoryResponse `json:"moves,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
