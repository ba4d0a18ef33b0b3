package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/clinic-scheduler/internal/reservation"
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

func availabilityHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		providerID := optionalParam(r, "provider_id")

		slots, err := svc.Availability(r.Context(), date, providerID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := AvailabilityResponse{
			Date:       schedule.DateKey(date),
			ProviderID: providerID,
			Slots:      make([]SlotAvailabilityResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotAvailabilityResponse{
				Time:           string(s.Time),
				Available:      s.Available,
				RemainingCount: s.RemainingCount,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func monthlyAvailabilityHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_year", "year must be an integer")
			return
		}
		month, err := strconv.Atoi(r.URL.Query().Get("month"))
		if err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be 1-12")
			return
		}
		providerID := optionalParam(r, "provider_id")

		days, err := svc.MonthlyAvailability(r.Context(), year, time.Month(month), providerID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := MonthlyAvailabilityResponse{
			Year:       year,
			Month:      month,
			ProviderID: providerID,
			Days:       make([]DayAvailabilityResponse, 0, len(days)),
		}
		for _, d := range days {
			resp.Days = append(resp.Days, DayAvailabilityResponse{
				Date:      schedule.DateKey(d.Date),
				Available: d.Available,
				Total:     d.Total,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createReservationHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		if req.PatientRef == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_ref", "patient_ref is required")
			return
		}

		created, err := svc.CreateReservation(r.Context(), req.ProviderID, date, schedule.Slot(req.Time), req.PatientRef)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(*created))
	}
}

func listReservationsHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if patientRef := r.URL.Query().Get("patient_ref"); patientRef != "" {
			rows, err := svc.ListPatientReservations(r.Context(), patientRef)
			if err != nil {
				handleServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toReservationResponses(rows))
			return
		}

		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date or patient_ref is required")
			return
		}

		rows, err := svc.ListReservations(r.Context(), date, optionalParam(r, "provider_id"))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponses(rows))
	}
}

func cancelReservationHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := reservationID(w, r)
		if !ok {
			return
		}

		if err := svc.CancelReservation(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}

func moveReservationHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := reservationID(w, r)
		if !ok {
			return
		}

		var req MoveReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		moved, err := svc.MoveReservation(r.Context(), id, date, schedule.Slot(req.Time))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(*moved))
	}
}

func moveHistoryHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := reservationID(w, r)
		if !ok {
			return
		}

		entries, err := svc.MoveHistory(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]MoveHistoryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, toMoveHistoryResponse(e))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func resolveAssignmentsHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		res, err := svc.ResolveAssignments(r.Context(), date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ResolveResponse{
			Date:            schedule.DateKey(date),
			AssignedCount:   res.AssignedCount,
			UnassignedCount: res.UnassignedCount,
			UnassignedIDs:   res.UnassignedIDs,
		})
	}
}

func migrateConflictsHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.MigrateConflicts(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := MigrateResponse{
			MovedCount:      res.MovedCount,
			UnresolvedCount: res.UnresolvedCount,
			UnresolvedIDs:   res.UnresolvedIDs,
		}
		for _, m := range res.Moves {
			resp.Moves = append(resp.Moves, toMoveHistoryResponse(m))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func reservationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_reservation_id", "id must be an integer")
		return 0, false
	}
	return id, true
}

func optionalParam(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reservation.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "reservation_not_found", err.Error())
	case errors.Is(err, reservation.ErrUnknownProvider):
		writeError(w, http.StatusUnprocessableEntity, "unknown_provider", err.Error())
	case errors.Is(err, reservation.ErrInvalidSlot):
		writeError(w, http.StatusUnprocessableEntity, "invalid_slot", err.Error())
	case errors.Is(err, reservation.ErrPastDate):
		writeError(w, http.StatusUnprocessableEntity, "past_date", err.Error())
	case errors.Is(err, reservation.ErrDuplicateSlot):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, reservation.ErrSlotContended):
		writeError(w, http.StatusConflict, "slot_being_booked", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
