package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduler/internal/config"
	redisclient "github.com/clinicdesk/clinic-scheduler/internal/redis"
	"github.com/clinicdesk/clinic-scheduler/internal/reservation"
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	providers := schedule.DefaultProviders()
	cat, err := schedule.NewCatalog(providers)
	require.NoError(t, err)
	gen := schedule.NewGenerator(cat, schedule.NewClosureSet(nil))

	svc := reservation.NewService(
		reservation.NewMemRepository(providers, nil),
		gen,
		redisclient.NopLocker{},
		config.Config{HorizonDays: 60},
		zerolog.Nop(),
	)

	return NewRouter(RouterConfig{
		Service: svc,
		Env:     "test",
		Version: "test",
		Logger:  zerolog.Nop(),
	})
}

// futureMonday returns a Monday at least a year out, so bookings are
// never rejected as past dates.
func futureMonday() string {
	d := time.Now().UTC().AddDate(1, 0, 0)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestCreateReservationEndpoint(t *testing.T) {
	h := newTestRouter(t)
	mon := futureMonday()

	rec := doJSON(t, h, http.MethodPost, "/reservations", CreateReservationRequest{
		ProviderID: strPtr("tanaka"),
		Date:       mon,
		Time:       "09:00",
		PatientRef: "card-100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[ReservationResponse](t, rec)
	assert.NotZero(t, resp.ID)
	assert.Equal(t, mon, resp.Date)
	assert.Equal(t, "09:00", resp.Time)
	require.NotNil(t, resp.AssignedProviderID)
	assert.Equal(t, "tanaka", *resp.AssignedProviderID)
	assert.Equal(t, "confirmed", resp.Status)
}

func TestCreateReservationDuplicateConflict(t *testing.T) {
	h := newTestRouter(t)
	mon := futureMonday()

	req := CreateReservationRequest{
		ProviderID: strPtr("tanaka"),
		Date:       mon,
		Time:       "09:20",
		PatientRef: "card-1",
	}
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/reservations", req).Code)

	rec := doJSON(t, h, http.MethodPost, "/reservations", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_already_booked", decode[ErrorResponse](t, rec).Error)
}

func TestCreateReservationValidation(t *testing.T) {
	h := newTestRouter(t)
	mon := futureMonday()

	for _, tc := range []struct {
		name string
		req  CreateReservationRequest
		code int
		err  string
	}{
		{
			name: "off schedule time",
			req:  CreateReservationRequest{ProviderID: strPtr("tanaka"), Date: mon, Time: "13:00", PatientRef: "c"},
			code: http.StatusUnprocessableEntity,
			err:  "invalid_slot",
		},
		{
			name: "unknown provider",
			req:  CreateReservationRequest{ProviderID: strPtr("nobody"), Date: mon, Time: "09:00", PatientRef: "c"},
			code: http.StatusUnprocessableEntity,
			err:  "unknown_provider",
		},
		{
			name: "past date",
			req:  CreateReservationRequest{ProviderID: strPtr("tanaka"), Date: "2020-03-02", Time: "09:00", PatientRef: "c"},
			code: http.StatusUnprocessableEntity,
			err:  "past_date",
		},
		{
			name: "bad date format",
			req:  CreateReservationRequest{ProviderID: strPtr("tanaka"), Date: "03/02/2026", Time: "09:00", PatientRef: "c"},
			code: http.StatusBadRequest,
			err:  "invalid_date",
		},
		{
			name: "missing patient ref",
			req:  CreateReservationRequest{ProviderID: strPtr("tanaka"), Date: mon, Time: "09:00"},
			code: http.StatusBadRequest,
			err:  "missing_patient_ref",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/reservations", tc.req)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.err, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestCreateReservationBadBody(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/reservations", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityEndpoint(t *testing.T) {
	h := newTestRouter(t)
	mon := futureMonday()

	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/reservations", CreateReservationRequest{
		ProviderID: strPtr("tanaka"),
		Date:       mon,
		Time:       "09:00",
		PatientRef: "card-1",
	}).Code)

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/availability?date=%s&provider_id=tanaka", mon), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[AvailabilityResponse](t, rec)
	assert.Equal(t, mon, resp.Date)

	byTime := make(map[string]SlotAvailabilityResponse)
	for _, s := range resp.Slots {
		byTime[s.Time] = s
	}
	assert.False(t, byTime["09:00"].Available)
	assert.True(t, byTime["09:20"].Available)
}

func TestAvailabilityRequiresDate(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/availability", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthlyAvailabilityEndpoint(t *testing.T) {
	h := newTestRouter(t)

	y := time.Now().UTC().AddDate(1, 0, 0).Year()
	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/availability/monthly?year=%d&month=3&provider_id=suzuki", y), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[MonthlyAvailabilityResponse](t, rec)
	assert.Equal(t, y, resp.Year)
	assert.Equal(t, 3, resp.Month)
	assert.Len(t, resp.Days, 31)
}

func TestCancelReservationEndpoint(t *testing.T) {
	h := newTestRouter(t)
	mon := futureMonday()

	created := decode[ReservationResponse](t, doJSON(t, h, http.MethodPost, "/reservations", CreateReservationRequest{
		ProviderID: strPtr("tanaka"),
		Date:       mon,
		Time:       "09:40",
		PatientRef: "card-1",
	}))

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/reservations/%d/cancel", created.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The freed slot can be rebooked.
	rec = doJSON(t, h, http.MethodPost, "/reservations", CreateReservationRequest{
		ProviderID: strPtr("tanaka"),
		Date:       mon,
		Time:       "09:40",
		PatientRef: "card-2",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCancelUnknownReservation(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/reservations/9999/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/reservations/abc/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoveReservationAndHistoryEndpoints(t *testing.T) {
	h := newTestRouter(t)
	mon := futureMonday()

	created := decode[ReservationResponse](t, doJSON(t, h, http.MethodPost, "/reservations", CreateReservationRequest{
		ProviderID: strPtr("tanaka"),
		Date:       mon,
		Time:       "10:00",
		PatientRef: "card-1",
	}))

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/reservations/%d/move", created.ID), MoveReservationRequest{
		Date: mon,
		Time: "10:20",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	moved := decode[ReservationResponse](t, rec)
	assert.Equal(t, "10:20", moved.Time)
	require.NotNil(t, moved.PreferredProviderID)
	assert.Equal(t, "tanaka", *moved.PreferredProviderID)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/reservations/%d/moves", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	moves := decode[[]MoveHistoryResponse](t, rec)
	require.Len(t, moves, 1)
	assert.Equal(t, "10:00", moves[0].FromTime)
	assert.Equal(t, "10:20", moves[0].ToTime)
}

func TestListReservationsEndpoint(t *testing.T) {
	h := newTestRouter(t)
	mon := futureMonday()

	for _, r := range []CreateReservationRequest{
		{ProviderID: strPtr("tanaka"), Date: mon, Time: "09:00", PatientRef: "card-1"},
		{ProviderID: strPtr("suzuki"), Date: mon, Time: "09:00", PatientRef: "card-2"},
	} {
		require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/reservations", r).Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/reservations?date="+mon, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ReservationResponse](t, rec), 2)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/reservations?date=%s&provider_id=suzuki", mon), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]ReservationResponse](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "card-2", rows[0].PatientRef)

	rec = doJSON(t, h, http.MethodGet, "/reservations?patient_ref=card-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ReservationResponse](t, rec), 1)
}

func TestResolveEndpoint(t *testing.T) {
	h := newTestRouter(t)
	mon := futureMonday()

	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/reservations", CreateReservationRequest{
		Date:       mon,
		Time:       "09:00",
		PatientRef: "card-1",
	}).Code)

	rec := doJSON(t, h, http.MethodPost, "/assignments/resolve", ResolveRequest{Date: mon})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ResolveResponse](t, rec)
	assert.Equal(t, mon, resp.Date)
	assert.Equal(t, 1, resp.AssignedCount)
	assert.Zero(t, resp.UnassignedCount)
}

func TestMigrateEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/conflicts/migrate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[MigrateResponse](t, rec)
	assert.Zero(t, resp.MovedCount)
	assert.Zero(t, resp.UnresolvedCount)
}

func TestLivenessEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[LivenessResponse](t, rec).Status)
}

func strPtr(s string) *string { return &s }
