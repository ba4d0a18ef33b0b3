package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

func availabilityByTime(rows []SlotAvailability) map[schedule.Slot]SlotAvailability {
	out := make(map[schedule.Slot]SlotAvailability, len(rows))
	for _, r := range rows {
		out[r.Time] = r
	}
	return out
}

func TestAvailabilitySundayEmpty(t *testing.T) {
	svc, _ := newClinicService(t)

	rows, err := svc.Availability(context.Background(), testDate(t, "2026-03-01"), strPtr("tanaka"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAvailabilityProviderMarksBookedSlots(t *testing.T) {
	svc, _ := newClinicService(t)
	ctx := context.Background()
	mon := testDate(t, "2026-03-02")

	_, err := svc.CreateReservation(ctx, strPtr("tanaka"), mon, "09:20", "card-1")
	require.NoError(t, err)

	rows, err := svc.Availability(ctx, mon, strPtr("tanaka"))
	require.NoError(t, err)
	byTime := availabilityByTime(rows)

	assert.False(t, byTime["09:20"].Available)
	assert.True(t, byTime["09:00"].Available)
	assert.True(t, byTime["09:40"].Available)
}

func TestAvailabilityNeverShowsOccupiedSlot(t *testing.T) {
	svc, _ := newClinicService(t)
	ctx := context.Background()
	mon := testDate(t, "2026-03-02")

	for _, tc := range []struct {
		provider *string
		time     schedule.Slot
	}{
		{strPtr("tanaka"), "09:00"},
		{strPtr("suzuki"), "16:20"},
		{strPtr("sato"), "11:00"},
	} {
		_, err := svc.CreateReservation(ctx, tc.provider, mon, tc.time, "card")
		require.NoError(t, err)

		rows, err := svc.Availability(ctx, mon, tc.provider)
		require.NoError(t, err)
		assert.False(t, availabilityByTime(rows)[tc.time].Available)
	}
}

func TestAvailabilityUnionRemainingCounts(t *testing.T) {
	svc, _ := newClinicService(t)
	ctx := context.Background()
	mon := testDate(t, "2026-03-02")

	rows, err := svc.Availability(ctx, mon, nil)
	require.NoError(t, err)
	byTime := availabilityByTime(rows)

	// All three providers work 16:00 on Mondays; only tanaka and suzuki
	// cover 09:00.
	require.NotNil(t, byTime["16:00"].RemainingCount)
	assert.Equal(t, 3, *byTime["16:00"].RemainingCount)
	assert.Equal(t, 2, *byTime["09:00"].RemainingCount)

	_, err = svc.CreateReservation(ctx, strPtr("tanaka"), mon, "16:00", "card-1")
	require.NoError(t, err)

	rows, err = svc.Availability(ctx, mon, nil)
	require.NoError(t, err)
	byTime = availabilityByTime(rows)

	assert.Equal(t, 2, *byTime["16:00"].RemainingCount)
	assert.True(t, byTime["16:00"].Available)
}

func TestAvailabilityUnionSlotExhausted(t *testing.T) {
	svc, _ := newClinicService(t)
	ctx := context.Background()
	mon := testDate(t, "2026-03-02")

	// 09:00 is covered by tanaka and suzuki only; book both.
	_, err := svc.CreateReservation(ctx, strPtr("tanaka"), mon, "09:00", "card-1")
	require.NoError(t, err)
	_, err = svc.CreateReservation(ctx, strPtr("suzuki"), mon, "09:00", "card-2")
	require.NoError(t, err)

	rows, err := svc.Availability(ctx, mon, nil)
	require.NoError(t, err)
	byTime := availabilityByTime(rows)

	assert.False(t, byTime["09:00"].Available)
	assert.Equal(t, 0, *byTime["09:00"].RemainingCount)
}

func monProvider() []schedule.Provider {
	return []schedule.Provider{{
		ID:   "aoki",
		Name: "Dr. Aoki",
		Template: schedule.Template{
			Morning: []schedule.Slot{"09:00", "09:20"},
			Days: map[time.Weekday]schedule.DayRule{
				time.Monday: {Kind: schedule.MorningOnly},
			},
		},
	}}
}

func TestMonthlyAvailability(t *testing.T) {
	svc, _ := newTestService(t, monProvider(), []time.Time{testDate(t, "2026-03-09")})
	ctx := context.Background()

	_, err := svc.CreateReservation(ctx, strPtr("aoki"), testDate(t, "2026-03-02"), "09:00", "card-1")
	require.NoError(t, err)

	days, err := svc.MonthlyAvailability(ctx, 2026, time.March, nil)
	require.NoError(t, err)
	require.Len(t, days, 31)

	byDay := make(map[string]DayAvailability)
	for _, d := range days {
		byDay[schedule.DateKey(d.Date)] = d
	}

	assert.Equal(t, DayAvailability{Date: testDate(t, "2026-03-02"), Available: 1, Total: 2}, byDay["2026-03-02"])
	// Holiday-closed Monday contributes nothing.
	assert.Equal(t, 0, byDay["2026-03-09"].Total)
	// Ordinary Monday, fully open.
	assert.Equal(t, DayAvailability{Date: testDate(t, "2026-03-16"), Available: 2, Total: 2}, byDay["2026-03-16"])
	// Sundays and off days are 0/0.
	assert.Equal(t, 0, byDay["2026-03-01"].Total)
	assert.Equal(t, 0, byDay["2026-03-03"].Total)
}

func TestMonthlyAvailabilityProviderFilter(t *testing.T) {
	svc, _ := newClinicService(t)
	ctx := context.Background()

	days, err := svc.MonthlyAvailability(ctx, 2026, time.March, strPtr("suzuki"))
	require.NoError(t, err)

	byDay := make(map[string]DayAvailability)
	for _, d := range days {
		byDay[schedule.DateKey(d.Date)] = d
	}

	// Suzuki: full Monday (24 slots), morning-only Tuesday (12), no Saturday.
	assert.Equal(t, 24, byDay["2026-03-02"].Total)
	assert.Equal(t, 12, byDay["2026-03-03"].Total)
	assert.Equal(t, 0, byDay["2026-03-07"].Total)
}
