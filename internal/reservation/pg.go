package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const reservationColumns = `id, date, time_slot, preferred_provider_id, assigned_provider_id, status, patient_ref, created_at, updated_at`

// Helpers

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	var slot string

	err := row.Scan(
		&r.ID,
		&r.Date,
		&slot,
		&r.PreferredProviderID,
		&r.AssignedProviderID,
		&r.Status,
		&r.PatientRef,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	r.Date = schedule.DateOf(r.Date)
	r.TimeSlot = schedule.Slot(slot)
	return &r, nil
}

func collectReservations(rows pgx.Rows) ([]Reservation, error) {
	defer rows.Close()

	var result []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) CreateReservation(ctx context.Context, res Reservation) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO reservations (date, time_slot, preferred_provider_id, assigned_provider_id, status, patient_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+reservationColumns+`
	`, res.Date, string(res.TimeSlot), res.PreferredProviderID, res.AssignedProviderID, res.Status, res.PatientRef)

	created, err := scanReservation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetReservation(ctx context.Context, id int64) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (r *PgRepository) ListByDate(ctx context.Context, date time.Time) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE date = $1 AND status <> 'cancelled'
		ORDER BY id
	`, schedule.DateOf(date))
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *PgRepository) ListActive(ctx context.Context) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status <> 'cancelled'
		ORDER BY date, id
	`)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *PgRepository) ListBetween(ctx context.Context, from, to time.Time) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE date >= $1 AND date <= $2 AND status <> 'cancelled'
		ORDER BY date, id
	`, schedule.DateOf(from), schedule.DateOf(to))
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientRef string) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE patient_ref = $1
		ORDER BY date, id
	`, patientRef)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *PgRepository) SetStatus(ctx context.Context, id int64, status Status) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+reservationColumns+`
	`, id, status)
	return scanReservation(row)
}

func (r *PgRepository) AssignProvider(ctx context.Context, id int64, providerID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations
		SET assigned_provider_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, providerID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlot
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *PgRepository) Relocate(ctx context.Context, id int64, date time.Time, slot schedule.Slot, providerID *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations
		SET date = $2,
		    time_slot = $3,
		    assigned_provider_id = $4,
		    updated_at = now()
		WHERE id = $1
	`, id, schedule.DateOf(date), string(slot), providerID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlot
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *PgRepository) InsertMove(ctx context.Context, e MoveHistoryEntry) (*MoveHistoryEntry, error) {
	movedAt := e.MovedAt
	if movedAt.IsZero() {
		movedAt = time.Now()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reservation_move_history (reservation_id, from_date, from_time, from_provider_id, to_date, to_time, to_provider_id, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, moved_at
	`, e.ReservationID, e.FromDate, string(e.FromTime), e.FromProviderID, e.ToDate, string(e.ToTime), e.ToProviderID, movedAt)

	if err := row.Scan(&e.ID, &e.MovedAt); err != nil {
		return nil, fmt.Errorf("insert move history: %w", err)
	}
	return &e, nil
}

func (r *PgRepository) ListMoves(ctx context.Context, reservationID int64) ([]MoveHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reservation_id, from_date, from_time, from_provider_id, to_date, to_time, to_provider_id, moved_at
		FROM reservation_move_history
		WHERE reservation_id = $1
		ORDER BY moved_at, id
	`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MoveHistoryEntry
	for rows.Next() {
		var e MoveHistoryEntry
		var fromTime, toTime string
		err := rows.Scan(&e.ID, &e.ReservationID, &e.FromDate, &fromTime, &e.FromProviderID, &e.ToDate, &toTime, &e.ToProviderID, &e.MovedAt)
		if err != nil {
			return nil, err
		}
		e.FromDate = schedule.DateOf(e.FromDate)
		e.ToDate = schedule.DateOf(e.ToDate)
		e.FromTime = schedule.Slot(fromTime)
		e.ToTime = schedule.Slot(toTime)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListProviders(ctx context.Context) ([]schedule.Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, color, template
		FROM providers
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.Provider
	for rows.Next() {
		var p schedule.Provider
		var raw []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &p.Template); err != nil {
			return nil, fmt.Errorf("decode template for provider %s: %w", p.ID, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListClosedDates(ctx context.Context) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date FROM holiday_overrides ORDER BY date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		result = append(result, schedule.DateOf(d))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
