package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activeSlotConstraint = "bookings_active_type_slot_key"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointmentType(row pgx.Row) (*AppointmentType, error) {
	var t AppointmentType

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentTypeNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var canceledAt, deletedAt *time.Time

	err := row.Scan(
		&b.ID,
		&b.AppointmentTypeID,
		&b.SubjectID,
		&b.SlotStart,
		&canceledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.CanceledAt = canceledAt
	b.DeletedAt = deletedAt
	return &b, nil
}

// Interface methods

func (r *PgRepository) GetAppointmentTypeByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM appointment_types
		WHERE id = $1
	`, id)
	return scanAppointmentType(row)
}

func (r *PgRepository) CreateBooking(ctx context.Context, appointmentTypeID, subjectID uuid.UUID, slotStart time.Time) (*Booking, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, appointment_type_id, subject_id, slot_start, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, appointment_type_id, subject_id, slot_start, canceled_at, created_at, updated_at, deleted_at
	`, id, appointmentTypeID, subjectID, slotStart)

	b, err := scanBooking(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeSlotConstraint {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	return b, nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_type_id, subject_id, slot_start, canceled_at, created_at, updated_at, deleted_at
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) CancelBooking(ctx context.Context, id uuid.UUID, at time.Time) (*Booking, error) {
	// Conditioned on the row still being active so a concurrent cancel
	// loses cleanly instead of overwriting canceled_at.
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET canceled_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND canceled_at IS NULL
		  AND deleted_at IS NULL
		RETURNING id, appointment_type_id, subject_id, slot_start, canceled_at, created_at, updated_at, deleted_at
	`, id, at)

	return scanBooking(row)
}

func (r *PgRepository) ListActiveSlotStarts(ctx context.Context, appointmentTypeID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_start
		FROM bookings
		WHERE appointment_type_id = $1
		  AND slot_start >= $2
		  AND slot_start < $3
		  AND canceled_at IS NULL
		  AND deleted_at IS NULL
	`, appointmentTypeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListBookings(ctx context.Context, q BookingQuery) ([]Booking, error) {
	sql := `
		SELECT id, appointment_type_id, subject_id, slot_start, canceled_at, created_at, updated_at, deleted_at
		FROM bookings
		WHERE deleted_at IS NULL`
	var args []any

	if q.SubjectID != nil {
		args = append(args, *q.SubjectID)
		sql += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if q.AppointmentTypeID != nil {
		args = append(args, *q.AppointmentTypeID)
		sql += fmt.Sprintf(" AND appointment_type_id = $%d", len(args))
	}
	if q.From != nil {
		args = append(args, *q.From)
		sql += fmt.Sprintf(" AND slot_start >= $%d", len(args))
	}
	if q.To != nil {
		args = append(args, *q.To)
		sql += fmt.Sprintf(" AND slot_start < $%d", len(args))
	}
	switch q.State {
	case StateActive:
		sql += " AND canceled_at IS NULL"
	case StateCanceled:
		sql += " AND canceled_at IS NOT NULL"
	}

	sql += " ORDER BY slot_start ASC"

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
