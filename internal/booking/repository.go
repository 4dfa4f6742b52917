package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentTypeNotFound = errors.New("appointment type not found")
	ErrBookingNotFound         = errors.New("booking not found")
)

// BookingQuery is the predicate set for listings. Nil fields are not
// applied. From/To bound slot_start as a half-open interval.
type BookingQuery struct {
	SubjectID         *uuid.UUID
	AppointmentTypeID *uuid.UUID
	From              *time.Time
	To                *time.Time
	State             StateFilter
}

// Repository contains all DB interactions needed by the service.
// Soft-deleted rows are invisible to every method except GetBookingByID,
// which returns them so history stays addressable.
type Repository interface {
	GetAppointmentTypeByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error)

	// CreateBooking inserts the row guarded by the active-slot unique
	// constraint; a conflict surfaces as ErrSlotUnavailable. This is the
	// single conditional write the reservation invariant rests on.
	CreateBooking(ctx context.Context, appointmentTypeID, subjectID uuid.UUID, slotStart time.Time) (*Booking, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// CancelBooking sets canceled_at only if the row is still active,
	// returning ErrBookingNotFound when the condition no longer holds.
	CancelBooking(ctx context.Context, id uuid.UUID, at time.Time) (*Booking, error)

	// ListActiveSlotStarts returns the occupied slot instants for a type
	// within [from, to).
	ListActiveSlotStarts(ctx context.Context, appointmentTypeID uuid.UUID, from, to time.Time) ([]time.Time, error)

	ListBookings(ctx context.Context, q BookingQuery) ([]Booking, error)
}
