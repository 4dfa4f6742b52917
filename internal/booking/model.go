package booking

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdopter = "adopter"
	RoleAdmin   = "admin"
)

// Principal is the already-authenticated caller. Identity and token
// handling live outside this service; we only see id and role.
type Principal struct {
	ID   uuid.UUID
	Role string
}

// AppointmentType is immutable reference data, looked up but never
// mutated here.
type AppointmentType struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Booking struct {
	ID                uuid.UUID
	AppointmentTypeID uuid.UUID
	SubjectID         uuid.UUID
	SlotStart         time.Time
	CanceledAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// Active reports whether the booking still occupies its slot.
func (b *Booking) Active() bool {
	return b.CanceledAt == nil && b.DeletedAt == nil
}

type StateFilter string

const (
	StateAny      StateFilter = ""
	StateActive   StateFilter = "active"
	StateCanceled StateFilter = "canceled"
)

// ListFilter narrows booking listings. Date is a calendar date in the
// booking zone ("2006-01-02") matched against the full day span.
type ListFilter struct {
	AppointmentTypeID *uuid.UUID
	Date              string
	State             StateFilter
}

// Slot is one row of an availability response, in timetable order.
type Slot struct {
	Label     string
	Start     time.Time
	Cutoff    time.Time
	Available bool
}
