package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	AppointmentTypeID string `json:"appointment_type_id"`
	SlotStart         string `json:"slot_start"`
}

type BookingResponse struct {
	ID                uuid.UUID  `json:"id"`
	AppointmentTypeID uuid.UUID  `json:"appointment_type_id"`
	SubjectID         uuid.UUID  `json:"subject_id"`
	SlotStart         time.Time  `json:"slot_start"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type SlotResponse struct {
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	Cutoff    time.Time `json:"cutoff"`
	Available bool      `json:"available"`
}

type AvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
