package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pawhub/adoption-scheduling/internal/booking"
)

// BookingService is the slice of the booking engine the HTTP layer
// drives; the concrete implementation is *booking.Service.
type BookingService interface {
	GetAvailability(ctx context.Context, appointmentTypeID uuid.UUID, date string) ([]booking.Slot, error)
	Reserve(ctx context.Context, p booking.Principal, appointmentTypeID uuid.UUID, slotStart time.Time) (*booking.Booking, error)
	Cancel(ctx context.Context, p booking.Principal, bookingID uuid.UUID) (*booking.Booking, error)
	ListForSubject(ctx context.Context, subjectID uuid.UUID, f booking.ListFilter) ([]booking.Booking, error)
	ListAll(ctx context.Context, f booking.ListFilter) ([]booking.Booking, error)
}

func availabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typeID, err := uuid.Parse(r.URL.Query().Get("appointment_type_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_type_id", "appointment_type_id must be a valid UUID")
			return
		}

		date := r.URL.Query().Get("date")
		slots, err := svc.GetAvailability(r.Context(), typeID, date)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := AvailabilityResponse{
			Date:  date,
			Slots: make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				Label:     s.Label,
				Start:     s.Start,
				Cutoff:    s.Cutoff,
				Available: s.Available,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_subject", "no authenticated subject")
			return
		}

		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		typeID, err := uuid.Parse(req.AppointmentTypeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_type_id", "appointment_type_id must be a valid UUID")
			return
		}

		slotStart, err := time.Parse(time.RFC3339, req.SlotStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_start", "slot_start must be an RFC3339 timestamp")
			return
		}

		b, err := svc.Reserve(r.Context(), p, typeID, slotStart)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func cancelBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_subject", "no authenticated subject")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := svc.Cancel(r.Context(), p, id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func listBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_subject", "no authenticated subject")
			return
		}

		var f booking.ListFilter
		if raw := r.URL.Query().Get("appointment_type_id"); raw != "" {
			typeID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_type_id", "appointment_type_id must be a valid UUID")
				return
			}
			f.AppointmentTypeID = &typeID
		}
		f.Date = r.URL.Query().Get("date")
		switch state := r.URL.Query().Get("state"); state {
		case "", "active", "canceled":
			f.State = booking.StateFilter(state)
		default:
			writeError(w, http.StatusBadRequest, "invalid_state", "state must be active or canceled")
			return
		}

		var (
			bookings []booking.Booking
			err      error
		)
		if p.Role == booking.RoleAdmin {
			bookings, err = svc.ListAll(r.Context(), f)
		} else {
			bookings, err = svc.ListForSubject(r.Context(), p.ID, f)
		}
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, toBookingResponse(&bookings[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:                b.ID,
		AppointmentTypeID: b.AppointmentTypeID,
		SubjectID:         b.SubjectID,
		SlotStart:         b.SlotStart,
		CanceledAt:        b.CanceledAt,
		CreatedAt:         b.CreatedAt,
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be a valid YYYY-MM-DD calendar date")
	case errors.Is(err, booking.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
	case errors.Is(err, booking.ErrPastDateNotBookable):
		writeError(w, http.StatusBadRequest, "past_date_not_bookable", err.Error())
	case errors.Is(err, booking.ErrPastSlotNotBookable):
		writeError(w, http.StatusBadRequest, "past_slot_not_bookable", err.Error())
	case errors.Is(err, booking.ErrCancellationWindowExpired):
		writeError(w, http.StatusBadRequest, "cancellation_window_expired", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrAppointmentTypeNotFound):
		writeError(w, http.StatusNotFound, "appointment_type_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		// Storage and other unexpected failures stay opaque.
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
