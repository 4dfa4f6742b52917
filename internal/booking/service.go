package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var (
	ErrForbidden                 = errors.New("subject does not have the adopter role")
	ErrInvalidSlot               = errors.New("slot start does not match the daily timetable")
	ErrPastDateNotBookable       = errors.New("date is in the past")
	ErrPastSlotNotBookable       = errors.New("slot start is in the past")
	ErrSlotUnavailable           = errors.New("slot already has an active booking")
	ErrCancellationWindowExpired = errors.New("cancellation window has expired")
)

// Notifier delivers booking notifications. Delivery is best-effort:
// the ledger logs failures and never rolls back a committed write over
// them.
type Notifier interface {
	NotifyBooked(ctx context.Context, subjectID uuid.UUID, slotStart time.Time, appointmentTypeName string) error
	NotifyCanceled(ctx context.Context, subjectID uuid.UUID, slotStart time.Time, appointmentTypeName string) error
}

// Service is the booking ledger plus the read-side availability
// resolver. It is the only mutator of booking state; the uniqueness
// invariant itself lives in the storage layer's partial unique
// constraint, so concurrent reservations for the same slot resolve to
// exactly one winner without any application-level locking.
type Service struct {
	repo     Repository
	cal      *Calendar
	clock    Clock
	notifier Notifier
}

func NewService(repo Repository, cal *Calendar, clock Clock, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		cal:      cal,
		clock:    clock,
		notifier: notifier,
	}
}

// GetAvailability lists the day's timetable slots with their cutoffs
// and availability as of now. Advisory only; Reserve re-checks
// atomically.
func (s *Service) GetAvailability(ctx context.Context, appointmentTypeID uuid.UUID, date string) ([]Slot, error) {
	if _, err := s.repo.GetAppointmentTypeByID(ctx, appointmentTypeID); err != nil {
		if errors.Is(err, ErrAppointmentTypeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment type: %w", err)
	}

	day, err := s.cal.ParseDate(date)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if day.Before(s.cal.StartOfDay(now)) {
		return nil, ErrPastDateNotBookable
	}

	taken, err := s.repo.ListActiveSlotStarts(ctx, appointmentTypeID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}

	return ResolveDay(s.cal, now, day, taken), nil
}

// Reserve books a slot for the subject. The insert is a single
// conditional write: losing the race against another subject surfaces
// as ErrSlotUnavailable, and the caller should re-read availability
// before offering a retry.
func (s *Service) Reserve(ctx context.Context, p Principal, appointmentTypeID uuid.UUID, slotStart time.Time) (*Booking, error) {
	if p.Role != RoleAdopter {
		return nil, ErrForbidden
	}

	typ, err := s.repo.GetAppointmentTypeByID(ctx, appointmentTypeID)
	if err != nil {
		if errors.Is(err, ErrAppointmentTypeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment type: %w", err)
	}

	if !s.cal.IsSlot(slotStart) {
		return nil, ErrInvalidSlot
	}

	now := s.clock.Now()
	if slotStart.Before(s.cal.HourFloor(now)) {
		return nil, ErrPastSlotNotBookable
	}

	created, err := s.repo.CreateBooking(ctx, appointmentTypeID, p.ID, slotStart)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if err := s.notifier.NotifyBooked(ctx, created.SubjectID, created.SlotStart, typ.Name); err != nil {
		log.Printf("booking %s reserved but notification failed: %v", created.ID, err)
	}

	return created, nil
}

// Cancel marks the subject's booking canceled, provided the
// cancellation window (one hour before the slot) has not closed.
// Missing, soft-deleted, foreign-owned and already-canceled bookings
// all answer ErrBookingNotFound so callers cannot probe for other
// subjects' bookings.
func (s *Service) Cancel(ctx context.Context, p Principal, bookingID uuid.UUID) (*Booking, error) {
	if p.Role != RoleAdopter {
		return nil, ErrForbidden
	}

	b, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.DeletedAt != nil || b.SubjectID != p.ID || b.CanceledAt != nil {
		return nil, ErrBookingNotFound
	}

	now := s.clock.Now()
	limit := b.SlotStart.Add(-advanceNotice)
	if !now.Before(limit) {
		return nil, ErrCancellationWindowExpired
	}

	// The update is conditioned on the row still being active, so a
	// concurrent cancel of the same booking resolves to one winner.
	updated, err := s.repo.CancelBooking(ctx, bookingID, now)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	typeName := ""
	if typ, err := s.repo.GetAppointmentTypeByID(ctx, updated.AppointmentTypeID); err == nil {
		typeName = typ.Name
	}
	if err := s.notifier.NotifyCanceled(ctx, updated.SubjectID, updated.SlotStart, typeName); err != nil {
		log.Printf("booking %s canceled but notification failed: %v", updated.ID, err)
	}

	return updated, nil
}

// ListForSubject lists the subject's own bookings.
func (s *Service) ListForSubject(ctx context.Context, subjectID uuid.UUID, f ListFilter) ([]Booking, error) {
	q, err := s.buildQuery(f)
	if err != nil {
		return nil, err
	}
	q.SubjectID = &subjectID

	bookings, err := s.repo.ListBookings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListAll lists bookings across all subjects.
func (s *Service) ListAll(ctx context.Context, f ListFilter) ([]Booking, error) {
	q, err := s.buildQuery(f)
	if err != nil {
		return nil, err
	}

	bookings, err := s.repo.ListBookings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (s *Service) buildQuery(f ListFilter) (BookingQuery, error) {
	q := BookingQuery{
		AppointmentTypeID: f.AppointmentTypeID,
		State:             f.State,
	}

	if f.Date != "" {
		day, err := s.cal.ParseDate(f.Date)
		if err != nil {
			return BookingQuery{}, err
		}
		end := day.AddDate(0, 0, 1)
		q.From = &day
		q.To = &end
	}

	return q, nil
}
