package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository that enforces the active-slot
// uniqueness atomically under its mutex, the way the partial unique
// index does in Postgres.
type memRepo struct {
	mu       sync.Mutex
	types    map[uuid.UUID]AppointmentType
	bookings map[uuid.UUID]Booking
}

func newMemRepo() *memRepo {
	return &memRepo{
		types:    make(map[uuid.UUID]AppointmentType),
		bookings: make(map[uuid.UUID]Booking),
	}
}

func (m *memRepo) addType(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.types[id] = AppointmentType{ID: id, Name: name}
	return id
}

func (m *memRepo) GetAppointmentTypeByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.types[id]
	if !ok {
		return nil, ErrAppointmentTypeNotFound
	}
	return &t, nil
}

func (m *memRepo) CreateBooking(ctx context.Context, appointmentTypeID, subjectID uuid.UUID, slotStart time.Time) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.Active() && b.AppointmentTypeID == appointmentTypeID && b.SlotStart.Equal(slotStart) {
			return nil, ErrSlotUnavailable
		}
	}
	b := Booking{
		ID:                uuid.New(),
		AppointmentTypeID: appointmentTypeID,
		SubjectID:         subjectID,
		SlotStart:         slotStart,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	m.bookings[b.ID] = b
	return &b, nil
}

func (m *memRepo) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *memRepo) CancelBooking(ctx context.Context, id uuid.UUID, at time.Time) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || !b.Active() {
		return nil, ErrBookingNotFound
	}
	canceled := at
	b.CanceledAt = &canceled
	b.UpdatedAt = at
	m.bookings[id] = b
	return &b, nil
}

func (m *memRepo) ListActiveSlotStarts(ctx context.Context, appointmentTypeID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, b := range m.bookings {
		if b.Active() && b.AppointmentTypeID == appointmentTypeID &&
			!b.SlotStart.Before(from) && b.SlotStart.Before(to) {
			out = append(out, b.SlotStart)
		}
	}
	return out, nil
}

func (m *memRepo) ListBookings(ctx context.Context, q BookingQuery) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.DeletedAt != nil {
			continue
		}
		if q.SubjectID != nil && b.SubjectID != *q.SubjectID {
			continue
		}
		if q.AppointmentTypeID != nil && b.AppointmentTypeID != *q.AppointmentTypeID {
			continue
		}
		if q.From != nil && b.SlotStart.Before(*q.From) {
			continue
		}
		if q.To != nil && !b.SlotStart.Before(*q.To) {
			continue
		}
		if q.State == StateActive && b.CanceledAt != nil {
			continue
		}
		if q.State == StateCanceled && b.CanceledAt == nil {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out, nil
}

func (m *memRepo) softDelete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[id]
	now := time.Now()
	b.DeletedAt = &now
	m.bookings[id] = b
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type captureNotifier struct {
	mu       sync.Mutex
	booked   int
	canceled int
	fail     bool
}

func (n *captureNotifier) NotifyBooked(ctx context.Context, subjectID uuid.UUID, slotStart time.Time, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked++
	if n.fail {
		return errors.New("smtp relay down")
	}
	return nil
}

func (n *captureNotifier) NotifyCanceled(ctx context.Context, subjectID uuid.UUID, slotStart time.Time, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.canceled++
	if n.fail {
		return errors.New("smtp relay down")
	}
	return nil
}

type fixture struct {
	repo     *memRepo
	clock    *fakeClock
	notifier *captureNotifier
	svc      *Service
	typeID   uuid.UUID
	zone     *time.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc := saoPaulo(t)
	repo := newMemRepo()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, loc)}
	notifier := &captureNotifier{}
	cal := NewCalendar(loc)
	return &fixture{
		repo:     repo,
		clock:    clock,
		notifier: notifier,
		svc:      NewService(repo, cal, clock, notifier),
		typeID:   repo.addType("Meet and greet"),
		zone:     loc,
	}
}

func adopter() Principal {
	return Principal{ID: uuid.New(), Role: RoleAdopter}
}

func TestReserve_RequiresAdopterRole(t *testing.T) {
	f := newFixture(t)
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	_, err := f.svc.Reserve(context.Background(), Principal{ID: uuid.New(), Role: RoleAdmin}, f.typeID, slot)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("error = %v, want ErrForbidden", err)
	}
}

func TestReserve_UnknownAppointmentType(t *testing.T) {
	f := newFixture(t)
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	_, err := f.svc.Reserve(context.Background(), adopter(), uuid.New(), slot)
	if !errors.Is(err, ErrAppointmentTypeNotFound) {
		t.Fatalf("error = %v, want ErrAppointmentTypeNotFound", err)
	}
}

func TestReserve_RejectsOffTimetableInstant(t *testing.T) {
	f := newFixture(t)

	for _, slot := range []time.Time{
		time.Date(2026, 3, 11, 10, 30, 0, 0, f.zone),
		time.Date(2026, 3, 11, 8, 0, 0, 0, f.zone),
		time.Date(2026, 3, 11, 18, 0, 0, 0, f.zone),
	} {
		if _, err := f.svc.Reserve(context.Background(), adopter(), f.typeID, slot); !errors.Is(err, ErrInvalidSlot) {
			t.Errorf("Reserve(%v) error = %v, want ErrInvalidSlot", slot, err)
		}
	}
}

func TestReserve_PastSlotAlwaysRejected(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2026, 3, 10, 11, 45, 0, 0, f.zone))

	// 11:00 is within the current hour: the hour floor makes it "not
	// past" even though the exact instant has gone by.
	current := time.Date(2026, 3, 10, 11, 0, 0, 0, f.zone)
	if _, err := f.svc.Reserve(context.Background(), adopter(), f.typeID, current); err != nil {
		t.Fatalf("Reserve(current hour) error = %v", err)
	}

	past := time.Date(2026, 3, 10, 10, 0, 0, 0, f.zone)
	if _, err := f.svc.Reserve(context.Background(), adopter(), f.typeID, past); !errors.Is(err, ErrPastSlotNotBookable) {
		t.Fatalf("Reserve(past) error = %v, want ErrPastSlotNotBookable", err)
	}
}

func TestReserve_ExactlyOneWinnerUnderContention(t *testing.T) {
	f := newFixture(t)
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Reserve(context.Background(), adopter(), f.typeID, slot)
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if wins != 1 || losses != n-1 {
		t.Fatalf("wins = %d losses = %d, want 1 and %d", wins, losses, n-1)
	}
}

func TestReserve_SameSlotDifferentTypesDoNotContend(t *testing.T) {
	f := newFixture(t)
	otherType := f.repo.addType("Adoption interview")
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	if _, err := f.svc.Reserve(context.Background(), adopter(), f.typeID, slot); err != nil {
		t.Fatalf("first reserve error: %v", err)
	}
	if _, err := f.svc.Reserve(context.Background(), adopter(), otherType, slot); err != nil {
		t.Fatalf("other type reserve error: %v", err)
	}
}

func TestReserve_NotifierFailureDoesNotUndoBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	b, err := f.svc.Reserve(context.Background(), adopter(), f.typeID, slot)
	if err != nil {
		t.Fatalf("Reserve error = %v, want nil despite notifier failure", err)
	}
	if got, err := f.repo.GetBookingByID(context.Background(), b.ID); err != nil || !got.Active() {
		t.Fatalf("booking not persisted active: %v %v", got, err)
	}
	if f.notifier.booked != 1 {
		t.Fatalf("booked notifications = %d, want 1", f.notifier.booked)
	}
}

func TestCancel_WindowBoundary(t *testing.T) {
	f := newFixture(t)
	p := adopter()
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	b, err := f.svc.Reserve(context.Background(), p, f.typeID, slot)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	// Exactly slotStart - 1h: the window is already closed.
	f.clock.Set(slot.Add(-time.Hour))
	if _, err := f.svc.Cancel(context.Background(), p, b.ID); !errors.Is(err, ErrCancellationWindowExpired) {
		t.Fatalf("Cancel at boundary error = %v, want ErrCancellationWindowExpired", err)
	}

	// One second earlier it still succeeds.
	f.clock.Set(slot.Add(-time.Hour - time.Second))
	updated, err := f.svc.Cancel(context.Background(), p, b.ID)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if updated.CanceledAt == nil || !updated.CanceledAt.Equal(f.clock.Now()) {
		t.Fatalf("canceledAt = %v, want %v", updated.CanceledAt, f.clock.Now())
	}
	if f.notifier.canceled != 1 {
		t.Fatalf("canceled notifications = %d, want 1", f.notifier.canceled)
	}
}

func TestCancel_AlreadyCanceledIsNotFound(t *testing.T) {
	f := newFixture(t)
	p := adopter()
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	b, err := f.svc.Reserve(context.Background(), p, f.typeID, slot)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), p, b.ID); err != nil {
		t.Fatalf("first Cancel error: %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), p, b.ID); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("second Cancel error = %v, want ErrBookingNotFound", err)
	}
}

func TestCancel_OwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	owner := adopter()
	stranger := adopter()
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	b, err := f.svc.Reserve(context.Background(), owner, f.typeID, slot)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	// Not ErrForbidden: the stranger must not learn the booking exists.
	if _, err := f.svc.Cancel(context.Background(), stranger, b.ID); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("Cancel error = %v, want ErrBookingNotFound", err)
	}
}

func TestCancel_SoftDeletedIsNotFound(t *testing.T) {
	f := newFixture(t)
	p := adopter()
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	b, err := f.svc.Reserve(context.Background(), p, f.typeID, slot)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	f.repo.softDelete(b.ID)

	if _, err := f.svc.Cancel(context.Background(), p, b.ID); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("Cancel error = %v, want ErrBookingNotFound", err)
	}
}

func TestGetAvailability_DateValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.GetAvailability(context.Background(), f.typeID, "garbage"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("error = %v, want ErrInvalidDate", err)
	}
	if _, err := f.svc.GetAvailability(context.Background(), f.typeID, "2026-03-09"); !errors.Is(err, ErrPastDateNotBookable) {
		t.Fatalf("error = %v, want ErrPastDateNotBookable", err)
	}
	// Same calendar day as now is allowed.
	if _, err := f.svc.GetAvailability(context.Background(), f.typeID, "2026-03-10"); err != nil {
		t.Fatalf("same-day availability error: %v", err)
	}
	if _, err := f.svc.GetAvailability(context.Background(), uuid.New(), "2026-03-11"); !errors.Is(err, ErrAppointmentTypeNotFound) {
		t.Fatalf("error = %v, want ErrAppointmentTypeNotFound", err)
	}
}

func TestAvailabilityReflectsLedgerState(t *testing.T) {
	f := newFixture(t)
	p := adopter()
	slot := time.Date(2026, 3, 11, 14, 0, 0, 0, f.zone)

	available := func() bool {
		slots, err := f.svc.GetAvailability(context.Background(), f.typeID, "2026-03-11")
		if err != nil {
			t.Fatalf("GetAvailability error: %v", err)
		}
		for _, s := range slots {
			if s.Start.Equal(slot) {
				return s.Available
			}
		}
		t.Fatalf("slot %v not in availability response", slot)
		return false
	}

	if !available() {
		t.Fatalf("slot should start out available")
	}

	b, err := f.svc.Reserve(context.Background(), p, f.typeID, slot)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if available() {
		t.Fatalf("slot should be unavailable after reserve")
	}

	if _, err := f.svc.Cancel(context.Background(), p, b.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if !available() {
		t.Fatalf("slot should be available again after cancel")
	}
}

// Two adopters fight over tomorrow's 10:00 meet-and-greet: the loser
// only gets the slot after the winner cancels inside the window.
func TestReserveCancelRebookScenario(t *testing.T) {
	f := newFixture(t)
	subjectA := adopter()
	subjectB := adopter()
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)

	bookingA, err := f.svc.Reserve(context.Background(), subjectA, f.typeID, slot)
	if err != nil {
		t.Fatalf("A reserve error: %v", err)
	}

	if _, err := f.svc.Reserve(context.Background(), subjectB, f.typeID, slot); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("B reserve error = %v, want ErrSlotUnavailable", err)
	}

	// A cancels two hours before the slot, well inside the window.
	f.clock.Set(slot.Add(-2 * time.Hour))
	if _, err := f.svc.Cancel(context.Background(), subjectA, bookingA.ID); err != nil {
		t.Fatalf("A cancel error: %v", err)
	}

	bookingB, err := f.svc.Reserve(context.Background(), subjectB, f.typeID, slot)
	if err != nil {
		t.Fatalf("B re-reserve error: %v", err)
	}
	if bookingB.ID == bookingA.ID {
		t.Fatalf("re-booking must create a new row")
	}
}

func TestListForSubject_Filters(t *testing.T) {
	f := newFixture(t)
	p := adopter()
	other := adopter()

	slotA := time.Date(2026, 3, 11, 10, 0, 0, 0, f.zone)
	slotB := time.Date(2026, 3, 12, 11, 0, 0, 0, f.zone)

	bA, err := f.svc.Reserve(context.Background(), p, f.typeID, slotA)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if _, err := f.svc.Reserve(context.Background(), p, f.typeID, slotB); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if _, err := f.svc.Reserve(context.Background(), other, f.typeID, time.Date(2026, 3, 11, 12, 0, 0, 0, f.zone)); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	mine, err := f.svc.ListForSubject(context.Background(), p.ID, ListFilter{})
	if err != nil {
		t.Fatalf("ListForSubject error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("own bookings = %d, want 2", len(mine))
	}

	day, err := f.svc.ListForSubject(context.Background(), p.ID, ListFilter{Date: "2026-03-11"})
	if err != nil {
		t.Fatalf("ListForSubject error: %v", err)
	}
	if len(day) != 1 || !day[0].SlotStart.Equal(slotA) {
		t.Fatalf("day filter returned %v, want only %v", day, slotA)
	}

	if _, err := f.svc.ListForSubject(context.Background(), p.ID, ListFilter{Date: "bogus"}); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("error = %v, want ErrInvalidDate", err)
	}

	if _, err := f.svc.Cancel(context.Background(), p, bA.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	active, err := f.svc.ListForSubject(context.Background(), p.ID, ListFilter{State: StateActive})
	if err != nil {
		t.Fatalf("ListForSubject error: %v", err)
	}
	if len(active) != 1 || !active[0].SlotStart.Equal(slotB) {
		t.Fatalf("active filter returned %d rows, want the %v booking", len(active), slotB)
	}

	canceled, err := f.svc.ListForSubject(context.Background(), p.ID, ListFilter{State: StateCanceled})
	if err != nil {
		t.Fatalf("ListForSubject error: %v", err)
	}
	if len(canceled) != 1 || canceled[0].ID != bA.ID {
		t.Fatalf("canceled filter returned %d rows, want booking %s", len(canceled), bA.ID)
	}

	all, err := f.svc.ListAll(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll = %d rows, want 3", len(all))
	}
}
