package booking

import (
	"errors"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

const dateLayout = "2006-01-02"

// Daily timetable: nine hourly slots, 09:00 through 17:00 inclusive,
// identical for every appointment type.
const (
	firstSlotHour = 9
	lastSlotHour  = 17
	slotsPerDay   = lastSlotHour - firstSlotHour + 1
)

// Calendar generates the bookable instants of a day in one fixed zone.
// It is pure: no booking state, no clock.
type Calendar struct {
	zone *time.Location
}

func NewCalendar(zone *time.Location) *Calendar {
	if zone == nil {
		zone = time.UTC
	}
	return &Calendar{zone: zone}
}

func (c *Calendar) Zone() *time.Location { return c.zone }

// ParseDate parses a "2006-01-02" string into the start of that day in
// the booking zone.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, c.zone)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// StartOfDay truncates t to midnight in the booking zone.
func (c *Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.zone)
}

// HourFloor truncates t to the start of its hour in the booking zone.
// All advance-notice comparisons use this reference, never the exact
// second.
func (c *Calendar) HourFloor(t time.Time) time.Time {
	local := t.In(c.zone)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, c.zone)
}

// DaySlots returns the day's slot-start instants in timetable order.
func (c *Calendar) DaySlots(day time.Time) []time.Time {
	local := day.In(c.zone)
	slots := make([]time.Time, 0, slotsPerDay)
	for h := firstSlotHour; h <= lastSlotHour; h++ {
		slots = append(slots, time.Date(local.Year(), local.Month(), local.Day(), h, 0, 0, 0, c.zone))
	}
	return slots
}

// IsSlot reports whether t lands exactly on a timetable instant.
// Arbitrary instants are rejected by the ledger on the strength of
// this check.
func (c *Calendar) IsSlot(t time.Time) bool {
	local := t.In(c.zone)
	if local.Minute() != 0 || local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	h := local.Hour()
	return h >= firstSlotHour && h <= lastSlotHour
}
