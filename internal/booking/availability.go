package booking

import "time"

const advanceNotice = time.Hour

const slotLabelLayout = "15:04"

// ResolveDay computes the availability of every timetable slot for one
// day. A slot is available when its cutoff (start minus the advance
// notice) is still strictly ahead of the current hour floor and no
// active booking occupies the instant. Pure and read-only; the ledger
// re-checks atomically on reserve, so this is advisory.
func ResolveDay(cal *Calendar, now time.Time, day time.Time, taken []time.Time) []Slot {
	ref := cal.HourFloor(now)

	occupied := make(map[int64]struct{}, len(taken))
	for _, t := range taken {
		occupied[t.Unix()] = struct{}{}
	}

	starts := cal.DaySlots(day)
	out := make([]Slot, 0, len(starts))
	for _, start := range starts {
		cutoff := start.Add(-advanceNotice)
		_, booked := occupied[start.Unix()]
		out = append(out, Slot{
			Label:     start.In(cal.Zone()).Format(slotLabelLayout),
			Start:     start,
			Cutoff:    cutoff,
			Available: cutoff.After(ref) && !booked,
		})
	}
	return out
}
