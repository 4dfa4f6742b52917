package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseEvent(t *testing.T) {
	subject := uuid.New()
	slot := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

	ev, err := parseEvent(map[string]any{
		"event":            EventBooked,
		"subject_id":       subject.String(),
		"slot_start":       slot.Format(time.RFC3339),
		"appointment_type": "Meet and greet",
	})
	if err != nil {
		t.Fatalf("parseEvent error: %v", err)
	}
	if ev.Kind != EventBooked || ev.SubjectID != subject || !ev.SlotStart.Equal(slot) {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.AppointmentTypeName != "Meet and greet" {
		t.Fatalf("type name = %q", ev.AppointmentTypeName)
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	cases := []map[string]any{
		{},
		{"event": EventBooked},
		{"event": EventBooked, "subject_id": "nope", "slot_start": "2026-03-11T10:00:00Z"},
		{"event": EventCanceled, "subject_id": uuid.NewString(), "slot_start": "yesterday"},
	}

	for i, values := range cases {
		if _, err := parseEvent(values); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
