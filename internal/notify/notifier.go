package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EventBooked   = "BOOKING_RESERVED"
	EventCanceled = "BOOKING_CANCELED"
)

// StreamNotifier publishes booking events to a Redis stream for an
// out-of-process delivery worker. It implements booking.Notifier.
type StreamNotifier struct {
	client *redis.Client
	stream string
}

func NewStreamNotifier(client *redis.Client, stream string) *StreamNotifier {
	return &StreamNotifier{client: client, stream: stream}
}

func (n *StreamNotifier) NotifyBooked(ctx context.Context, subjectID uuid.UUID, slotStart time.Time, appointmentTypeName string) error {
	return n.publish(ctx, EventBooked, subjectID, slotStart, appointmentTypeName)
}

func (n *StreamNotifier) NotifyCanceled(ctx context.Context, subjectID uuid.UUID, slotStart time.Time, appointmentTypeName string) error {
	return n.publish(ctx, EventCanceled, subjectID, slotStart, appointmentTypeName)
}

func (n *StreamNotifier) publish(ctx context.Context, event string, subjectID uuid.UUID, slotStart time.Time, appointmentTypeName string) error {
	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"event":            event,
			"subject_id":       subjectID.String(),
			"slot_start":       slotStart.Format(time.RFC3339),
			"appointment_type": appointmentTypeName,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// ConsoleNotifier logs instead of delivering, for dev setups without
// Redis and for the notify worker's terminal output.
type ConsoleNotifier struct{}

func NewConsoleNotifier() *ConsoleNotifier { return &ConsoleNotifier{} }

func (ConsoleNotifier) NotifyBooked(ctx context.Context, subjectID uuid.UUID, slotStart time.Time, appointmentTypeName string) error {
	log.Printf("[notify] booked: subject=%s slot=%s type=%q", subjectID, slotStart.Format(time.RFC3339), appointmentTypeName)
	return nil
}

func (ConsoleNotifier) NotifyCanceled(ctx context.Context, subjectID uuid.UUID, slotStart time.Time, appointmentTypeName string) error {
	log.Printf("[notify] canceled: subject=%s slot=%s type=%q", subjectID, slotStart.Format(time.RFC3339), appointmentTypeName)
	return nil
}
