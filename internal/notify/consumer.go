package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is one notification read back off the stream.
type Event struct {
	Kind                string
	SubjectID           uuid.UUID
	SlotStart           time.Time
	AppointmentTypeName string
}

// StreamConsumer tails the notification stream and hands each event to
// a handler. Delivery is at-most-once: the worker advances past
// malformed entries rather than wedging the stream.
type StreamConsumer struct {
	client *redis.Client
	stream string
	block  time.Duration
	lastID string
}

func NewStreamConsumer(client *redis.Client, stream string, block time.Duration) *StreamConsumer {
	return &StreamConsumer{
		client: client,
		stream: stream,
		block:  block,
		lastID: "$",
	}
}

// Run blocks until ctx is done, invoking handler for every event.
func (c *StreamConsumer) Run(ctx context.Context, handler func(ctx context.Context, ev Event)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := c.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.stream, c.lastID},
			Count:   32,
			Block:   c.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Printf("read notification stream: %v", err)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				c.lastID = msg.ID
				ev, err := parseEvent(msg.Values)
				if err != nil {
					log.Printf("skip malformed notification %s: %v", msg.ID, err)
					continue
				}
				handler(ctx, ev)
			}
		}
	}
}

func parseEvent(values map[string]any) (Event, error) {
	kind, _ := values["event"].(string)
	if kind == "" {
		return Event{}, errors.New("missing event kind")
	}

	rawSubject, _ := values["subject_id"].(string)
	subjectID, err := uuid.Parse(rawSubject)
	if err != nil {
		return Event{}, fmt.Errorf("invalid subject_id: %w", err)
	}

	rawStart, _ := values["slot_start"].(string)
	slotStart, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return Event{}, fmt.Errorf("invalid slot_start: %w", err)
	}

	typeName, _ := values["appointment_type"].(string)

	return Event{
		Kind:                kind,
		SubjectID:           subjectID,
		SlotStart:           slotStart,
		AppointmentTypeName: typeName,
	}, nil
}
