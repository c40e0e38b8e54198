package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"book-rental-engine/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// EventPublisher implements ports.EventPublisher by appending events to a
// Redis stream. The notification service consumes the stream; the engine
// never waits on delivery.
type EventPublisher struct {
	client *goredis.Client
	stream string
	maxLen int64
}

// NewEventPublisher creates a Redis-stream-backed event publisher.
func NewEventPublisher(client *goredis.Client) *EventPublisher {
	return &EventPublisher{
		client: client,
		stream: "events:rental",
		maxLen: 10000,
	}
}

// Publish appends one event to the stream.
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(event.Type),
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis event publish: %w", err)
	}
	return nil
}
