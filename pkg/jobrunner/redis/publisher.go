package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultEventChannel = "weave:events"

type eventEnvelope struct {
	Type  domain.EventType `json:"type"`
	Event domain.Event     `json:"event"`
}

// EventPublisher publishes node run events on a Redis channel as JSON.
type EventPublisher struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisher {
	if channel == "" {
		channel = DefaultEventChannel
	}

	return &EventPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *EventPublisher) PublishEvent(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(eventEnvelope{Type: event.GetType(), Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
