package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces published events.
const DefaultChannelPrefix = "hass:event:"

// Publisher is the subset of *redis.Client used by RedisBus.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisBus delivers to local listeners and mirrors every event onto Redis
// pub/sub for consumers outside the process.
type RedisBus struct {
	local  *MemoryBus
	pub    Publisher
	prefix string
}

func NewRedisBus(pub Publisher, prefix string) *RedisBus {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisBus{local: NewMemoryBus(), pub: pub, prefix: prefix}
}

func (b *RedisBus) Listen(eventType string, fn Listener) func() {
	return b.local.Listen(eventType, fn)
}

// Fire delivers locally first, then publishes. A publish failure is returned
// after local listeners have already run.
func (b *RedisBus) Fire(ctx context.Context, eventType string, data map[string]any) error {
	e := Event{Type: eventType, Data: data, TimeFired: b.local.clock().UTC(), Origin: "LOCAL"}
	b.local.deliver(ctx, e)

	msg, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("eventbus: encode %s: %w", eventType, err)
	}
	if err := b.pub.Publish(ctx, b.Channel(eventType), msg).Err(); err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", eventType, err)
	}
	return nil
}

// Channel returns the Redis channel an event type is published on.
func (b *RedisBus) Channel(eventType string) string {
	return b.prefix + eventType
}

// Decode parses a message published by RedisBus.
func Decode(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("eventbus: decode: %w", err)
	}
	return e, nil
}
