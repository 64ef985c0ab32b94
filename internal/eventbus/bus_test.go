package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestMemoryBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := NewMemoryBus()
	var got []string
	b.Listen("x", func(_ context.Context, e Event) { got = append(got, "a:"+e.Type) })
	b.Listen(MatchAll, func(_ context.Context, e Event) { got = append(got, "all:"+e.Type) })
	b.Listen("y", func(_ context.Context, e Event) { got = append(got, "y:"+e.Type) })

	_ = b.Fire(context.Background(), "x", nil)
	_ = b.Fire(context.Background(), "y", nil)

	want := []string{"a:x", "all:x", "all:y", "y:y"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMemoryBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	n := 0
	unsub := b.Listen("x", func(context.Context, Event) { n++ })
	_ = b.Fire(context.Background(), "x", nil)
	unsub()
	unsub()
	_ = b.Fire(context.Background(), "x", nil)
	if n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
}

type fakePublisher struct {
	channels []string
	messages []string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	if b, ok := message.([]byte); ok {
		f.messages = append(f.messages, string(b))
	}
	return redis.NewIntResult(1, f.err)
}

func TestRedisBus_PublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	b := NewRedisBus(pub, "")
	local := 0
	b.Listen("hacs_unifi_talk_webhook", func(context.Context, Event) { local++ })

	if err := b.Fire(context.Background(), "hacs_unifi_talk_webhook", map[string]any{"event": "ringing"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if local != 1 {
		t.Fatalf("expected local delivery")
	}
	if len(pub.channels) != 1 || pub.channels[0] != "hass:event:hacs_unifi_talk_webhook" {
		t.Fatalf("unexpected channels %v", pub.channels)
	}
	e, err := Decode(pub.messages[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Type != "hacs_unifi_talk_webhook" || e.Data["event"] != "ringing" {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestRedisBus_ReturnsPublishError(t *testing.T) {
	boom := errors.New("conn refused")
	b := NewRedisBus(&fakePublisher{err: boom}, "p:")
	err := b.Fire(context.Background(), "x", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}
