package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublish_DeliversToNamedSubscribers(t *testing.T) {
	b := New()

	var got []Event
	b.Subscribe("query_created", func(_ context.Context, evt Event) {
		got = append(got, evt)
	})
	b.Subscribe("query_deleted", func(_ context.Context, evt Event) {
		t.Fatal("wrong subscription invoked")
	})

	b.Publish(context.Background(), "query_created", "payload")

	if assert.Len(t, got, 1) {
		assert.Equal(t, "query_created", got[0].Name)
		assert.Equal(t, "payload", got[0].Payload)
		assert.NotEmpty(t, got[0].EventID)
		assert.False(t, got[0].Timestamp.IsZero())
	}
}

func TestPublish_IsSynchronousAndOrdered(t *testing.T) {
	b := New()

	var order []string
	b.Subscribe("evt", func(_ context.Context, _ Event) { order = append(order, "first") })
	b.Subscribe("evt", func(_ context.Context, _ Event) { order = append(order, "second") })
	b.SubscribeAll(func(_ context.Context, _ Event) { order = append(order, "all") })

	b.Publish(context.Background(), "evt", nil)
	// No synchronization needed: delivery happens on this goroutine.
	assert.Equal(t, []string{"first", "second", "all"}, order)
}

func TestPublish_ListenerCanMutatePayload(t *testing.T) {
	b := New()

	type payload struct{ Value string }
	p := &payload{Value: "before"}

	b.Subscribe("evt", func(_ context.Context, evt Event) {
		evt.Payload.(*payload).Value = "after"
	})

	b.Publish(context.Background(), "evt", p)
	assert.Equal(t, "after", p.Value)
}

func TestPublish_NoSubscribersIsANoOp(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Publish(context.Background(), "nobody_listens", nil)
	})
}
