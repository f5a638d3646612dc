package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopFlushesBufferedEvents(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	b.Start()

	for i := 0; i < 10; i++ {
		b.Publish(&Event{Type: EventStepCompleted})
	}
	b.Stop()

	var got []*Event
	for ev := range sub {
		got = append(got, ev)
	}
	assert.Len(t, got, 10)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestPublishOnNilBroker(t *testing.T) {
	var b *Broker
	assert.NotPanics(t, func() { b.Publish(&Event{Type: EventJobPlanned}) })
}

func TestStopIsIdempotent(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	assert.NotPanics(t, b.Stop)

	// Publishing after stop returns instead of blocking
	for i := 0; i < 200; i++ {
		b.Publish(&Event{Type: EventJobAborted})
	}
}
