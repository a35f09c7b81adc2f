package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishSyncWaits(t *testing.T) {
	b := NewEventBus()

	var calls atomic.Int32
	b.SubscribeMultiple([]EventType{EventTypePlaybackEnded, EventTypePlaybackFailed}, func(e Event) {
		time.Sleep(5 * time.Millisecond)
		calls.Add(1)
	})
	b.Subscribe(EventTypePlaybackEnded, func(e Event) { calls.Add(1) })

	b.PublishSync(Event{Type: EventTypePlaybackEnded})
	assert.Equal(t, int32(2), calls.Load())

	b.PublishSync(Event{Type: EventTypePlaybackFailed})
	assert.Equal(t, int32(3), calls.Load())

	b.PublishSync(Event{Type: EventTypeModelLoaded})
	assert.Equal(t, int32(3), calls.Load())
}

func TestEventBus_PublishIsAsync(t *testing.T) {
	b := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(1)
	got := make(chan Event, 1)
	b.Subscribe(EventTypePlaybackStarted, func(e Event) {
		defer wg.Done()
		got <- e
	})

	b.Publish(Event{Type: EventTypePlaybackStarted, Data: map[string]any{KeyUtteranceID: "u1"}})
	wg.Wait()

	e := <-got
	assert.Equal(t, "u1", e.String(KeyUtteranceID))
	assert.Equal(t, "", e.String(KeyPath))
}

func TestEventBus_Clear(t *testing.T) {
	b := NewEventBus()
	called := false
	b.Subscribe(EventTypeViewerConnected, func(Event) { called = true })
	b.Clear()
	b.PublishSync(Event{Type: EventTypeViewerConnected})
	require.False(t, called)
}
