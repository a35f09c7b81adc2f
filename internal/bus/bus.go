// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for facerig
const (
	// Utterance events
	EventTypeUtteranceRequested   EventType = "utterance.requested"
	EventTypeUtteranceSynthesized EventType = "utterance.synthesized"
	EventTypeUtteranceCuesReady   EventType = "utterance.cues_ready"
	EventTypeUtteranceFailed      EventType = "utterance.failed"
	EventTypeUtteranceCanceled    EventType = "utterance.canceled"

	// Playback events
	EventTypePlaybackStarted EventType = "playback.started"
	EventTypePlaybackEnded   EventType = "playback.ended"
	EventTypePlaybackFailed  EventType = "playback.failed"

	// Model events
	EventTypeModelLoaded   EventType = "model.loaded"
	EventTypeModelReloaded EventType = "model.reloaded"
	EventTypeModelFailed   EventType = "model.failed"

	// Viewer events
	EventTypeViewerConnected    EventType = "viewer.connected"
	EventTypeViewerDisconnected EventType = "viewer.disconnected"
)

// Common data keys.
const (
	KeyUtteranceID = "utterance_id"
	KeyEpoch       = "epoch"
	KeyPath        = "path"
	KeyError       = "error"
	KeyDuration    = "duration"
	KeyInterrupted = "interrupted"
	KeyRemote      = "remote"
	KeyCues        = "cues"
	KeyText        = "text"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// String returns Data[key] as a string, or "" when absent.
func (e Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

func (b *EventBus) snapshot(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	return handlers
}

// Publish sends an event to all subscribed handlers without waiting.
func (b *EventBus) Publish(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	var wg sync.WaitGroup
	for _, handler := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
