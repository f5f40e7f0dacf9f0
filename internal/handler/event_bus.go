// internal/handler/event_bus.go
package handler

import (
	"sync"

	"go.uber.org/zap"

	"device-link/internal/service"
)

// EventBus decouples session event production from websocket fan-out.
// Session callbacks run on session goroutines; pushing through the bus
// keeps slow websocket clients from ever blocking a device read loop.
type EventBus struct {
	subscribers []chan service.SessionEvent
	events      chan service.SessionEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		events: make(chan service.SessionEvent, 1000),
		logger: logger,
	}
}

// Start starts the event bus distribution loop
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}
}

// Publish publishes a session event. Never blocks; a full bus drops the
// event.
func (eb *EventBus) Publish(event service.SessionEvent) {
	select {
	case eb.events <- event:
	default:
		if eb.logger != nil {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", event.Type),
				zap.String("device_id", event.DeviceID),
			)
		}
	}
}

// Subscribe subscribes to all session events
func (eb *EventBus) Subscribe() <-chan service.SessionEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan service.SessionEvent, 100)
	eb.subscribers = append(eb.subscribers, subscriber)
	return subscriber
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event service.SessionEvent) {
	eb.mutex.RLock()
	subscribers := eb.subscribers
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
