package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTick           EventType = "TICK"
	EventRegimeShift    EventType = "REGIME_SHIFT"
	EventTradeOpened    EventType = "TRADE_OPENED"
	EventTradeClosed    EventType = "TRADE_CLOSED"
	EventBreakerTripped EventType = "BREAKER_TRIPPED"
	EventBreakerReset   EventType = "BREAKER_RESET"
	EventPanic          EventType = "PANIC"
	EventReset          EventType = "RESET"
	EventEngineStarted  EventType = "ENGINE_STARTED"
	EventEngineStopped  EventType = "ENGINE_STOPPED"
	EventError          EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishRegimeShift publishes a market regime transition
func (eb *EventBus) PublishRegimeShift(from, to string, price float64) {
	eb.Publish(Event{
		Type: EventRegimeShift,
		Data: map[string]interface{}{
			"from":  from,
			"to":    to,
			"price": price,
		},
	})
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(agent, venue, strategy string, price, quantity float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"agent":    agent,
			"venue":    venue,
			"strategy": strategy,
			"price":    price,
			"quantity": quantity,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(agent, venue, reason string, price, quantity, pnl float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"agent":    agent,
			"venue":    venue,
			"reason":   reason,
			"price":    price,
			"quantity": quantity,
			"pnl":      pnl,
		},
	})
}

// PublishBreakerTripped publishes a circuit breaker trip
func (eb *EventBus) PublishBreakerTripped(dailyPnL, limit float64) {
	eb.Publish(Event{
		Type: EventBreakerTripped,
		Data: map[string]interface{}{
			"daily_pnl": dailyPnL,
			"limit":     limit,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
