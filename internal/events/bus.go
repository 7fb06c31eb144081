package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventFullState     EventType = "FULL_STATE"
	EventCycleComplete EventType = "CYCLE_COMPLETE"
	EventAlert         EventType = "ALERT"
	EventSignalUpdate  EventType = "SIGNAL_UPDATE"
	EventTradeOpened   EventType = "TRADE_OPENED"
	EventTradeClosed   EventType = "TRADE_CLOSED"
	EventDiscovery     EventType = "DISCOVERY"
	EventSessionChange EventType = "SESSION_CHANGE"
	EventError         EventType = "ERROR"
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

	// Subscribers run in goroutines so a slow consumer never stalls a cycle
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishAlert publishes a new alert emission
func (eb *EventBus) PublishAlert(ticker, alertType, direction, severity, message string) {
	eb.Publish(Event{
		Type: EventAlert,
		Data: map[string]interface{}{
			"ticker":    ticker,
			"type":      alertType,
			"direction": direction,
			"severity":  severity,
			"message":   message,
		},
	})
}

// PublishTradeOpened publishes a paper trade admission
func (eb *EventBus) PublishTradeOpened(ticker, direction, version string, entry, shares float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"ticker":    ticker,
			"direction": direction,
			"version":   version,
			"entry":     entry,
			"shares":    shares,
		},
	})
}

// PublishTradeClosed publishes a resolved paper trade
func (eb *EventBus) PublishTradeClosed(ticker, status string, exitPrice, pnl, pnlPercent float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"ticker":      ticker,
			"status":      status,
			"exit_price":  exitPrice,
			"pnl":         pnl,
			"pnl_percent": pnlPercent,
		},
	})
}

// PublishSignal publishes a fused signal update
func (eb *EventBus) PublishSignal(ticker, direction string, confidence float64) {
	eb.Publish(Event{
		Type: EventSignalUpdate,
		Data: map[string]interface{}{
			"ticker":     ticker,
			"direction":  direction,
			"confidence": confidence,
		},
	})
}

// PublishDiscovery publishes a scanner find
func (eb *EventBus) PublishDiscovery(ticker, direction string, confidence, weight float64) {
	eb.Publish(Event{
		Type: EventDiscovery,
		Data: map[string]interface{}{
			"ticker":     ticker,
			"direction":  direction,
			"confidence": confidence,
			"weight":     weight,
		},
	})
}

// PublishSessionChange publishes a market session transition
func (eb *EventBus) PublishSessionChange(from, to string) {
	eb.Publish(Event{
		Type: EventSessionChange,
		Data: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	})
}

// PublishCycleComplete publishes end-of-cycle bookkeeping
func (eb *EventBus) PublishCycleComplete(cycle int, tier string, calls int, elapsed time.Duration) {
	eb.Publish(Event{
		Type: EventCycleComplete,
		Data: map[string]interface{}{
			"cycle":      cycle,
			"tier":       tier,
			"calls":      calls,
			"elapsed_ms": elapsed.Milliseconds(),
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
