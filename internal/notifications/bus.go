package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Subscriber delivers events over one transport (websocket, email, SMS).
type Subscriber interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// Bus fans lifecycle events out to its subscribers. Delivery is strictly
// best-effort: a failing subscriber is logged and never blocks or rolls
// back the lifecycle transition that produced the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      *zap.Logger
}

// NewBus creates an event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a delivery transport.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish delivers the event to every subscriber asynchronously. The
// caller's context is not reused so an already-finished request cannot
// cancel in-flight deliveries.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		go func(sub Subscriber) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := sub.Deliver(ctx, event); err != nil {
				b.logger.Warn("notification delivery failed",
					zap.String("subscriber", sub.Name()),
					zap.String("event_type", string(event.Type)),
					zap.String("event_id", event.ID.String()),
					zap.Error(err))
			}
		}(sub)
	}
}
