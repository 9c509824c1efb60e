package bus

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 64

type EventType string

const (
	EventTurnStarted   EventType = "turn_started"
	EventTurnCompleted EventType = "turn_completed"
	EventTurnFailed    EventType = "turn_failed"
	EventTurnDuplicate EventType = "turn_duplicate"
)

// Event is one turn lifecycle notification for observers.
type Event struct {
	Type     EventType         `json:"type"`
	At       time.Time         `json:"at"`
	Channel  string            `json:"channel,omitempty"`
	SenderID string            `json:"sender_id,omitempty"`
	TurnID   string            `json:"turn_id,omitempty"`
	EventID  string            `json:"event_id,omitempty"`
	Payload  map[string]string `json:"payload,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// EventBus fans turn lifecycle events out to subscribers.
//
// Publishing never blocks: slow subscribers drop events.
type EventBus struct {
	mu               sync.Mutex
	subscribers      map[uint64]chan Event
	nextSubscriberID uint64
	done             chan struct{}
	closeOnce        sync.Once
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]chan Event),
		done:        make(chan struct{}),
	}
}

func (b *EventBus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case <-b.done:
		return
	default:
	}

	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Drop instead of blocking the publisher on slow subscribers.
		}
	}
}

// Subscribe registers a buffered event stream; the returned func unsubscribes.
// The stream closes when the context ends or the bus closes.
func (b *EventBus) Subscribe(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Event, buffer)

	b.mu.Lock()
	select {
	case <-b.done:
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}

	id := b.nextSubscriberID
	b.nextSubscriberID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if eventCh, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(eventCh)
			}
			b.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-b.done:
			unsubscribe()
		}
	}()

	return ch, unsubscribe
}

func (b *EventBus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		for id, ch := range b.subscribers {
			close(ch)
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
	})
}
