package events

import (
	"context"
	"strings"
	"sync"
	"time"
)

const TypeRunStatus = "run.status"

// StatusEvent reports a run status transition to the page.
type StatusEvent struct {
	RunID   string `json:"run_id"`
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	Ts      string `json:"ts"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type Broker struct {
	mu          sync.RWMutex
	seq         int64
	subscribers map[chan StatusEvent]struct{}
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[chan StatusEvent]struct{}{},
	}
}

func (b *Broker) Subscribe(ctx context.Context) <-chan StatusEvent {
	ch := make(chan StatusEvent, 16)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *Broker) Publish(event StatusEvent) StatusEvent {
	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	b.mu.Unlock()

	event.Type = NormalizeType(event.Type)
	if event.Type == "" {
		event.Type = TypeRunStatus
	}
	if event.Ts == "" {
		event.Ts = time.Now().UTC().Format(time.RFC3339Nano)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return event
}
