// Package eventbus provides the Bus interface and an in-memory implementation
// for real-time progress streaming in ssbridge.
package eventbus

import (
	"sync"

	"github.com/ssbridge/ssbridge/pkg/model"
)

// Bus provides pub/sub for completion events.
type Bus interface {
	Subscribe(completionID string) chan *model.Event
	Unsubscribe(completionID string, ch chan *model.Event)
	Publish(completionID string, event *model.Event)
}

// InMemoryBus is the default in-memory Bus implementation.
type InMemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan *model.Event
}

// NewInMemoryBus creates a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		subs: make(map[string][]chan *model.Event),
	}
}

// Subscribe creates a channel that receives events for a completion.
func (b *InMemoryBus) Subscribe(completionID string) chan *model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *model.Event, 64)
	b.subs[completionID] = append(b.subs[completionID], ch)
	return ch
}

// Unsubscribe removes a channel from the completion's subscribers.
func (b *InMemoryBus) Unsubscribe(completionID string, ch chan *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[completionID]
	for i, s := range subs {
		if s == ch {
			b.subs[completionID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all subscribers for a completion.
func (b *InMemoryBus) Publish(completionID string, event *model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[completionID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is too slow.
		}
	}
}
