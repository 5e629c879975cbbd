package application

import (
	"sync"
	"time"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

const subscriberBuffer = 16

// StatusBus fans status messages out to subscribers and remembers the last
// one for pages rendered later. Slow subscribers miss messages rather than
// block publishers.
type StatusBus struct {
	mu   sync.RWMutex
	subs map[chan model.Status]struct{}
	last model.Status
	now  func() time.Time
}

// NewStatusBus creates an empty bus.
func NewStatusBus() *StatusBus {
	return &StatusBus{
		subs: make(map[chan model.Status]struct{}),
		now:  time.Now,
	}
}

// Publish records and broadcasts a status message.
func (b *StatusBus) Publish(level model.StatusLevel, message, hint string) model.Status {
	st := model.Status{Level: level, Message: message, Hint: hint, At: b.now()}

	b.mu.Lock()
	b.last = st
	for ch := range b.subs {
		select {
		case ch <- st:
		default:
		}
	}
	b.mu.Unlock()

	return st
}

// Subscribe returns a channel of future messages and a cancel func that
// closes it.
func (b *StatusBus) Subscribe() (<-chan model.Status, func()) {
	ch := make(chan model.Status, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Last returns the most recent message, zero if none was published.
func (b *StatusBus) Last() model.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}

// Dismiss clears the remembered message.
func (b *StatusBus) Dismiss() {
	b.mu.Lock()
	b.last = model.Status{}
	b.mu.Unlock()
}
