package events

import (
	"log/slog"
	"sync"
)

// Event is anything published on the Bus.
type Event interface {
	isEvent()
}

// RegistrationSucceeded is emitted after the device ends a registration
// attempt registered, carrying the account the UI should display.
type RegistrationSucceeded struct {
	Hostname string
	Login    string
	Password string
}

// RegistrationFailed is emitted after a registration attempt that did not
// end registered.
type RegistrationFailed struct {
	Hostname string
	Message  string
}

func (RegistrationSucceeded) isEvent() {}
func (RegistrationFailed) isEvent()    {}

// Bus fans events out to subscribers. Emit never blocks: a subscriber that
// stopped draining its channel loses events rather than stalling the
// publisher.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
	log  *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe returns a channel the caller drains. buffer must be > 0.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	return ch
}

func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	subs := make([]chan Event, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			if b.log != nil {
				b.log.Warn("event dropped, subscriber not draining", "module", "events", "event", e)
			}
		}
	}
}
