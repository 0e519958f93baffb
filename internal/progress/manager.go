package progress

import (
	"fmt"
	"sync"

	"github.com/wflowhq/engine/internal/infrastructure/logger"
)

// Bus fans an Event out to every registered Observer, non-blocking and
// panic-isolated per observer.
type Bus struct {
	observers []Observer
	log       *logger.Logger
	mu        sync.RWMutex
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{log: logger.Default()}
}

// Register adds an observer. Returns an error if an observer with the
// same Name() is already registered.
func (b *Bus) Register(obs Observer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.observers {
		if existing.Name() == obs.Name() {
			return fmt.Errorf("observer %q already registered", obs.Name())
		}
	}
	b.observers = append(b.observers, obs)
	return nil
}

// Unregister removes an observer by name.
func (b *Bus) Unregister(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, obs := range b.observers {
		if obs.Name() == name {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("observer %q not found", name)
}

// Notify fans event out to every observer whose filter accepts it, each
// in its own goroutine so a slow or failing observer cannot block the
// orchestrator's step loop. Delivery order across events is therefore not
// guaranteed on the wire; consumers resolve races by (executionId, nodeId)
// identity, with later events authoritative.
func (b *Bus) Notify(event Event) {
	b.mu.RLock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, obs := range observers {
		go b.notifyOne(obs, event)
	}
}

func (b *Bus) notifyOne(obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("progress observer panic recovered", "observer", obs.Name(), "event_type", string(event.Type), "panic", r)
		}
	}()

	if filter := obs.Filter(); filter != nil && !filter.ShouldNotify(event) {
		return
	}
	if err := obs.OnEvent(event); err != nil {
		b.log.Error("progress observer notification failed", "observer", obs.Name(), "event_type", string(event.Type), "error", err)
	}
}

// Count returns the number of registered observers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}
