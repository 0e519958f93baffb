package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	name   string
	filter EventFilter
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingObserver) Name() string       { return r.name }
func (r *recordingObserver) Filter() EventFilter { return r.filter }
func (r *recordingObserver) OnEvent(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingObserver) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestBus_RegisterRejectsDuplicateNames(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Register(&recordingObserver{name: "a"}))
	assert.Error(t, bus.Register(&recordingObserver{name: "a"}))
	assert.Equal(t, 1, bus.Count())
}

func TestBus_NotifyFanOutRespectsFilter(t *testing.T) {
	bus := NewBus()
	all := &recordingObserver{name: "all"}
	scoped := &recordingObserver{name: "scoped", filter: NewExecutionIDFilter("exec-1")}
	require.NoError(t, bus.Register(all))
	require.NoError(t, bus.Register(scoped))

	bus.Notify(Event{Type: EventExecutionStart, ExecutionID: "exec-1"})
	bus.Notify(Event{Type: EventExecutionStart, ExecutionID: "exec-2"})

	require.Eventually(t, func() bool { return len(all.Events()) == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(scoped.Events()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "exec-1", scoped.Events()[0].ExecutionID)
}

func TestBus_ObserverErrorDoesNotAffectOthers(t *testing.T) {
	bus := NewBus()
	failing := &recordingObserver{name: "failing", err: errors.New("boom")}
	ok := &recordingObserver{name: "ok"}
	require.NoError(t, bus.Register(failing))
	require.NoError(t, bus.Register(ok))

	bus.Notify(Event{Type: EventStepStart, ExecutionID: "exec-1"})

	require.Eventually(t, func() bool { return len(ok.Events()) == 1 }, time.Second, time.Millisecond)
}

func TestBus_Unregister(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Register(&recordingObserver{name: "a"}))
	require.NoError(t, bus.Unregister("a"))
	assert.Equal(t, 0, bus.Count())
	assert.Error(t, bus.Unregister("a"))
}
