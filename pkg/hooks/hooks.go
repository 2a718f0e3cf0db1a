// Package hooks provides named lifecycle events for host-side side
// effects such as cache warming or notifications. Listener execution is
// isolated: a hook can neither block nor fail the mutation that fired it.
package hooks

import (
	"log/slog"
	"sync"
)

// Event names a lifecycle moment around role assignment and sync
// operations.
type Event string

const (
	BeforeRoleAssign Event = "beforeRoleAssign"
	AfterRoleAssign  Event = "afterRoleAssign"

	BeforeRoleSync Event = "beforeRoleSync"
	AfterRoleSync  Event = "afterRoleSync"

	BeforePermissionSync Event = "beforePermissionSync"
	AfterPermissionSync  Event = "afterPermissionSync"
)

// Payload is the arbitrary data delivered with an event.
type Payload map[string]any

// Listener consumes hook payloads.
type Listener func(Payload)

// Emitter is a typed publish/subscribe dispatcher for hook events.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[Event]map[int]Listener
	nextID    int
	logger    *slog.Logger
}

// NewEmitter creates an emitter. A nil logger falls back to slog.Default.
func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		listeners: make(map[Event]map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers a listener for event and returns an unsubscribe
// function. Unsubscribing twice is a no-op.
func (e *Emitter) Subscribe(event Event, fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners[event] == nil {
		e.listeners[event] = make(map[int]Listener)
	}
	id := e.nextID
	e.nextID++
	e.listeners[event][id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners[event], id)
	}
}

// Emit delivers payload to every listener of event. Panics are recovered
// and logged so a misbehaving hook cannot fail the caller.
func (e *Emitter) Emit(event Event, payload Payload) {
	if e == nil {
		return
	}
	e.mu.RLock()
	fns := make([]Listener, 0, len(e.listeners[event]))
	for _, fn := range e.listeners[event] {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		e.deliver(event, fn, payload)
	}
}

func (e *Emitter) deliver(event Event, fn Listener, payload Payload) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("hook listener panicked", "event", string(event), "panic", r)
		}
	}()
	fn(payload)
}
