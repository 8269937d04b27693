package traykit

import "sync"

// Dispatcher schedules a closure onto the application's serialized main
// context. It is the single crossing point between native threads and the
// application: closures handed to Dispatch from any goroutine must run one
// at a time, in hand-off order, on the application's own context.
//
// GUI frameworks provide this primitive themselves (a "run on main" hook).
// Applications without one can use [Loop].
type Dispatcher interface {
	Dispatch(f func())
}

// DispatchFunc adapts a function to the [Dispatcher] interface.
type DispatchFunc func(f func())

func (d DispatchFunc) Dispatch(f func()) {
	d(f)
}

// Bridge marshals native interaction notifications onto the application's
// dispatcher and invokes the registered handler there. Backends hand it
// events from whatever thread or run loop the native platform used; the
// handler never runs concurrently with other dispatched work and never on a
// native thread. Events are delivered in arrival order, one dispatch per
// event, without coalescing.
type Bridge struct {
	disp Dispatcher

	mu      sync.Mutex
	handler func(TrayEvent)
}

// NewBridge returns a [Bridge] delivering on the given dispatcher.
func NewBridge(disp Dispatcher) *Bridge {
	return &Bridge{disp: disp}
}

// SetHandler replaces the registered event handler. A nil handler drops
// subsequent events.
func (b *Bridge) SetHandler(handler func(TrayEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handler = handler
}

// Deliver implements [EventSink]. Safe to call from any goroutine.
func (b *Bridge) Deliver(event TrayEvent) {
	b.disp.Dispatch(func() {
		b.mu.Lock()
		handler := b.handler
		b.mu.Unlock()

		// No handler registered: the event is dropped, not queued.
		if handler == nil {
			return
		}

		handler(event)
	})
}
