package traykit

import "sync"

// Loop is a ready-made [Dispatcher] for applications without a GUI
// framework loop: a single-consumer FIFO task queue. Tasks dispatched from
// any goroutine run one at a time, in dispatch order, on the goroutine that
// called [Loop.Run].
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop returns a new, not yet running [Loop].
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 128),
		done:  make(chan struct{}),
	}
}

// Run executes dispatched tasks until [Loop.Stop] is called, then drains the
// tasks already queued and returns. It must be called from exactly one
// goroutine; that goroutine becomes the loop's context.
func (l *Loop) Run() {
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-l.done:
			for {
				select {
				case task := <-l.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Dispatch enqueues a task. Tasks dispatched after [Loop.Stop] may be
// dropped. Safe to call from any goroutine.
func (l *Loop) Dispatch(f func()) {
	select {
	case <-l.done:
	case l.tasks <- f:
	}
}

// Stop makes [Loop.Run] return after finishing the tasks already queued.
// Safe to call more than once and from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}
