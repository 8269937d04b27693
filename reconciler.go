package traykit

import (
	"fmt"
	"sync"
)

// Reconciler converges native tray state towards declared [TrayItem] values.
//
// It is a two-state machine: unattached (no live native object) and attached
// (a live handle plus the last item applied to it). [Reconciler.SetUp]
// attaches, [Reconciler.Sync] diffs against the last applied item and issues
// only the changed backend calls, and [Reconciler.TearDown] detaches.
//
// The reconciler is the sole owner of the handle. Callers are expected to
// invoke it from the host loop only; the internal mutex protects the state,
// it does not make concurrent transitions meaningful.
type Reconciler struct {
	backend Backend
	bridge  *Bridge

	mu       sync.Mutex
	attached bool
	handle   Handle
	applied  TrayItem
}

// NewReconciler returns a [Reconciler] over the given backend. Events from
// the backend are delivered on the dispatcher's context.
func NewReconciler(backend Backend, disp Dispatcher) *Reconciler {
	return &Reconciler{
		backend: backend,
		bridge:  NewBridge(disp),
	}
}

// SetUp creates the native tray object for the item. If a live object
// already exists it is destroyed first: the OS exposes one tray slot per
// process and an orphaned native object would persist as a ghost icon.
//
// On backend failure the reconciler stays unattached and returns an error
// matching [ErrPlatformInit].
func (r *Reconciler) SetUp(item TrayItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attached {
		if err := r.backend.Destroy(r.handle); err != nil {
			return fmt.Errorf("set up tray: destroy previous: %w", err)
		}

		r.attached = false
		r.handle = nil
	}

	handle, err := r.backend.Create(item)
	if err != nil {
		return fmt.Errorf("set up tray: %w", err)
	}

	r.bridge.SetHandler(item.Handler)

	if err := r.backend.Subscribe(handle, r.bridge); err != nil {
		// Subscription failed after the native object came up; release it
		// so the failed set up leaves nothing behind.
		r.backend.Destroy(handle)
		return fmt.Errorf("set up tray: %w", err)
	}

	r.attached = true
	r.handle = handle
	r.applied = item

	return nil
}

// Sync converges the native object towards the item. Unchanged fields issue
// no backend calls; a sync with an item equal to the last applied one is
// observably free of native side effects.
//
// On backend failure the native state may be partially updated. Neither the
// last applied item nor the handler is advanced, so calling Sync again with
// the same item reissues exactly the unconfirmed fields.
func (r *Reconciler) Sync(item TrayItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.attached {
		return fmt.Errorf("sync tray: %w", ErrNotAttached)
	}

	diff := computeDiff(r.applied, item)
	if !diff.Empty() {
		if err := r.backend.Apply(r.handle, diff); err != nil {
			return fmt.Errorf("%w: %w", ErrSyncFailed, err)
		}

		r.applied = item
	}

	if item.Handler != nil {
		r.bridge.SetHandler(item.Handler)
	}

	return nil
}

// TearDown destroys the native tray object. A teardown without a live
// object reports [ErrNotAttached].
//
// The reconciler detaches even when the native release fails: the handle is
// no longer trustworthy and keeping it would invite a double release.
func (r *Reconciler) TearDown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.attached {
		return fmt.Errorf("tear down tray: %w", ErrNotAttached)
	}

	handle := r.handle
	r.attached = false
	r.handle = nil
	r.bridge.SetHandler(nil)

	if err := r.backend.Destroy(handle); err != nil {
		return fmt.Errorf("tear down tray: %w", err)
	}

	return nil
}

// Attached reports whether a live native tray object exists.
func (r *Reconciler) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.attached
}
