package traykit

// Handle is an opaque reference to a live native tray object. Handles are
// created and owned by a [Reconciler]; backends accept only handles they
// issued themselves.
type Handle any

// Diff describes which fields of a [TrayItem] changed since the last applied
// one. [Backend.Apply] pushes only the flagged fields of Item to the native
// object.
//
// Menu covers the whole menu tree: menus are rebuilt wholesale, since native
// menu APIs require reconstruction anyway and positional diffing buys
// nothing. Logical entries are still matched across rebuilds by their ID.
type Diff struct {
	Icon    bool
	Title   bool
	Tooltip bool
	Visible bool
	Menu    bool

	// Target state. Backends read only the flagged fields.
	Item TrayItem
}

// Empty reports whether the diff flags no changes.
func (d Diff) Empty() bool {
	return !d.Icon && !d.Title && !d.Tooltip && !d.Visible && !d.Menu
}

// computeDiff compares two items field by field. Handlers are not compared;
// replacing a handler needs no native call.
func computeDiff(prev, next TrayItem) Diff {
	return Diff{
		Icon:    !prev.Icon.Equal(next.Icon),
		Title:   prev.Title != next.Title,
		Tooltip: prev.Tooltip != next.Tooltip || prev.Description != next.Description,
		Visible: prev.Visible != next.Visible,
		Menu:    !menusEqual(prev.Menu, next.Menu),
		Item:    next,
	}
}

func menusEqual(a, b []TrayMenuItem) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}

	return true
}

// Backend is the capability set each platform module implements against its
// native tray primitive. Exactly one implementation is compiled per target
// platform; the [Reconciler] and the event bridge are written against this
// interface only.
//
// All operations are idempotent given the same input, except Destroy, which
// must be called at most once per handle; a second call is a programming
// error reported as [ErrDoubleDestroy].
type Backend interface {
	// Create allocates the native tray object and applies the full initial
	// state. It fails with an error matching [ErrPlatformInit] when the
	// native tray host is unavailable, without leaving a half-registered
	// resource behind.
	Create(item TrayItem) (Handle, error)

	// Destroy releases all native resources of the handle.
	Destroy(h Handle) error

	// Apply pushes the fields flagged in the diff to the native object.
	Apply(h Handle, d Diff) error

	// Subscribe registers the sink receiving native interaction events for
	// this handle. At most one sink is registered per handle; a later call
	// replaces the previous sink.
	Subscribe(h Handle, sink EventSink) error
}
