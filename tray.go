package traykit

import (
	"fmt"
	"sync"
)

// The OS exposes one tray slot per process, modeled as one package-level
// reconciler. Embedders that need their own slot management can use
// [NewReconciler] with a backend of their choice directly.
var (
	trayMu sync.Mutex
	tray   *Reconciler
)

// SetUpTray creates the native tray object for the process from the item.
// Events reach item's handler on the dispatcher's context.
//
// Calling SetUpTray while a tray is already up tears the old native object
// down first, then creates a new one; no continuity of transient native UI
// state is preserved across the re-create.
func SetUpTray(disp Dispatcher, item TrayItem) error {
	trayMu.Lock()
	defer trayMu.Unlock()

	if tray != nil && tray.Attached() {
		if err := tray.TearDown(); err != nil {
			return fmt.Errorf("set up tray: %w", err)
		}
	}

	tray = NewReconciler(newPlatformBackend(), disp)
	return tray.SetUp(item)
}

// SyncTray converges the native tray towards the item, issuing only the
// native calls for fields that changed since the last applied item. It
// reports [ErrNotAttached] before the first successful [SetUpTray].
func SyncTray(item TrayItem) error {
	trayMu.Lock()
	defer trayMu.Unlock()

	if tray == nil {
		return fmt.Errorf("sync tray: %w", ErrNotAttached)
	}

	return tray.Sync(item)
}

// TearDownTray destroys the native tray object. Native tray objects are not
// reliably cleaned up by the OS on process exit (Windows keeps ghost icons),
// so applications should reach this from their shutdown path.
func TearDownTray() error {
	trayMu.Lock()
	defer trayMu.Unlock()

	if tray == nil {
		return fmt.Errorf("tear down tray: %w", ErrNotAttached)
	}

	err := tray.TearDown()
	tray = nil
	return err
}
