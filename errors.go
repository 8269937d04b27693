package traykit

import "errors"

// Errors reported by the reconciler and the platform backends. All of them
// are returned, never panicked; callers match them with [errors.Is].
var (
	// ErrPlatformInit reports that the native tray host is unavailable or
	// that creating the native tray object failed. No retry is attempted
	// internally.
	ErrPlatformInit = errors.New("platform tray init failed")

	// ErrNotAttached reports a sync or teardown without a live tray. The
	// caller must set up the tray first.
	ErrNotAttached = errors.New("tray not attached")

	// ErrSyncFailed reports that applying a diff failed part way. Native
	// state may be partially updated; the last applied item is not advanced,
	// so retrying the sync reissues the unconfirmed fields.
	ErrSyncFailed = errors.New("tray sync failed")

	// ErrDoubleDestroy reports a destroy of an already-destroyed handle.
	// Backends never attempt the second native release: some native APIs
	// fault on double release.
	ErrDoubleDestroy = errors.New("tray handle already destroyed")
)
