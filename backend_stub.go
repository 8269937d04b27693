//go:build !linux && !windows && !darwin

package traykit

import (
	"fmt"
	"runtime"
)

// stubBackend is compiled on platforms without a system tray. Creating a
// tray on it fails; the data model and reconciler still work against custom
// backends.
type stubBackend struct{}

func newPlatformBackend() Backend {
	return &stubBackend{}
}

func (b *stubBackend) Create(item TrayItem) (Handle, error) {
	return nil, fmt.Errorf("%w: no system tray on %s", ErrPlatformInit, runtime.GOOS)
}

func (b *stubBackend) Destroy(h Handle) error {
	return fmt.Errorf("destroy: no system tray on %s", runtime.GOOS)
}

func (b *stubBackend) Apply(h Handle, d Diff) error {
	return fmt.Errorf("apply: no system tray on %s", runtime.GOOS)
}

func (b *stubBackend) Subscribe(h Handle, sink EventSink) error {
	return fmt.Errorf("subscribe: no system tray on %s", runtime.GOOS)
}
