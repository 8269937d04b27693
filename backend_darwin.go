//go:build darwin

package traykit

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Cocoa

#include <stdlib.h>
#include "backend_darwin.h"
*/
import "C"

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/rs/zerolog"
)

// The exported click callback arrives with the native ref; this registry
// resolves it back to the owning handle.
var (
	darwinRegistryMu sync.Mutex
	darwinRegistry   = map[uintptr]*darwinHandle{}
)

// macOS hides the stderr of bundled apps, so lifecycle diagnostics also go
// to an append-only file under /tmp.
var (
	darwinLogOnce sync.Once
	darwinLog     = zerolog.Nop()
)

func darwinDebugLog() *zerolog.Logger {
	darwinLogOnce.Do(func() {
		f, err := os.OpenFile("/tmp/traykit_darwin.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}

		darwinLog = zerolog.New(zerolog.ConsoleWriter{Out: f, NoColor: true}).
			With().Timestamp().Logger()
	})

	return &darwinLog
}

// darwinBackend drives one NSStatusItem in the menu bar. AppKit objects are
// main-thread only; the native layer marshals every call onto the main
// queue, so backend methods may be called from any goroutine.
type darwinBackend struct{}

func newPlatformBackend() Backend {
	return &darwinBackend{}
}

type darwinHandle struct {
	ref C.uintptr_t

	mu        sync.Mutex
	destroyed bool
	sink      EventSink
	tags      map[int]string
}

func (b *darwinBackend) Create(item TrayItem) (Handle, error) {
	ref := C.traykit_create()
	if ref == 0 {
		return nil, fmt.Errorf("%w: status bar rejected the item", ErrPlatformInit)
	}

	h := &darwinHandle{
		ref:  ref,
		tags: map[int]string{},
	}

	darwinRegistryMu.Lock()
	darwinRegistry[uintptr(ref)] = h
	darwinRegistryMu.Unlock()

	h.applyAll(item)

	darwinDebugLog().Info().Str("title", item.Title).Msg("status item created")

	return h, nil
}

func (b *darwinBackend) Destroy(h Handle) error {
	handle, err := b.handle(h)
	if err != nil {
		return err
	}

	handle.mu.Lock()
	if handle.destroyed {
		handle.mu.Unlock()
		return fmt.Errorf("destroy: %w", ErrDoubleDestroy)
	}
	handle.destroyed = true
	handle.sink = nil
	handle.mu.Unlock()

	darwinRegistryMu.Lock()
	delete(darwinRegistry, uintptr(handle.ref))
	darwinRegistryMu.Unlock()

	C.traykit_destroy(handle.ref)

	darwinDebugLog().Info().Msg("status item removed")

	return nil
}

func (b *darwinBackend) Apply(h Handle, d Diff) error {
	handle, err := b.handle(h)
	if err != nil {
		return err
	}

	handle.mu.Lock()
	if handle.destroyed {
		handle.mu.Unlock()
		return fmt.Errorf("apply: %w", ErrDoubleDestroy)
	}
	handle.mu.Unlock()

	handle.apply(d)
	return nil
}

func (b *darwinBackend) Subscribe(h Handle, sink EventSink) error {
	handle, err := b.handle(h)
	if err != nil {
		return err
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()

	if handle.destroyed {
		return fmt.Errorf("subscribe: %w", ErrDoubleDestroy)
	}

	handle.sink = sink
	return nil
}

func (b *darwinBackend) handle(h Handle) (*darwinHandle, error) {
	handle, ok := h.(*darwinHandle)
	if !ok {
		return nil, fmt.Errorf("foreign tray handle %T", h)
	}

	return handle, nil
}

func (h *darwinHandle) applyAll(item TrayItem) {
	h.apply(Diff{
		Icon:    true,
		Title:   true,
		Tooltip: true,
		Visible: true,
		Menu:    true,
		Item:    item,
	})
}

// apply pushes the flagged fields to the status item.
func (h *darwinHandle) apply(d Diff) {
	if d.Title {
		title := C.CString(d.Item.Title)
		C.traykit_set_title(h.ref, title)
		C.free(unsafe.Pointer(title))
	}

	if d.Tooltip {
		tooltip := C.CString(d.Item.Tooltip)
		C.traykit_set_tooltip(h.ref, tooltip)
		C.free(unsafe.Pointer(tooltip))
	}

	if d.Icon {
		if icon := d.Item.Icon; icon != nil {
			C.traykit_set_icon(h.ref,
				(*C.uchar)(unsafe.Pointer(&icon.Bytes[0])),
				C.int(icon.Width), C.int(icon.Height))
		} else {
			C.traykit_clear_icon(h.ref)
		}
	}

	if d.Menu {
		h.rebuildMenu(d.Item.Menu)
	}

	if d.Visible {
		C.traykit_set_visible(h.ref, C.bool(d.Item.Visible))
	}
}

// rebuildMenu reconstructs the NSMenu wholesale and refreshes the tag table
// mapping native item tags back to application-level ids.
func (h *darwinHandle) rebuildMenu(items []TrayMenuItem) {
	tags := map[int]string{}

	C.traykit_menu_reset(h.ref)
	appendDarwinMenu(h.ref, 0, items, tags, 1)
	C.traykit_menu_commit(h.ref)

	h.mu.Lock()
	h.tags = tags
	h.mu.Unlock()
}

func appendDarwinMenu(ref C.uintptr_t, parent C.uintptr_t, items []TrayMenuItem, tags map[int]string, nextTag int) int {
	for _, item := range items {
		kind := C.int(C.TRAYKIT_MENU_ACTION)
		switch item.Kind {
		case MenuItemSeparator:
			kind = C.TRAYKIT_MENU_SEPARATOR
		case MenuItemSubmenu:
			kind = C.TRAYKIT_MENU_SUBMENU
		case MenuItemCheckbox:
			kind = C.TRAYKIT_MENU_CHECKBOX
		case MenuItemRadio:
			kind = C.TRAYKIT_MENU_RADIO
		}

		tag := 0
		if item.Kind != MenuItemSeparator {
			tag = nextTag
			nextTag++
			tags[tag] = item.ID
		}

		label := C.CString(item.Label)
		sub := C.traykit_menu_append(ref, parent, C.int(tag), label, kind,
			C.bool(item.Checked), C.bool(item.Enabled))
		C.free(unsafe.Pointer(label))

		if item.Kind == MenuItemSubmenu && sub != 0 {
			nextTag = appendDarwinMenu(ref, sub, item.Children, tags, nextTag)
		}
	}

	return nextTag
}

//export traykitMenuClicked
func traykitMenuClicked(ref C.uintptr_t, tag C.int) {
	darwinRegistryMu.Lock()
	h := darwinRegistry[uintptr(ref)]
	darwinRegistryMu.Unlock()

	if h == nil {
		return
	}

	h.mu.Lock()
	id, ok := h.tags[int(tag)]
	sink := h.sink
	h.mu.Unlock()

	if !ok || sink == nil {
		return
	}

	darwinDebugLog().Debug().Str("id", id).Msg("menu item clicked")

	sink.Deliver(MenuClickEvent(id))
}
