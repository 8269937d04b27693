package traykit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// backendCall is one recorded native call of the fake backend.
type backendCall struct {
	op   string
	diff Diff
}

// fakeBackend records every call in order and simulates the handle
// lifecycle, including the at-most-once destroy contract.
type fakeBackend struct {
	mu         sync.Mutex
	calls      []backendCall
	nextID     int
	lastHandle *fakeHandle

	createErr    error
	applyErr     error
	subscribeErr error
	destroyErr   error
}

type fakeHandle struct {
	id        int
	destroyed bool
	sink      EventSink
	item      TrayItem
}

func (b *fakeBackend) Create(item TrayItem) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, backendCall{op: "create"})

	if b.createErr != nil {
		return nil, b.createErr
	}

	b.nextID++
	b.lastHandle = &fakeHandle{id: b.nextID, item: item}
	return b.lastHandle, nil
}

func (b *fakeBackend) Destroy(h Handle) error {
	handle := h.(*fakeHandle)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, backendCall{op: "destroy"})

	if handle.destroyed {
		return fmt.Errorf("destroy: %w", ErrDoubleDestroy)
	}
	handle.destroyed = true

	return b.destroyErr
}

func (b *fakeBackend) Apply(h Handle, d Diff) error {
	handle := h.(*fakeHandle)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, backendCall{op: "apply", diff: d})

	if b.applyErr != nil {
		return b.applyErr
	}

	// Like a real backend, only the flagged fields reach the native state.
	if d.Icon {
		handle.item.Icon = d.Item.Icon
	}
	if d.Title {
		handle.item.Title = d.Item.Title
	}
	if d.Tooltip {
		handle.item.Tooltip = d.Item.Tooltip
		handle.item.Description = d.Item.Description
	}
	if d.Visible {
		handle.item.Visible = d.Item.Visible
	}
	if d.Menu {
		handle.item.Menu = d.Item.Menu
	}

	return nil
}

func (b *fakeBackend) Subscribe(h Handle, sink EventSink) error {
	handle := h.(*fakeHandle)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, backendCall{op: "subscribe"})

	if b.subscribeErr != nil {
		return b.subscribeErr
	}

	handle.sink = sink
	return nil
}

// ops returns the recorded call names in order.
func (b *fakeBackend) ops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ops := make([]string, len(b.calls))
	for i, call := range b.calls {
		ops[i] = call.op
	}
	return ops
}

// lastApply returns the diff of the most recent apply call.
func (b *fakeBackend) lastApply(t *testing.T) Diff {
	t.Helper()

	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].op == "apply" {
			return b.calls[i].diff
		}
	}

	t.Fatal("no apply call recorded")
	return Diff{}
}

func (b *fakeBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = nil
}

// immediateDispatcher runs dispatched closures inline, which keeps
// single-goroutine tests free of synchronization.
func immediateDispatcher() Dispatcher {
	return DispatchFunc(func(f func()) { f() })
}

func TestFakeBackendAppliesOnlyFlaggedFields(t *testing.T) {
	backend := &fakeBackend{}

	handle, err := backend.Create(NewTrayItem().WithTooltip("old"))
	require.NoError(t, err)

	// An unflagged field must not leak into the observable state.
	require.NoError(t, backend.Apply(handle, Diff{
		Title: true,
		Item:  NewTrayItem().WithTitle("App").WithTooltip("new"),
	}))

	fake := handle.(*fakeHandle)
	require.Equal(t, "App", fake.item.Title)
	require.Equal(t, "old", fake.item.Tooltip)
}

func TestFakeBackendDoubleDestroy(t *testing.T) {
	backend := &fakeBackend{}

	handle, err := backend.Create(NewTrayItem())
	require.NoError(t, err)

	require.NoError(t, backend.Destroy(handle))

	err = backend.Destroy(handle)
	require.ErrorIs(t, err, ErrDoubleDestroy)
}
