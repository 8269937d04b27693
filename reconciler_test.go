package traykit

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetUpAppliesInitialState(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	item := NewTrayItem().
		WithTitle("App").
		WithMenu(Action("quit", "Quit"))

	require.NoError(t, r.SetUp(item))
	require.True(t, r.Attached())
	require.Equal(t, []string{"create", "subscribe"}, backend.ops())
}

func TestSetUpCreateFailureStaysUnattached(t *testing.T) {
	backend := &fakeBackend{createErr: ErrPlatformInit}
	r := NewReconciler(backend, immediateDispatcher())

	err := r.SetUp(NewTrayItem())
	require.ErrorIs(t, err, ErrPlatformInit)
	require.False(t, r.Attached())
}

func TestSetUpSubscribeFailureReleasesHandle(t *testing.T) {
	backend := &fakeBackend{subscribeErr: errors.New("bus gone")}
	r := NewReconciler(backend, immediateDispatcher())

	err := r.SetUp(NewTrayItem())
	require.Error(t, err)
	require.False(t, r.Attached())

	// The native object that came up before the failure must not leak.
	require.Equal(t, []string{"create", "subscribe", "destroy"}, backend.ops())
}

func TestSetUpWhileAttachedDestroysPrevious(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	require.NoError(t, r.SetUp(NewTrayItem().WithTitle("first")))
	require.NoError(t, r.SetUp(NewTrayItem().WithTitle("second")))

	require.Equal(t,
		[]string{"create", "subscribe", "destroy", "create", "subscribe"},
		backend.ops())
}

func TestSyncUnattached(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	err := r.Sync(NewTrayItem())
	require.ErrorIs(t, err, ErrNotAttached)
	require.Empty(t, backend.ops())
}

func TestSyncWithoutChangesIssuesNoCalls(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	item := NewTrayItem().
		WithTitle("App").
		WithTooltip("running").
		WithMenu(Checkbox("mute", "Mute", false))

	require.NoError(t, r.SetUp(item))
	backend.reset()

	require.NoError(t, r.Sync(item))
	require.Empty(t, backend.ops())
}

func TestSyncIssuesMinimalDiff(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	item := NewTrayItem().WithTitle("App").WithTooltip("idle")
	require.NoError(t, r.SetUp(item))
	backend.reset()

	require.NoError(t, r.Sync(item.WithTooltip("busy")))

	require.Equal(t, []string{"apply"}, backend.ops())

	diff := backend.lastApply(t)
	require.True(t, diff.Tooltip)
	require.False(t, diff.Icon)
	require.False(t, diff.Title)
	require.False(t, diff.Visible)
	require.False(t, diff.Menu)
	require.Equal(t, "busy", diff.Item.Tooltip)
}

func TestSyncConverges(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	a := NewTrayItem().WithTitle("A").WithMenu(Action("open", "Open"))
	b := NewTrayItem().WithTitle("B").WithMenu(Action("open", "Open"), Separator(), Action("quit", "Quit"))

	require.NoError(t, r.SetUp(a))
	require.NoError(t, r.Sync(b))

	backend.reset()

	// Converged: a repeated sync is free of native calls.
	require.NoError(t, r.Sync(b))
	require.Empty(t, backend.ops())
}

func TestSyncConvergesToDirectSetUp(t *testing.T) {
	a := NewTrayItem().
		WithTitle("A").
		WithTooltip("starting").
		WithIcon(&Icon{Width: 1, Height: 1, Bytes: make([]byte, 4)}).
		WithMenu(Action("open", "Open"), Checkbox("mute", "Mute", false))
	b := NewTrayItem().
		WithVisible(false).
		WithTitle("B").
		WithDescription("details").
		WithMenu(Action("open", "Open"), Checkbox("mute", "Mute", true), Separator(), Action("quit", "Quit"))

	// Setting up A and syncing to B must leave the backend in the same
	// observable state as setting up B directly.
	synced := &fakeBackend{}
	r := NewReconciler(synced, immediateDispatcher())
	require.NoError(t, r.SetUp(a))
	require.NoError(t, r.Sync(b))

	direct := &fakeBackend{}
	require.NoError(t, NewReconciler(direct, immediateDispatcher()).SetUp(b))

	require.True(t, synced.lastHandle.item.Equal(direct.lastHandle.item),
		"synced state diverged from direct set up")
}

func TestCheckboxToggleKeepsEntryID(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	item := NewTrayItem().WithMenu(
		Action("open", "Open"),
		Checkbox("mute", "Mute", false),
	)
	require.NoError(t, r.SetUp(item))
	backend.reset()

	require.NoError(t, r.Sync(item.WithMenu(
		Action("open", "Open"),
		Checkbox("mute", "Mute", true),
	)))

	// A state change on one entry rebuilds the menu, but the logical entry
	// keeps its ID, so click routing survives the rebuild.
	diff := backend.lastApply(t)
	require.True(t, diff.Menu)
	require.Equal(t, "mute", diff.Item.Menu[1].ID)
	require.True(t, diff.Item.Menu[1].Checked)

	// The backend-observable menu reflects the toggle under the same ID.
	menu := backend.lastHandle.item.Menu
	require.Equal(t, "mute", menu[1].ID)
	require.True(t, menu[1].Checked)
}

func TestSyncFailureDoesNotAdvance(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	item := NewTrayItem().WithTitle("App")
	require.NoError(t, r.SetUp(item))

	backend.applyErr = errors.New("shell rejected the update")

	next := item.WithTooltip("busy")
	err := r.Sync(next)
	require.ErrorIs(t, err, ErrSyncFailed)

	// Retrying once the backend recovers reissues the same diff.
	backend.applyErr = nil
	backend.reset()

	require.NoError(t, r.Sync(next))
	require.Equal(t, []string{"apply"}, backend.ops())
	require.True(t, backend.lastApply(t).Tooltip)
}

func TestTearDown(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	require.NoError(t, r.SetUp(NewTrayItem()))
	require.NoError(t, r.TearDown())
	require.False(t, r.Attached())

	err := r.TearDown()
	require.ErrorIs(t, err, ErrNotAttached)

	// The second teardown must not reach the backend.
	require.Equal(t, []string{"create", "subscribe", "destroy"}, backend.ops())
}

func TestTearDownDetachesOnDestroyFailure(t *testing.T) {
	backend := &fakeBackend{destroyErr: errors.New("already gone")}
	r := NewReconciler(backend, immediateDispatcher())

	require.NoError(t, r.SetUp(NewTrayItem()))

	require.Error(t, r.TearDown())
	require.False(t, r.Attached())
}

func TestSyncReplacesHandler(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	var first, second []TrayEvent

	item := NewTrayItem().WithHandler(func(e TrayEvent) { first = append(first, e) })
	require.NoError(t, r.SetUp(item))

	handle := mustFakeHandle(t, backend)
	handle.sink.Deliver(IconClickEvent())
	require.Len(t, first, 1)

	// A nil handler on sync keeps the registered one.
	require.NoError(t, r.Sync(item.WithHandler(nil).WithTooltip("busy")))
	handle.sink.Deliver(IconClickEvent())
	require.Len(t, first, 2)

	require.NoError(t, r.Sync(item.WithHandler(func(e TrayEvent) { second = append(second, e) })))
	handle.sink.Deliver(IconClickEvent())
	require.Len(t, first, 2)
	require.Len(t, second, 1)
}

func TestFailedSyncKeepsHandler(t *testing.T) {
	backend := &fakeBackend{}
	r := NewReconciler(backend, immediateDispatcher())

	var first, second int
	item := NewTrayItem().WithHandler(func(TrayEvent) { first++ })
	require.NoError(t, r.SetUp(item))

	backend.applyErr = errors.New("shell rejected the update")

	next := item.
		WithTooltip("busy").
		WithHandler(func(TrayEvent) { second++ })
	require.ErrorIs(t, r.Sync(next), ErrSyncFailed)

	// The failed sync advanced nothing, the handler included.
	handle := mustFakeHandle(t, backend)
	handle.sink.Deliver(IconClickEvent())
	require.Equal(t, 1, first)
	require.Equal(t, 0, second)

	backend.applyErr = nil
	require.NoError(t, r.Sync(next))

	handle.sink.Deliver(IconClickEvent())
	require.Equal(t, 1, first)
	require.Equal(t, 1, second)
}

func TestEventsReachHandlerOnLoop(t *testing.T) {
	backend := &fakeBackend{}
	loop := NewLoop()
	r := NewReconciler(backend, loop)

	var mu sync.Mutex
	var got []string

	item := NewTrayItem().
		WithMenu(Action("open", "Open"), Action("quit", "Quit")).
		WithHandler(func(e TrayEvent) {
			mu.Lock()
			got = append(got, e.MenuID)
			mu.Unlock()
		})

	require.NoError(t, r.SetUp(item))

	handle := mustFakeHandle(t, backend)

	// Native callbacks arrive from a foreign goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		handle.sink.Deliver(MenuClickEvent("open"))
		handle.sink.Deliver(MenuClickEvent("quit"))
	}()
	<-done

	loop.Stop()
	loop.Run()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"open", "quit"}, got)
}

// mustFakeHandle reaches the handle the reconciler holds, for simulating
// native callbacks.
func mustFakeHandle(t *testing.T, backend *fakeBackend) *fakeHandle {
	t.Helper()

	backend.mu.Lock()
	defer backend.mu.Unlock()

	require.NotNil(t, backend.lastHandle)
	require.NotNil(t, backend.lastHandle.sink, "handle has no subscribed sink")

	return backend.lastHandle
}
