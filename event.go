package traykit

type EventKind int

// Kinds of tray interaction events.
const (
	// A menu entry was clicked. MenuID carries the entry's ID.
	EventMenuClick EventKind = iota

	// The tray icon itself was activated, typically by a left click.
	EventIconClick

	// The tray icon was right-clicked. Platforms that open the context menu
	// on right click themselves never raise this.
	EventIconRightClick

	// The mouse wheel was scrolled over the icon. Only raised by tray hosts
	// that forward scroll input (StatusNotifierItem on Linux).
	EventIconScroll
)

// TrayEvent is an interaction notification from the native tray, delivered
// to the handler registered on the applied [TrayItem].
type TrayEvent struct {
	Kind EventKind

	// ID of the clicked menu entry. Set for [EventMenuClick] only.
	MenuID string

	// Scroll amount and orientation. Set for [EventIconScroll] only.
	ScrollDelta      int
	ScrollHorizontal bool
}

// MenuClickEvent returns a [TrayEvent] for a click on the menu entry with
// the given ID.
func MenuClickEvent(id string) TrayEvent {
	return TrayEvent{Kind: EventMenuClick, MenuID: id}
}

// IconClickEvent returns a [TrayEvent] for an activation of the tray icon.
func IconClickEvent() TrayEvent {
	return TrayEvent{Kind: EventIconClick}
}

// IconRightClickEvent returns a [TrayEvent] for a right click on the icon.
func IconRightClickEvent() TrayEvent {
	return TrayEvent{Kind: EventIconRightClick}
}

// IconScrollEvent returns a [TrayEvent] for a scroll over the icon.
func IconScrollEvent(delta int, horizontal bool) TrayEvent {
	return TrayEvent{Kind: EventIconScroll, ScrollDelta: delta, ScrollHorizontal: horizontal}
}

// EventSink receives native interaction notifications from a backend.
// Backends may call Deliver from any goroutine or native thread; the sink is
// responsible for marshaling delivery onto the application's context.
type EventSink interface {
	Deliver(event TrayEvent)
}
