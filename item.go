package traykit

import "slices"

type MenuItemKind int

// Kinds of tray menu entries.
const (
	// The entry is a plain clickable action.
	MenuItemAction MenuItemKind = iota

	// The entry opens a nested menu built from its children.
	MenuItemSubmenu

	// The entry is a separator line. ID is ignored; a non-empty Label is
	// rendered as a section heading where the platform supports it.
	MenuItemSeparator

	// The entry is a checkable action rendered with a checkmark.
	MenuItemCheckbox

	// The entry is a checkable action rendered as a radio mark.
	MenuItemRadio
)

// TrayMenuItem describes one entry of a tray context menu. It is a pure
// value; it has no native representation until a [TrayItem] containing it is
// applied to a backend.
type TrayMenuItem struct {
	// Stable identifier of the entry, unique within one menu tree. Click
	// events carry it back to the application, and logical entries are
	// matched across menu rebuilds by it.
	ID string

	// Text shown for the entry.
	Label string

	// Kind of the entry.
	Kind MenuItemKind

	// Whether a checkbox or radio entry is currently checked. Ignored for
	// other kinds.
	Checked bool

	// Whether the entry reacts to clicks.
	Enabled bool

	// Child entries of a submenu. Ignored for other kinds.
	Children []TrayMenuItem
}

// Action returns a plain clickable menu entry.
func Action(id, label string) TrayMenuItem {
	return TrayMenuItem{ID: id, Label: label, Kind: MenuItemAction, Enabled: true}
}

// Submenu returns a menu entry that opens a nested menu.
func Submenu(id, label string, children ...TrayMenuItem) TrayMenuItem {
	return TrayMenuItem{ID: id, Label: label, Kind: MenuItemSubmenu, Enabled: true, Children: children}
}

// Separator returns a separator entry.
func Separator() TrayMenuItem {
	return TrayMenuItem{Kind: MenuItemSeparator, Enabled: true}
}

// LabeledSeparator returns a separator entry carrying a section label. Linux
// tray hosts render the label above the line; other platforms show a plain
// separator.
func LabeledSeparator(label string) TrayMenuItem {
	return TrayMenuItem{Label: label, Kind: MenuItemSeparator, Enabled: true}
}

// Checkbox returns a checkable menu entry rendered with a checkmark.
func Checkbox(id, label string, checked bool) TrayMenuItem {
	return TrayMenuItem{ID: id, Label: label, Kind: MenuItemCheckbox, Checked: checked, Enabled: true}
}

// Radio returns a checkable menu entry rendered as a radio mark.
func Radio(id, label string, checked bool) TrayMenuItem {
	return TrayMenuItem{ID: id, Label: label, Kind: MenuItemRadio, Checked: checked, Enabled: true}
}

// Disable returns a copy of the entry that does not react to clicks.
func (m TrayMenuItem) Disable() TrayMenuItem {
	m.Enabled = false
	return m
}

// Equal reports whether two menu entries are structurally equal, including
// their children.
func (m TrayMenuItem) Equal(other TrayMenuItem) bool {
	if m.ID != other.ID ||
		m.Label != other.Label ||
		m.Kind != other.Kind ||
		m.Checked != other.Checked ||
		m.Enabled != other.Enabled {
		return false
	}

	return slices.EqualFunc(m.Children, other.Children, TrayMenuItem.Equal)
}

// TrayItem describes the desired state of the tray icon. It is a pure value:
// constructing or deriving one never touches the OS. Only [SetUpTray],
// [SyncTray], and [Reconciler] methods do.
//
// Derivation methods return updated copies, so a TrayItem can be kept and
// rebuilt from application state on every change.
type TrayItem struct {
	// Whether the icon is shown in the system tray.
	Visible bool

	// Icon shown in the tray. Nil falls back to the platform's default
	// application icon where the platform requires one.
	Icon *Icon

	// Text rendered next to the icon on macOS and exposed as the item title
	// on Linux. Windows has no text surface for it and ignores it.
	Title string

	// Short text shown when hovering the icon.
	Tooltip string

	// Longer text some Linux tray hosts render as the tooltip body.
	Description string

	// Context menu of the icon, in order. Empty means no context menu.
	Menu []TrayMenuItem

	// Handler invoked with interaction events, always on the application's
	// [Dispatcher] context. Registered when the item is applied; a later
	// sync with a nil Handler keeps the registered one.
	Handler func(TrayEvent)
}

// NewTrayItem returns a visible tray item with no icon, text, or menu.
func NewTrayItem() TrayItem {
	return TrayItem{Visible: true}
}

// WithVisible returns a copy with the given visibility.
func (t TrayItem) WithVisible(visible bool) TrayItem {
	t.Visible = visible
	return t
}

// WithIcon returns a copy with the given icon.
func (t TrayItem) WithIcon(icon *Icon) TrayItem {
	t.Icon = icon
	return t
}

// WithTitle returns a copy with the given title.
func (t TrayItem) WithTitle(title string) TrayItem {
	t.Title = title
	return t
}

// WithTooltip returns a copy with the given tooltip.
func (t TrayItem) WithTooltip(tooltip string) TrayItem {
	t.Tooltip = tooltip
	return t
}

// WithDescription returns a copy with the given tooltip body.
func (t TrayItem) WithDescription(description string) TrayItem {
	t.Description = description
	return t
}

// WithMenu returns a copy whose context menu is exactly the given entries.
func (t TrayItem) WithMenu(items ...TrayMenuItem) TrayItem {
	t.Menu = items
	return t
}

// AppendMenu returns a copy with the given entries appended to the menu.
func (t TrayItem) AppendMenu(items ...TrayMenuItem) TrayItem {
	menu := make([]TrayMenuItem, 0, len(t.Menu)+len(items))
	menu = append(menu, t.Menu...)
	menu = append(menu, items...)
	t.Menu = menu
	return t
}

// WithHandler returns a copy with the given event handler.
func (t TrayItem) WithHandler(handler func(TrayEvent)) TrayItem {
	t.Handler = handler
	return t
}

// Equal reports whether two items declare the same native-visible state.
// Handlers are not part of the comparison: replacing the handler does not
// require any native mutation.
func (t TrayItem) Equal(other TrayItem) bool {
	return t.Visible == other.Visible &&
		t.Icon.Equal(other.Icon) &&
		t.Title == other.Title &&
		t.Tooltip == other.Tooltip &&
		t.Description == other.Description &&
		slices.EqualFunc(t.Menu, other.Menu, TrayMenuItem.Equal)
}
