//go:build linux

package traykit

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/google/uuid"
)

const (
	statusNotifierItemInterface = "org.kde.StatusNotifierItem"
	statusNotifierItemPath      = "/StatusNotifierItem"

	statusNotifierWatcherInterface = "org.kde.StatusNotifierWatcher"
	statusNotifierWatcherPath      = "/StatusNotifierWatcher"
)

// Common tray sizes offered to hosts. Hosts do not reliably scale very
// large pixmaps, so the icon is downscaled to each of these that fits.
var trayPixmapSizes = []int{16, 24, 32, 48}

// pixmap is the wire form of one StatusNotifierItem icon, marshaled as
// (iiay). Although the protocol says ARGB32, hosts interpret the bytes as
// native-endian 0xAARRGGBB pixels, which is BGRA byte order on little
// endian; [Icon] bytes already use that order and pass through unchanged.
type pixmap struct {
	Width  int32
	Height int32
	Bytes  []byte
}

// sniTooltip is the wire form of the ToolTip property, (sa(iiay)ss).
type sniTooltip struct {
	IconName    string
	IconPixmap  []pixmap
	Title       string
	Description string
}

// linuxBackend drives a StatusNotifierItem service on the session bus. Each
// handle owns its own bus connection: closing the connection is what
// unregisters the item from the watcher and the host.
type linuxBackend struct{}

func newPlatformBackend() Backend {
	return &linuxBackend{}
}

type linuxHandle struct {
	conn    *dbus.Conn
	busName string

	sniProps  *prop.Properties
	menuProps *prop.Properties

	mu        sync.Mutex
	destroyed bool
	sink      EventSink
	item      TrayItem
	menu      *menuModel
	revision  uint32
}

// Create connects to the session bus, exports the StatusNotifierItem and
// com.canonical.dbusmenu objects, and registers with the watcher. When no
// StatusNotifierWatcher owns its name on the bus there is no tray to appear
// in; Create fails without leaving a half-registered service behind.
func (b *linuxBackend) Create(item TrayItem) (Handle, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect session bus: %w", ErrPlatformInit, err)
	}

	if err := checkWatcherPresent(conn); err != nil {
		conn.Close()
		return nil, err
	}

	h := &linuxHandle{
		conn:     conn,
		busName:  makeBusName(),
		item:     item,
		menu:     newMenuModel(item.Menu),
		revision: 1,
	}

	if err := h.export(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrPlatformInit, err)
	}

	reply, err := conn.RequestName(h.busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: request name %s: %w", ErrPlatformInit, h.busName, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("%w: name %s already taken", ErrPlatformInit, h.busName)
	}

	call := conn.Object(statusNotifierWatcherInterface, statusNotifierWatcherPath).
		Call(statusNotifierWatcherInterface+".RegisterStatusNotifierItem", 0, h.busName)
	if call.Err != nil {
		conn.ReleaseName(h.busName)
		conn.Close()
		return nil, fmt.Errorf("%w: register with watcher: %w", ErrPlatformInit, call.Err)
	}

	logger.Debug().Str("bus_name", h.busName).Msg("tray: registered status notifier item")

	return h, nil
}

func (b *linuxBackend) Destroy(h Handle) error {
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

	handle.conn.ReleaseName(handle.busName)

	if err := handle.conn.Close(); err != nil {
		return fmt.Errorf("destroy: close session bus: %w", err)
	}

	logger.Debug().Str("bus_name", handle.busName).Msg("tray: unregistered status notifier item")

	return nil
}

func (b *linuxBackend) Apply(h Handle, d Diff) error {
	handle, err := b.handle(h)
	if err != nil {
		return err
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()

	if handle.destroyed {
		return fmt.Errorf("apply: %w", ErrDoubleDestroy)
	}

	handle.item = d.Item

	if d.Title {
		handle.sniProps.SetMust(statusNotifierItemInterface, "Title", d.Item.Title)
		if err := handle.emitItemSignal("NewTitle"); err != nil {
			return err
		}
	}

	if d.Icon {
		handle.sniProps.SetMust(statusNotifierItemInterface, "IconName", iconNameFor(d.Item))
		handle.sniProps.SetMust(statusNotifierItemInterface, "IconPixmap", iconPixmaps(d.Item.Icon))
		if err := handle.emitItemSignal("NewIcon"); err != nil {
			return err
		}
	}

	if d.Tooltip {
		handle.sniProps.SetMust(statusNotifierItemInterface, "ToolTip", tooltipFor(d.Item))
		if err := handle.emitItemSignal("NewToolTip"); err != nil {
			return err
		}
	}

	if d.Visible {
		status := statusFor(d.Item.Visible)
		handle.sniProps.SetMust(statusNotifierItemInterface, "Status", status)
		if err := handle.conn.Emit(
			statusNotifierItemPath,
			statusNotifierItemInterface+".NewStatus",
			status,
		); err != nil {
			return fmt.Errorf("apply: emit NewStatus: %w", err)
		}
	}

	if d.Menu {
		handle.menu = newMenuModel(d.Item.Menu)
		handle.revision++
		if err := handle.conn.Emit(
			menuPath,
			menuInterface+".LayoutUpdated",
			handle.revision,
			int32(0),
		); err != nil {
			return fmt.Errorf("apply: emit LayoutUpdated: %w", err)
		}
	}

	return nil
}

func (b *linuxBackend) Subscribe(h Handle, sink EventSink) error {
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

func (b *linuxBackend) handle(h Handle) (*linuxHandle, error) {
	handle, ok := h.(*linuxHandle)
	if !ok {
		return nil, fmt.Errorf("foreign tray handle %T", h)
	}

	return handle, nil
}

// export publishes the StatusNotifierItem and dbusmenu objects with their
// initial properties.
func (h *linuxHandle) export() error {
	if err := h.conn.Export(&sniServer{handle: h}, statusNotifierItemPath, statusNotifierItemInterface); err != nil {
		return fmt.Errorf("export status notifier item: %w", err)
	}

	if err := h.conn.Export(&menuServer{handle: h}, menuPath, menuInterface); err != nil {
		return fmt.Errorf("export dbusmenu: %w", err)
	}

	sniProps, err := prop.Export(h.conn, statusNotifierItemPath, prop.Map{
		statusNotifierItemInterface: map[string]*prop.Prop{
			"Category":   {Value: "ApplicationStatus", Emit: prop.EmitTrue},
			"Id":         {Value: "traykit", Emit: prop.EmitTrue},
			"Title":      {Value: h.item.Title, Emit: prop.EmitTrue},
			"Status":     {Value: statusFor(h.item.Visible), Emit: prop.EmitTrue},
			"WindowId":   {Value: uint32(0), Emit: prop.EmitTrue},
			"IconName":   {Value: iconNameFor(h.item), Emit: prop.EmitTrue},
			"IconPixmap": {Value: iconPixmaps(h.item.Icon), Emit: prop.EmitTrue},
			"ToolTip":    {Value: tooltipFor(h.item), Emit: prop.EmitTrue},
			"ItemIsMenu": {Value: false, Emit: prop.EmitTrue},
			"Menu":       {Value: dbus.ObjectPath(menuPath), Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return fmt.Errorf("export status notifier item properties: %w", err)
	}

	menuProps, err := prop.Export(h.conn, menuPath, prop.Map{
		menuInterface: map[string]*prop.Prop{
			// libdbusmenu reports Version 4. Some hosts refuse to populate
			// menus from services reporting less.
			"Version": {Value: uint32(4), Emit: prop.EmitTrue},
			"Status":  {Value: "normal", Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return fmt.Errorf("export dbusmenu properties: %w", err)
	}

	h.sniProps = sniProps
	h.menuProps = menuProps

	return nil
}

func (h *linuxHandle) emitItemSignal(member string) error {
	if err := h.conn.Emit(statusNotifierItemPath, statusNotifierItemInterface+"."+member); err != nil {
		return fmt.Errorf("apply: emit %s: %w", member, err)
	}

	return nil
}

// deliver hands an event to the subscribed sink. Called from the bus
// connection's handler goroutines.
func (h *linuxHandle) deliver(event TrayEvent) {
	h.mu.Lock()
	sink := h.sink
	h.mu.Unlock()

	if sink != nil {
		sink.Deliver(event)
	}
}

// checkWatcherPresent verifies that a StatusNotifierWatcher owns its
// well-known name on the session bus.
func checkWatcherPresent(conn *dbus.Conn) error {
	var owned bool

	err := conn.BusObject().
		Call("org.freedesktop.DBus.NameHasOwner", 0, statusNotifierWatcherInterface).
		Store(&owned)
	if err != nil {
		return fmt.Errorf("%w: query watcher: %w", ErrPlatformInit, err)
	}

	if !owned {
		return fmt.Errorf("%w: no StatusNotifierWatcher on the session bus", ErrPlatformInit)
	}

	return nil
}

// makeBusName returns a unique well-known name for this item, following the
// org.kde.StatusNotifierItem-<pid>-<id> convention.
func makeBusName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("org.kde.StatusNotifierItem-%d-%s", os.Getpid(), id)
}

func statusFor(visible bool) string {
	if visible {
		return "Active"
	}

	return "Passive"
}

// iconNameFor falls back to a themed icon that exists in standard icon
// themes when the item declares no bitmap, so hosts that ignore IconPixmap
// still render something.
func iconNameFor(item TrayItem) string {
	if item.Icon != nil {
		return ""
	}

	return "application-x-executable"
}

// iconPixmaps scales the declared icon to the common tray sizes that fit
// within it. A small source icon is exposed at its original size.
func iconPixmaps(icon *Icon) []pixmap {
	if icon == nil {
		return []pixmap{}
	}

	var pixmaps []pixmap
	for _, size := range trayPixmapSizes {
		if size > icon.Width || size > icon.Height {
			continue
		}

		scaled := icon.scaled(size, size)
		pixmaps = append(pixmaps, pixmap{
			Width:  int32(scaled.Width),
			Height: int32(scaled.Height),
			Bytes:  scaled.Bytes,
		})
	}

	if len(pixmaps) == 0 {
		pixmaps = append(pixmaps, pixmap{
			Width:  int32(icon.Width),
			Height: int32(icon.Height),
			Bytes:  icon.Bytes,
		})
	}

	return pixmaps
}

func tooltipFor(item TrayItem) sniTooltip {
	return sniTooltip{
		IconName:    "",
		IconPixmap:  []pixmap{},
		Title:       item.Tooltip,
		Description: item.Description,
	}
}

// sniServer handles incoming org.kde.StatusNotifierItem method calls. The
// bus library invokes these on its own goroutines, never on the host loop.
type sniServer struct {
	handle *linuxHandle
}

func (s *sniServer) Activate(x, y int32) *dbus.Error {
	s.handle.deliver(IconClickEvent())
	return nil
}

func (s *sniServer) SecondaryActivate(x, y int32) *dbus.Error {
	s.handle.deliver(IconClickEvent())
	return nil
}

func (s *sniServer) ContextMenu(x, y int32) *dbus.Error {
	s.handle.deliver(IconRightClickEvent())
	return nil
}

func (s *sniServer) Scroll(delta int32, orientation string) *dbus.Error {
	horizontal := strings.Contains(strings.ToLower(orientation), "horizontal")
	s.handle.deliver(IconScrollEvent(int(delta), horizontal))
	return nil
}

// menuServer handles incoming com.canonical.dbusmenu method calls.
type menuServer struct {
	handle *linuxHandle
}

// menuEvent is one element of an EventGroup call, (isvu).
type menuEvent struct {
	ID        int32
	EventID   string
	Data      dbus.Variant
	Timestamp uint32
}

// groupProperties is one element of a GetGroupProperties reply, (ia{sv}).
type groupProperties struct {
	ID         int32
	Properties map[string]dbus.Variant
}

func (s *menuServer) GetLayout(parentID int32, recursionDepth int32, propertyNames []string) (uint32, menuLayout, *dbus.Error) {
	s.handle.mu.Lock()
	defer s.handle.mu.Unlock()

	return s.handle.revision, s.handle.menu.layout(parentID, recursionDepth, propertyNames), nil
}

func (s *menuServer) GetGroupProperties(ids []int32, propertyNames []string) ([]groupProperties, *dbus.Error) {
	s.handle.mu.Lock()
	defer s.handle.mu.Unlock()

	groups := make([]groupProperties, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, groupProperties{
			ID:         id,
			Properties: s.handle.menu.properties(id, propertyNames),
		})
	}

	return groups, nil
}

func (s *menuServer) GetProperty(id int32, name string) (dbus.Variant, *dbus.Error) {
	s.handle.mu.Lock()
	defer s.handle.mu.Unlock()

	props := s.handle.menu.properties(id, []string{name})
	if value, ok := props[name]; ok {
		return value, nil
	}

	// Hosts treat missing properties as unset.
	return dbus.MakeVariant(""), nil
}

func (s *menuServer) Event(id int32, eventID string, data dbus.Variant, timestamp uint32) *dbus.Error {
	s.dispatchMenuEvent(id, eventID)
	return nil
}

// EventGroup exists because some hosts only send clicks through it.
func (s *menuServer) EventGroup(events []menuEvent) *dbus.Error {
	for _, event := range events {
		s.dispatchMenuEvent(event.ID, event.EventID)
	}

	return nil
}

func (s *menuServer) AboutToShow(id int32) (bool, *dbus.Error) {
	return false, nil
}

// dispatchMenuEvent maps an activation on a numeric menu node back to the
// application-level entry ID. Hosts use different event ids for activation.
func (s *menuServer) dispatchMenuEvent(id int32, eventID string) {
	switch strings.ToLower(eventID) {
	case "clicked", "activate", "activated", "toggled":
	default:
		return
	}

	s.handle.mu.Lock()
	userID, ok := s.handle.menu.userID(id)
	s.handle.mu.Unlock()

	if !ok {
		return
	}

	logger.Debug().Str("menu_id", userID).Msg("tray: menu entry activated")
	s.handle.deliver(MenuClickEvent(userID))
}
