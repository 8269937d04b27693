//go:build windows

package traykit

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32  = windows.NewLazySystemDLL("user32.dll")
	gdi32   = windows.NewLazySystemDLL("gdi32.dll")
	shell32 = windows.NewLazySystemDLL("shell32.dll")

	procRegisterClassW      = user32.NewProc("RegisterClassW")
	procCreateWindowExW     = user32.NewProc("CreateWindowExW")
	procDefWindowProcW      = user32.NewProc("DefWindowProcW")
	procDestroyWindow       = user32.NewProc("DestroyWindow")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessageW    = user32.NewProc("DispatchMessageW")
	procPostMessageW        = user32.NewProc("PostMessageW")
	procPostQuitMessage     = user32.NewProc("PostQuitMessage")
	procCreatePopupMenu     = user32.NewProc("CreatePopupMenu")
	procDestroyMenu         = user32.NewProc("DestroyMenu")
	procAppendMenuW         = user32.NewProc("AppendMenuW")
	procTrackPopupMenu      = user32.NewProc("TrackPopupMenu")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procGetCursorPos        = user32.NewProc("GetCursorPos")
	procCreateIconIndirect  = user32.NewProc("CreateIconIndirect")
	procDestroyIcon         = user32.NewProc("DestroyIcon")
	procLoadIconW           = user32.NewProc("LoadIconW")
	procLoadCursorW         = user32.NewProc("LoadCursorW")

	procCreateBitmap = gdi32.NewProc("CreateBitmap")
	procDeleteObject = gdi32.NewProc("DeleteObject")

	procShellNotifyIconW = shell32.NewProc("Shell_NotifyIconW")
)

const (
	wmApp      = 0x8000
	wmCommand  = 0x0111
	wmDestroy  = 0x0002
	wmLButtonU = 0x0202
	wmRButtonU = 0x0205

	// Messages of the hidden tray window.
	wmTrayCallback = wmApp + 1
	wmTrayExec     = wmApp + 2

	nifMessage = 0x1
	nifIcon    = 0x2
	nifTip     = 0x4

	nimAdd        = 0x0
	nimModify     = 0x1
	nimDelete     = 0x2
	nimSetVersion = 0x4

	notifyIconVersion4 = 4

	mfString    = 0x0000
	mfGrayed    = 0x0001
	mfChecked   = 0x0008
	mfPopup     = 0x0010
	mfSeparator = 0x0800

	tpmLeftAlign   = 0x0000
	tpmReturnCmd   = 0x0100
	tpmBottomAlign = 0x0020

	idcArrow       = 32512
	idiApplication = 32512

	wsOverlapped = 0x00000000

	// Menu command ids start well above control ids to avoid collisions.
	firstMenuCommand = 1000
)

type wndClass struct {
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   windows.Handle
	Icon       windows.Handle
	Cursor     windows.Handle
	Background windows.Handle
	MenuName   *uint16
	ClassName  *uint16
}

type winPoint struct {
	X int32
	Y int32
}

type winMsg struct {
	HWnd    windows.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      winPoint
}

type notifyIconData struct {
	CbSize           uint32
	HWnd             windows.Handle
	UID              uint32
	UFlags           uint32
	UCallbackMessage uint32
	HIcon            windows.Handle
	SzTip            [128]uint16
	DwState          uint32
	DwStateMask      uint32
	SzInfo           [256]uint16
	UVersion         uint32
	SzInfoTitle      [64]uint16
	DwInfoFlags      uint32
	GuidItem         windows.GUID
	HBalloonIcon     windows.Handle
}

type iconInfo struct {
	FIcon    int32
	XHotspot uint32
	YHotspot uint32
	HbmMask  windows.Handle
	HbmColor windows.Handle
}

// The window procedure is shared by all tray windows of the process; it
// resolves the owning handle through this registry.
var (
	winRegistryMu sync.Mutex
	winRegistry   = map[windows.Handle]*winHandle{}

	winClassOnce sync.Once
	winClassErr  error

	winProcCallback uintptr
)

// winBackend drives one shell notification icon owned by a hidden window.
// Shell_NotifyIconW and menu calls are only valid on the thread that owns
// the window, so each handle runs a dedicated locked OS thread with a
// message pump, and every backend call is marshaled onto it.
type winBackend struct{}

func newPlatformBackend() Backend {
	return &winBackend{}
}

type winHandle struct {
	hwnd windows.Handle
	cmds chan func()

	mu        sync.Mutex
	destroyed bool
	sink      EventSink

	// Mutated on the tray thread only.
	tooltip   string
	hicon     windows.Handle
	iconAdded bool
	menu      windows.Handle
	commands  map[uint16]string
}

func (b *winBackend) Create(item TrayItem) (Handle, error) {
	h := &winHandle{
		cmds:     make(chan func(), 16),
		commands: map[uint16]string{},
	}

	ready := make(chan error, 1)
	go h.pump(ready)

	if err := <-ready; err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlatformInit, err)
	}

	if err := h.do(func() error { return h.applyInitial(item) }); err != nil {
		// Leave nothing half-registered behind a failed create.
		h.do(func() error { return h.release() })
		return nil, fmt.Errorf("%w: %w", ErrPlatformInit, err)
	}

	logger.Debug().Msg("tray: notification icon created")

	return h, nil
}

func (b *winBackend) Destroy(h Handle) error {
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

	if err := handle.do(func() error { return handle.release() }); err != nil {
		return fmt.Errorf("destroy: %w", err)
	}

	logger.Debug().Msg("tray: notification icon removed")

	return nil
}

func (b *winBackend) Apply(h Handle, d Diff) error {
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

	return handle.do(func() error { return handle.apply(d) })
}

func (b *winBackend) Subscribe(h Handle, sink EventSink) error {
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

func (b *winBackend) handle(h Handle) (*winHandle, error) {
	handle, ok := h.(*winHandle)
	if !ok {
		return nil, fmt.Errorf("foreign tray handle %T", h)
	}

	return handle, nil
}

// pump runs the hidden window's message loop on a dedicated locked OS
// thread. The thread owns every native resource of the handle.
func (h *winHandle) pump(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := registerWindowClass(); err != nil {
		ready <- err
		return
	}

	className, err := windows.UTF16PtrFromString("TraykitHiddenWindow")
	if err != nil {
		ready <- err
		return
	}

	instance, err := windows.GetModuleHandle(nil)
	if err != nil {
		ready <- fmt.Errorf("GetModuleHandle: %w", err)
		return
	}

	hwnd, _, callErr := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(className)),
		wsOverlapped,
		0, 0, 0, 0,
		0, 0,
		uintptr(instance),
		0,
	)
	if hwnd == 0 {
		ready <- fmt.Errorf("CreateWindowExW: %w", callErr)
		return
	}

	h.hwnd = windows.Handle(hwnd)

	winRegistryMu.Lock()
	winRegistry[h.hwnd] = h
	winRegistryMu.Unlock()

	ready <- nil

	var msg winMsg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if r == 0 || int32(r) == -1 {
			break
		}

		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}

	winRegistryMu.Lock()
	delete(winRegistry, h.hwnd)
	winRegistryMu.Unlock()
}

// do runs f on the tray thread and waits for its result. Every native call
// of this backend goes through here, including calls that originate on the
// host loop.
func (h *winHandle) do(f func() error) error {
	errc := make(chan error, 1)

	h.cmds <- func() {
		errc <- f()
	}

	r, _, callErr := procPostMessageW.Call(uintptr(h.hwnd), wmTrayExec, 0, 0)
	if r == 0 {
		return fmt.Errorf("PostMessageW: %w", callErr)
	}

	return <-errc
}

func registerWindowClass() error {
	winClassOnce.Do(func() {
		winProcCallback = windows.NewCallback(trayWndProc)

		className, err := windows.UTF16PtrFromString("TraykitHiddenWindow")
		if err != nil {
			winClassErr = err
			return
		}

		instance, err := windows.GetModuleHandle(nil)
		if err != nil {
			winClassErr = fmt.Errorf("GetModuleHandle: %w", err)
			return
		}

		cursor, _, _ := procLoadCursorW.Call(0, idcArrow)

		class := wndClass{
			WndProc:   winProcCallback,
			Instance:  instance,
			Cursor:    windows.Handle(cursor),
			ClassName: className,
		}

		atom, _, callErr := procRegisterClassW.Call(uintptr(unsafe.Pointer(&class)))
		if atom == 0 {
			winClassErr = fmt.Errorf("RegisterClassW: %w", callErr)
		}
	})

	return winClassErr
}

func trayWndProc(hwnd windows.Handle, message uint32, wparam, lparam uintptr) uintptr {
	winRegistryMu.Lock()
	h := winRegistry[hwnd]
	winRegistryMu.Unlock()

	if h == nil {
		r, _, _ := procDefWindowProcW.Call(uintptr(hwnd), uintptr(message), wparam, lparam)
		return r
	}

	switch message {
	case wmTrayExec:
		for {
			select {
			case f := <-h.cmds:
				f()
			default:
				return 0
			}
		}

	case wmTrayCallback:
		// With NOTIFYICON_VERSION_4 the interaction event arrives in the
		// low word of lParam.
		switch lparam & 0xffff {
		case wmLButtonU:
			h.deliver(IconClickEvent())
		case wmRButtonU:
			h.showMenu()
		}
		return 0

	case wmCommand:
		h.mu.Lock()
		id, ok := h.commands[uint16(wparam&0xffff)]
		h.mu.Unlock()

		if ok {
			h.deliver(MenuClickEvent(id))
		}
		return 0

	case wmDestroy:
		procPostQuitMessage.Call(0)
		return 0
	}

	r, _, _ := procDefWindowProcW.Call(uintptr(hwnd), uintptr(message), wparam, lparam)
	return r
}

func (h *winHandle) deliver(event TrayEvent) {
	h.mu.Lock()
	sink := h.sink
	h.mu.Unlock()

	if sink != nil {
		sink.Deliver(event)
	}
}

// showMenu pops the context menu up at the cursor. Runs on the tray thread
// inside the window procedure.
func (h *winHandle) showMenu() {
	if h.menu == 0 {
		return
	}

	var pt winPoint
	procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	procSetForegroundWindow.Call(uintptr(h.hwnd))

	cmd, _, _ := procTrackPopupMenu.Call(
		uintptr(h.menu),
		tpmLeftAlign|tpmBottomAlign|tpmReturnCmd,
		uintptr(pt.X),
		uintptr(pt.Y),
		0,
		uintptr(h.hwnd),
		0,
	)

	if cmd != 0 {
		procPostMessageW.Call(uintptr(h.hwnd), wmCommand, cmd, 0)
	}
}

// applyInitial pushes the full initial state. Runs on the tray thread.
func (h *winHandle) applyInitial(item TrayItem) error {
	return h.apply(Diff{
		Icon:    true,
		Tooltip: true,
		Visible: true,
		Menu:    true,
		Item:    item,
	})
}

// apply pushes the flagged fields. Runs on the tray thread. Title has no
// text surface on Windows and is ignored.
func (h *winHandle) apply(d Diff) error {
	if d.Tooltip {
		h.tooltip = d.Item.Tooltip
	}

	if d.Icon {
		if err := h.updateIcon(d.Item.Icon); err != nil {
			return err
		}
	}

	if d.Menu {
		if err := h.rebuildMenu(d.Item.Menu); err != nil {
			return err
		}
	}

	if d.Item.Visible {
		if err := h.addIcon(); err != nil {
			return err
		}
		if err := h.modifyIcon(); err != nil {
			return err
		}
	} else if d.Visible {
		if err := h.deleteIcon(); err != nil {
			return err
		}
	}

	return nil
}

func (h *winHandle) notifyData() notifyIconData {
	data := notifyIconData{
		HWnd:             h.hwnd,
		UID:              1,
		UFlags:           nifMessage | nifTip | nifIcon,
		UCallbackMessage: wmTrayCallback,
		HIcon:            h.hicon,
	}
	data.CbSize = uint32(unsafe.Sizeof(data))

	if data.HIcon == 0 {
		icon, _, _ := procLoadIconW.Call(0, idiApplication)
		data.HIcon = windows.Handle(icon)
	}

	tip, err := windows.UTF16FromString(h.tooltip)
	if err == nil {
		n := copy(data.SzTip[:len(data.SzTip)-1], tip)
		data.SzTip[n] = 0
	}

	return data
}

func (h *winHandle) addIcon() error {
	if h.iconAdded {
		return nil
	}

	data := h.notifyData()
	r, _, callErr := procShellNotifyIconW.Call(nimAdd, uintptr(unsafe.Pointer(&data)))
	if r == 0 {
		return fmt.Errorf("Shell_NotifyIconW(NIM_ADD): %w", callErr)
	}

	data.UVersion = notifyIconVersion4
	procShellNotifyIconW.Call(nimSetVersion, uintptr(unsafe.Pointer(&data)))

	h.iconAdded = true
	return nil
}

func (h *winHandle) modifyIcon() error {
	if !h.iconAdded {
		return nil
	}

	data := h.notifyData()
	r, _, callErr := procShellNotifyIconW.Call(nimModify, uintptr(unsafe.Pointer(&data)))
	if r == 0 {
		return fmt.Errorf("Shell_NotifyIconW(NIM_MODIFY): %w", callErr)
	}

	return nil
}

func (h *winHandle) deleteIcon() error {
	if !h.iconAdded {
		return nil
	}

	data := h.notifyData()
	r, _, callErr := procShellNotifyIconW.Call(nimDelete, uintptr(unsafe.Pointer(&data)))
	if r == 0 {
		return fmt.Errorf("Shell_NotifyIconW(NIM_DELETE): %w", callErr)
	}

	h.iconAdded = false
	return nil
}

// updateIcon converts the declared bitmap into an HICON and swaps it in.
func (h *winHandle) updateIcon(icon *Icon) error {
	var hicon windows.Handle

	if icon != nil {
		var err error
		hicon, err = iconToHICON(icon)
		if err != nil {
			return err
		}
	}

	if h.hicon != 0 {
		procDestroyIcon.Call(uintptr(h.hicon))
	}

	h.hicon = hicon
	return nil
}

// iconToHICON builds a 32-bit icon from BGRA pixels via CreateIconIndirect.
func iconToHICON(icon *Icon) (windows.Handle, error) {
	color, _, callErr := procCreateBitmap.Call(
		uintptr(icon.Width),
		uintptr(icon.Height),
		1,
		32,
		uintptr(unsafe.Pointer(&icon.Bytes[0])),
	)
	if color == 0 {
		return 0, fmt.Errorf("CreateBitmap(color): %w", callErr)
	}
	defer procDeleteObject.Call(color)

	mask, _, callErr := procCreateBitmap.Call(
		uintptr(icon.Width),
		uintptr(icon.Height),
		1,
		1,
		0,
	)
	if mask == 0 {
		return 0, fmt.Errorf("CreateBitmap(mask): %w", callErr)
	}
	defer procDeleteObject.Call(mask)

	info := iconInfo{
		FIcon:    1,
		HbmMask:  windows.Handle(mask),
		HbmColor: windows.Handle(color),
	}

	hicon, _, callErr := procCreateIconIndirect.Call(uintptr(unsafe.Pointer(&info)))
	if hicon == 0 {
		return 0, fmt.Errorf("CreateIconIndirect: %w", callErr)
	}

	return windows.Handle(hicon), nil
}

// rebuildMenu reconstructs the popup menu wholesale and refreshes the
// command id table. Runs on the tray thread.
func (h *winHandle) rebuildMenu(items []TrayMenuItem) error {
	if h.menu != 0 {
		procDestroyMenu.Call(uintptr(h.menu))
		h.menu = 0
	}

	commands := map[uint16]string{}

	menu, err := buildPopupMenu(items, commands, firstMenuCommand)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.commands = commands
	h.mu.Unlock()

	h.menu = menu
	return nil
}

func buildPopupMenu(items []TrayMenuItem, commands map[uint16]string, nextCmd uint16) (windows.Handle, error) {
	menu, _, callErr := procCreatePopupMenu.Call()
	if menu == 0 {
		return 0, fmt.Errorf("CreatePopupMenu: %w", callErr)
	}

	if _, err := appendMenuItems(windows.Handle(menu), items, commands, nextCmd); err != nil {
		procDestroyMenu.Call(menu)
		return 0, err
	}

	return windows.Handle(menu), nil
}

func appendMenuItems(menu windows.Handle, items []TrayMenuItem, commands map[uint16]string, nextCmd uint16) (uint16, error) {
	for _, item := range items {
		switch item.Kind {
		case MenuItemSeparator:
			procAppendMenuW.Call(uintptr(menu), mfSeparator, 0, 0)

		case MenuItemSubmenu:
			sub, _, callErr := procCreatePopupMenu.Call()
			if sub == 0 {
				return nextCmd, fmt.Errorf("CreatePopupMenu(submenu): %w", callErr)
			}

			var err error
			nextCmd, err = appendMenuItems(windows.Handle(sub), item.Children, commands, nextCmd)
			if err != nil {
				procDestroyMenu.Call(sub)
				return nextCmd, err
			}

			label, err := windows.UTF16PtrFromString(item.Label)
			if err != nil {
				procDestroyMenu.Call(sub)
				return nextCmd, fmt.Errorf("menu label: %w", err)
			}

			flags := uintptr(mfPopup)
			if !item.Enabled {
				flags |= mfGrayed
			}

			procAppendMenuW.Call(uintptr(menu), flags, sub, uintptr(unsafe.Pointer(label)))

		default:
			cmd := nextCmd
			nextCmd++
			commands[cmd] = item.ID

			label, err := windows.UTF16PtrFromString(item.Label)
			if err != nil {
				return nextCmd, fmt.Errorf("menu label: %w", err)
			}

			flags := uintptr(mfString)
			if !item.Enabled {
				flags |= mfGrayed
			}
			if (item.Kind == MenuItemCheckbox || item.Kind == MenuItemRadio) && item.Checked {
				flags |= mfChecked
			}

			procAppendMenuW.Call(uintptr(menu), flags, uintptr(cmd), uintptr(unsafe.Pointer(label)))
		}
	}

	return nextCmd, nil
}

// release frees every native resource of the handle. Runs on the tray
// thread; destroying the window ends the message loop.
func (h *winHandle) release() error {
	h.deleteIcon()

	if h.hicon != 0 {
		procDestroyIcon.Call(uintptr(h.hicon))
		h.hicon = 0
	}

	if h.menu != 0 {
		procDestroyMenu.Call(uintptr(h.menu))
		h.menu = 0
	}

	if h.hwnd != 0 {
		procDestroyWindow.Call(uintptr(h.hwnd))
	}

	return nil
}
