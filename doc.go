// Package traykit reconciles a declared system-tray presence onto the native
// tray primitive of the host operating system.
//
// Applications describe the desired tray state (icon, title, tooltip,
// visibility, menu tree) as an immutable [TrayItem] value and hand it to the
// library. The library owns the native object and converges it towards the
// declared state with a minimal set of native mutations.
//
// # Usage
//
// The toolkit consists of a data model, a [Reconciler], and an event bridge
// over a per-platform [Backend]:
//   - [TrayItem] and [TrayMenuItem] are pure values. Constructing or deriving
//     them never touches the OS.
//   - [SetUpTray] creates the native tray object for the process, [SyncTray]
//     diffs a new [TrayItem] against the last applied one and issues only the
//     changed native calls, and [TearDownTray] releases the native object.
//   - Native interaction (menu clicks, icon clicks) is delivered as a
//     [TrayEvent] to the handler registered on the [TrayItem], always on the
//     application's own [Dispatcher] context, never on a native thread.
//
// One backend is compiled per target platform: an AppKit status item on
// macOS, a shell notification icon with a hidden message window on Windows,
// and a [StatusNotifierItem] service on the D-Bus session bus on Linux.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/
package traykit
