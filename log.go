package traykit

import "github.com/rs/zerolog"

// logger records backend lifecycle events. It discards everything until the
// application opts in via [SetLogger].
var logger = zerolog.Nop()

// SetLogger routes the library's diagnostic logging to the given logger.
// Call it before setting up the tray; the logger is not synchronized against
// concurrent use of the library.
func SetLogger(l zerolog.Logger) {
	logger = l
}
