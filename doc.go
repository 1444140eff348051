// Package mapper implements a mediator between the W3C WebDriver BiDi
// protocol and the Chrome DevTools Protocol.
//
// A BiDi client submits command frames to a Session, which dispatches
// them to the module that owns the method, drives one or more CDP
// sessions to realise the command, and emits BiDi responses and events
// back on an ordered outgoing queue. The WebSocket/HTTP transport that
// shuttles bytes to and from the BiDi client, and the subprocess
// launcher that boots the browser, are not part of this package —
// callers supply a CommandSource and ResponseSink and a live CDP
// WebSocket URL.
package mapper
