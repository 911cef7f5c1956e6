// Package audit implements async event dispatching for login and session
// lifecycle operations.
//
// # Components
//
//   - [Sink] receives events (channel, JSON lines, slog, no-op).
//   - [Dispatcher] is a buffered async relay that either drops or blocks when full.
//   - [Event] is one audit record.
//
// The Engine decides which events to emit. This package only buffers and
// delivers them, and it never sees raw credentials.
package audit
