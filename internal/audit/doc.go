// Package audit implements async event dispatching for flow outcomes.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: one flow outcome with flow name, account name, IP, device, status and tracing codes.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import twostep or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
