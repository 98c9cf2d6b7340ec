// Package middleware adapts twostep.Engine to net/http.
//
// # Guards
//
//   - [Guard] resolves the bearer session token and attaches the principal.
//   - [RequireRole] is Guard plus a minimum role.
//   - [Identify] only attaches the client IP and device.
//
// Sessions are bound to the address and device they were issued to, so the
// device identifier travels in the [DeviceHeader] header on every request.
//
// # What this package must NOT do
//
//   - Parse tokens or hash session tokens (the Engine does).
//   - Touch the store directly.
//   - Reveal why a session was rejected.
package middleware
