// Package internal contains helper utilities that are intentionally private to
// twostep: secure numeric code generation and keyed digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - failure: error kinds, HTTP status mapping and tracing codes
//   - flows: first/verify orchestrators for every Engine operation
//   - rate: Redis-backed issuance and verification counters
//
// # What this package must NOT do
//
//   - Export types that appear in the public twostep API.
//   - Be imported by any package outside the twostep module.
package internal
