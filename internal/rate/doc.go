// Package rate provides the Redis-backed counters that bound one-time code
// issuance and failed code verifications per flow and subject.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - "ts:i:" counts code issuance per flow and subject
//   - "ts:ii:" counts code issuance per flow and IP
//   - "ts:v:" counts failed verifications per flow and subject
//
// # What this package must NOT do
//
//   - Decide which flows are limited (the engine wires that).
//   - Be imported outside the twostep module.
package rate
