// Package session manages bearer sessions bound to (account name, IP,
// device).
//
// Tokens are random UUIDs handed to the caller once; only an HMAC-SHA256
// digest of each token is persisted. Re-establishing a session from the
// same triple replaces the previous row.
//
// # Architecture boundaries
//
// The [Manager] owns token generation and hashing. Persistence goes through
// the [store.Queries] passed to each call, so session writes join whatever
// transaction the caller has open.
//
// # What this package must NOT do
//
//   - Store plaintext session tokens.
//   - Make authorization decisions about the resolved account.
package session
