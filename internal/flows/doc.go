// Package flows contains the first/verify orchestrators for every Engine
// operation.
//
// Each Run* function accepts a [Deps] bundle, a request and a per-flow
// options struct, and returns a [Result] or a classified failure carrying
// tracing codes. Mutations run in a single store transaction together with
// AfterStateChange interceptors and notification delivery; any failure in
// that scope rolls the transaction back.
//
// # Architecture boundaries
//
// Flow functions coordinate the store, credential and code hashers, token
// codec, session manager, notifier and rate limiter. They do NOT own any of
// these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import twostep (to avoid import cycles).
//   - Leave a transaction open when returning.
package flows
