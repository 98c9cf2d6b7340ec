// Package failure defines the error taxonomy shared by the flow orchestrators
// and the public twostep surface.
//
// Every failure carries a [Kind] (which fixes the HTTP-style status class) and
// an ordered list of numeric tracing codes. Codes are stable per checkpoint so
// callers and tests can assert exactly which validation rejected a request.
//
// # What this package must NOT do
//
//   - Import twostep or any sibling package.
//   - Decide which code a flow uses; codes are owned by internal/flows.
package failure
