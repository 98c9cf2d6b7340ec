// Package twostep is a two-phase, challenge-response authentication engine
// for account creation, login, email change, account deletion and password
// reset.
//
// Every operation is split into a first step, which checks identity and
// issues a one-time code plus a signed continuation token, and a verify
// step, which checks both and commits the state change together with
// session rotation in one store transaction. Notification and
// AfterStateChange interceptors run inside that transaction, so a failed
// send or a failing interceptor rolls the change back.
//
// # Architecture boundaries
//
// twostep is the public surface: [Engine], [Builder], [Config], the
// request, option and result types, and the error taxonomy. Flow
// orchestration lives in internal/flows and audit dispatch in
// internal/audit. Storage is reached only through the store package
// interfaces, with in-memory and SQL implementations under store/.
//
// # Replay safety
//
// Continuation tokens carry a purpose and, except during creation, the
// account version they were issued against. The store advances the version
// on every account update, so a token is accepted at most once and never
// after a concurrent change to the account.
//
// # What this package must NOT do
//
//   - Send codes or tokens anywhere except through the configured Notifier.
//   - Store plaintext codes, passwords or session tokens.
//   - Import any sub-package that re-imports twostep.
package twostep
