// Package store defines the data contract consumed by the flow orchestrators:
// the [Account] and [Session] rows, filter and patch shapes, and the
// transactional [Store] interface.
//
// Backends live in sub-packages: store/memory (process-local, used by tests
// and the load generator) and store/sqlstore (PostgreSQL through pgx and
// SQLite through modernc.org/sqlite).
//
// Every backend follows the same rules:
//
//   - UpdateAccount increments the account version by exactly one.
//   - Session rows are unique on (name, ip, device) and UpsertSession is atomic.
//   - Missing rows surface as [ErrNotFound]; unique violations as [ErrConflict].
package store
