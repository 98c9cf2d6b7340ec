// Package sqlstore implements [store.Store] on database/sql for PostgreSQL
// (github.com/jackc/pgx/v5/stdlib) and SQLite (modernc.org/sqlite).
//
// Queries are written once with ? placeholders and rebound to $n for
// PostgreSQL. Timestamps are stored as unix milliseconds so both dialects
// share one schema shape. Schema changes ship as goose migrations embedded
// in the binary, one directory per dialect.
package sqlstore
