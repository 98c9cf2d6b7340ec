package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/twostep/store"
)

const sessionColumns = "id, name, ip, device, token_hash, role, created_at"

type queries struct {
	db      DBTX
	dialect Dialect
	now     func() time.Time
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (q *queries) rebind(query string) string {
	if q.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func accountWhere(f store.AccountFilter) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if f.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, f.Name)
	}
	if f.Email != "" {
		clauses = append(clauses, "email = ?")
		args = append(args, f.Email)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Version != nil {
		clauses = append(clauses, "version = ?")
		args = append(args, *f.Version)
	}
	return strings.Join(clauses, " AND "), args
}

func columnList(cols []store.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, cols []store.Column) (store.Account, error) {
	var (
		a         store.Account
		status    string
		role      int64
		custom    sql.NullString
		codeHash  sql.NullString
		createdAt int64
		updatedAt int64
	)
	dest := make([]any, len(cols))
	for i, c := range cols {
		switch c {
		case store.ColumnID:
			dest[i] = &a.ID
		case store.ColumnName:
			dest[i] = &a.Name
		case store.ColumnEmail:
			dest[i] = &a.Email
		case store.ColumnPasswordHash:
			dest[i] = &a.PasswordHash
		case store.ColumnRole:
			dest[i] = &role
		case store.ColumnStatus:
			dest[i] = &status
		case store.ColumnVersion:
			dest[i] = &a.Version
		case store.ColumnCustom:
			dest[i] = &custom
		case store.ColumnCodeHash:
			dest[i] = &codeHash
		case store.ColumnIP:
			dest[i] = &a.IP
		case store.ColumnCreatedAt:
			dest[i] = &createdAt
		case store.ColumnUpdatedAt:
			dest[i] = &updatedAt
		default:
			return store.Account{}, fmt.Errorf("sqlstore: unknown column %q", c)
		}
	}
	if err := row.Scan(dest...); err != nil {
		return store.Account{}, err
	}

	a.Role = store.Role(role)
	a.Status = store.Status(status)
	if custom.Valid && custom.String != "" {
		a.Custom = json.RawMessage(custom.String)
	}
	if codeHash.Valid {
		h := codeHash.String
		a.CodeHash = &h
	}
	if createdAt != 0 {
		a.CreatedAt = fromMillis(createdAt)
	}
	if updatedAt != 0 {
		a.UpdatedAt = fromMillis(updatedAt)
	}
	return a, nil
}

func (q *queries) FindAccount(ctx context.Context, f store.AccountFilter, cols []store.Column) (store.Account, error) {
	if !f.Identified() {
		return store.Account{}, store.ErrInvalidFilter
	}
	if len(cols) == 0 {
		cols = store.AllColumns
	}
	where, args := accountWhere(f)
	query := "SELECT " + columnList(cols) + " FROM accounts WHERE " + where

	a, err := scanAccount(q.db.QueryRowContext(ctx, q.rebind(query), args...), cols)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Account{}, store.ErrNotFound
		}
		return store.Account{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (q *queries) InsertAccount(ctx context.Context, a store.Account, staleBefore time.Time) (store.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		q.rebind("SELECT name, status, updated_at FROM accounts WHERE name = ? OR email = ?"),
		a.Name, a.Email,
	)
	if err != nil {
		return store.Account{}, fmt.Errorf("db error: %w", err)
	}
	var stale []string
	for rows.Next() {
		var (
			name      string
			status    string
			updatedAt int64
		)
		if err := rows.Scan(&name, &status, &updatedAt); err != nil {
			_ = rows.Close()
			return store.Account{}, fmt.Errorf("db error: %w", err)
		}
		if store.Status(status) != store.StatusPending || !fromMillis(updatedAt).Before(staleBefore) {
			_ = rows.Close()
			return store.Account{}, store.ErrConflict
		}
		stale = append(stale, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return store.Account{}, fmt.Errorf("db error: %w", err)
	}
	_ = rows.Close()

	for _, name := range stale {
		if _, err := q.db.ExecContext(ctx, q.rebind("DELETE FROM accounts WHERE name = ?"), name); err != nil {
			return store.Account{}, fmt.Errorf("db error: %w", err)
		}
	}

	now := q.now().UTC()
	var (
		custom   any
		codeHash any
	)
	if len(a.Custom) > 0 {
		custom = string(a.Custom)
	}
	if a.CodeHash != nil {
		codeHash = *a.CodeHash
	}

	err = q.db.QueryRowContext(ctx, q.rebind(`INSERT INTO accounts
		(name, email, password_hash, role, status, version, custom, code_hash, last_ip, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?) RETURNING id`),
		a.Name, a.Email, a.PasswordHash, int64(a.Role), string(a.Status), custom, codeHash, a.IP, toMillis(now), toMillis(now),
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.Account{}, store.ErrConflict
		}
		return store.Account{}, fmt.Errorf("db error: %w", err)
	}

	a.Version = 0
	a.CreatedAt = fromMillis(toMillis(now))
	a.UpdatedAt = a.CreatedAt
	return a, nil
}

func (q *queries) UpdateAccount(ctx context.Context, f store.AccountFilter, p store.AccountPatch) error {
	if !f.Identified() {
		return store.ErrInvalidFilter
	}

	sets := make([]string, 0, 8)
	args := make([]any, 0, 12)
	set := func(col store.Column, v any) {
		sets = append(sets, string(col)+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		set(store.ColumnName, *p.Name)
	}
	if p.Email != nil {
		set(store.ColumnEmail, *p.Email)
	}
	if p.PasswordHash != nil {
		set(store.ColumnPasswordHash, *p.PasswordHash)
	}
	if p.Status != nil {
		set(store.ColumnStatus, string(*p.Status))
	}
	if p.IP != nil {
		set(store.ColumnIP, *p.IP)
	}
	switch {
	case p.ClearCode:
		sets = append(sets, "code_hash = NULL")
	case p.CodeHash != nil:
		set(store.ColumnCodeHash, *p.CodeHash)
	}
	sets = append(sets, "version = version + 1")
	set(store.ColumnUpdatedAt, toMillis(q.now()))

	where, whereArgs := accountWhere(f)
	args = append(args, whereArgs...)
	query := "UPDATE accounts SET " + strings.Join(sets, ", ") + " WHERE " + where

	res, err := q.db.ExecContext(ctx, q.rebind(query), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *queries) DeleteAccount(ctx context.Context, name string) error {
	res, err := q.db.ExecContext(ctx, q.rebind("DELETE FROM accounts WHERE name = ?"), name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *queries) UpsertSession(ctx context.Context, s store.Session) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = q.now()
	}
	_, err := q.db.ExecContext(ctx, q.rebind(`INSERT INTO sessions (name, ip, device, token_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, ip, device) DO UPDATE SET
			token_hash = excluded.token_hash,
			role = excluded.role,
			created_at = excluded.created_at`),
		s.Name, s.IP, s.Device, s.TokenHash, int64(s.Role), toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (q *queries) DeleteSessions(ctx context.Context, f store.SessionFilter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	query := "DELETE FROM sessions WHERE name = ?"
	args := []any{f.Name}
	if f.SingleDevice() {
		query += " AND ip = ? AND device = ?"
		args = append(args, f.IP, f.Device)
	}
	res, err := q.db.ExecContext(ctx, q.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanSession(row rowScanner) (store.Session, error) {
	var (
		s         store.Session
		role      int64
		createdAt int64
	)
	if err := row.Scan(&s.ID, &s.Name, &s.IP, &s.Device, &s.TokenHash, &role, &createdAt); err != nil {
		return store.Session{}, err
	}
	s.Role = store.Role(role)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (q *queries) FindSession(ctx context.Context, tokenHash, ip, device string, notBefore time.Time) (store.Session, error) {
	row := q.db.QueryRowContext(ctx,
		q.rebind("SELECT "+sessionColumns+" FROM sessions WHERE token_hash = ? AND ip = ? AND device = ? AND created_at >= ?"),
		tokenHash, ip, device, toMillis(notBefore),
	)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Session{}, store.ErrNotFound
		}
		return store.Session{}, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (q *queries) ListSessions(ctx context.Context, name string) ([]store.Session, error) {
	rows, err := q.db.QueryContext(ctx,
		q.rebind("SELECT "+sessionColumns+" FROM sessions WHERE name = ? ORDER BY created_at, id"),
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]store.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
