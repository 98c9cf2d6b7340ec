package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no row matches a filter.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("store: conflict")
	// ErrInvalidFilter is returned when a filter has no identifying field.
	ErrInvalidFilter = errors.New("store: invalid filter")
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Role is an ordered permission level. Higher values are more privileged.
type Role int

const (
	RoleUser  Role = 1
	RoleAdmin Role = 100
)

// Account is the persisted identity row.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       Status
	Version      int64
	Custom       json.RawMessage
	CodeHash     *string
	IP           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one bearer session bound to (Name, IP, Device).
type Session struct {
	ID        int64
	Name      string
	IP        string
	Device    string
	TokenHash string
	Role      Role
	CreatedAt time.Time
}

// AccountFilter selects accounts. Empty fields are ignored; at least one of
// Name or Email must be set.
type AccountFilter struct {
	Name    string
	Email   string
	Status  Status
	Version *int64
}

// Identified reports whether the filter names an account.
func (f AccountFilter) Identified() bool {
	return f.Name != "" || f.Email != ""
}

// AccountPatch lists the fields an update writes. Nil pointers are left
// untouched. Every applied patch increments Version by one.
type AccountPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Status       *Status
	IP           *string
	CodeHash     *string
	ClearCode    bool
}

// SessionScope selects how many sessions a [SessionFilter] covers.
type SessionScope int

const (
	// ScopeAll covers every session of the account.
	ScopeAll SessionScope = iota
	// ScopeDevice covers the one session bound to (IP, Device). Empty
	// values are matched literally.
	ScopeDevice
)

// SessionFilter selects sessions for revocation: either every session of
// Name, or the single (Name, IP, Device) session.
type SessionFilter struct {
	Name   string
	Scope  SessionScope
	IP     string
	Device string
}

// AllSessions selects every session of name.
func AllSessions(name string) SessionFilter {
	return SessionFilter{Name: name, Scope: ScopeAll}
}

// DeviceSession selects the session of name bound to (ip, device).
func DeviceSession(name, ip, device string) SessionFilter {
	return SessionFilter{Name: name, Scope: ScopeDevice, IP: ip, Device: device}
}

// Validate rejects filters without a name, with an unknown scope, or with
// ScopeAll and a device binding.
func (f SessionFilter) Validate() error {
	if f.Name == "" {
		return ErrInvalidFilter
	}
	switch f.Scope {
	case ScopeAll:
		if f.IP != "" || f.Device != "" {
			return ErrInvalidFilter
		}
	case ScopeDevice:
	default:
		return ErrInvalidFilter
	}
	return nil
}

// SingleDevice reports whether the filter targets one device.
func (f SessionFilter) SingleDevice() bool {
	return f.Scope == ScopeDevice
}

// Queries are the data operations available both on a [Store] and inside a
// [Tx].
type Queries interface {
	// FindAccount returns the single account matching f. cols narrows the
	// populated fields; nil means every column.
	FindAccount(ctx context.Context, f AccountFilter, cols []Column) (Account, error)
	// InsertAccount inserts a. An existing pending row with the same name or
	// email whose last update is before staleBefore is replaced; any other
	// collision is ErrConflict.
	InsertAccount(ctx context.Context, a Account, staleBefore time.Time) (Account, error)
	// UpdateAccount applies p to the account matching f and bumps its
	// version. ErrNotFound when nothing matched.
	UpdateAccount(ctx context.Context, f AccountFilter, p AccountPatch) error
	// DeleteAccount physically removes the named account.
	DeleteAccount(ctx context.Context, name string) error

	// UpsertSession inserts s or replaces the row with the same
	// (Name, IP, Device).
	UpsertSession(ctx context.Context, s Session) error
	// DeleteSessions removes sessions matching f and returns the count.
	DeleteSessions(ctx context.Context, f SessionFilter) (int64, error)
	// FindSession returns the session with tokenHash bound to ip and device
	// created at or after notBefore.
	FindSession(ctx context.Context, tokenHash, ip, device string, notBefore time.Time) (Session, error)
	// ListSessions returns every session of name, oldest first.
	ListSessions(ctx context.Context, name string) ([]Session, error)
}

// Tx is an open transaction. Exactly one of Commit or Rollback must be
// called.
type Tx interface {
	Queries
	Commit() error
	Rollback() error
}

// Store is a transactional account and session store. Implementations must
// be safe for concurrent use.
type Store interface {
	Queries
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// WithTx runs fn inside a transaction. The transaction is rolled back when
// fn returns an error or panics and committed otherwise.
func WithTx(ctx context.Context, s Store, fn func(tx Tx) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}
