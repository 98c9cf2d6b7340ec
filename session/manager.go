package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/twostep/internal"
	"github.com/MrEthical07/twostep/store"
)

// ErrNotFound is returned when a bearer token does not resolve to a live
// session for the presenting device and IP.
var ErrNotFound = errors.New("session not found")

// DefaultLifetime is how long a session resolves after its last upsert.
const DefaultLifetime = 30 * 24 * time.Hour

// Config configures a [Manager].
type Config struct {
	// Secret keys the HMAC applied to session tokens before storage.
	Secret   []byte
	Lifetime time.Duration
	Now      func() time.Time
}

// Owner is the account a session is issued for.
type Owner struct {
	Name string
	Role store.Role
}

// Resolved is the outcome of [Manager.ResolveIfPresent].
type Resolved struct {
	Account store.Account
	Session store.Session
}

// Manager issues, resolves and revokes sessions. All methods take the
// [store.Queries] to run against so they can join an open transaction.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// New validates cfg and returns a Manager.
func New(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session: secret is required")
	}
	if cfg.Lifetime < 0 {
		return nil, errors.New("session: lifetime must not be negative")
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		secret:   append([]byte(nil), cfg.Secret...),
		lifetime: cfg.Lifetime,
		now:      cfg.Now,
	}, nil
}

// Hash returns the at-rest form of a plaintext session token.
func (m *Manager) Hash(token string) string {
	return internal.KeyedDigest(m.secret, token)
}

// Upsert issues a new session token for owner on (ip, device), replacing
// any session already bound to that triple. The plaintext token is returned
// once and never stored.
func (m *Manager) Upsert(ctx context.Context, q store.Queries, owner Owner, ip, device string) (string, error) {
	if strings.TrimSpace(owner.Name) == "" {
		return "", errors.New("session: owner name is required")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	token := id.String()

	err = q.UpsertSession(ctx, store.Session{
		Name:      owner.Name,
		IP:        ip,
		Device:    device,
		TokenHash: m.Hash(token),
		Role:      owner.Role,
		CreatedAt: m.now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Revoke deletes every session matching filter, which must name either an
// account or an account plus (ip, device).
func (m *Manager) Revoke(ctx context.Context, q store.Queries, filter store.SessionFilter) (int64, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	return q.DeleteSessions(ctx, filter)
}

// ResolveIfPresent converts a bearer token presented from (ip, device) into
// the owning account, projected onto cols. Sessions older than the
// configured lifetime are ignored. Name, role and status are always loaded
// so callers can authorize a narrowed principal.
func (m *Manager) ResolveIfPresent(ctx context.Context, q store.Queries, token, ip, device string, cols []store.Column) (Resolved, error) {
	if token == "" {
		return Resolved{}, ErrNotFound
	}
	notBefore := m.now().Add(-m.lifetime)
	sess, err := q.FindSession(ctx, m.Hash(token), ip, device, notBefore)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolved{}, ErrNotFound
		}
		return Resolved{}, err
	}

	account, err := q.FindAccount(ctx, store.AccountFilter{Name: sess.Name}, store.Calibrate(cols, store.ColumnName, store.ColumnRole, store.ColumnStatus))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolved{}, ErrNotFound
		}
		return Resolved{}, err
	}
	return Resolved{Account: account, Session: sess}, nil
}

// List returns the sessions owned by name that are still within their
// lifetime.
func (m *Manager) List(ctx context.Context, q store.Queries, name string) ([]store.Session, error) {
	all, err := q.ListSessions(ctx, name)
	if err != nil {
		return nil, err
	}
	notBefore := m.now().Add(-m.lifetime)
	live := all[:0]
	for _, s := range all {
		if !s.CreatedAt.Before(notBefore) {
			live = append(live, s)
		}
	}
	return live, nil
}
