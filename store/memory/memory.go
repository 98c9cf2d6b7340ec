package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/twostep/store"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memory: transaction already finished")

type sessionKey struct {
	name   string
	ip     string
	device string
}

type state struct {
	nextAccountID int64
	nextSessionID int64
	accounts      map[string]store.Account
	sessions      map[sessionKey]store.Session
}

func newState() *state {
	return &state{
		accounts: make(map[string]store.Account),
		sessions: make(map[sessionKey]store.Session),
	}
}

func (st *state) clone() *state {
	out := &state{
		nextAccountID: st.nextAccountID,
		nextSessionID: st.nextSessionID,
		accounts:      make(map[string]store.Account, len(st.accounts)),
		sessions:      make(map[sessionKey]store.Session, len(st.sessions)),
	}
	for k, a := range st.accounts {
		out.accounts[k] = copyAccount(a)
	}
	for k, s := range st.sessions {
		out.sessions[k] = s
	}
	return out
}

func copyAccount(a store.Account) store.Account {
	if a.CodeHash != nil {
		h := *a.CodeHash
		a.CodeHash = &h
	}
	if a.Custom != nil {
		a.Custom = append([]byte(nil), a.Custom...)
	}
	return a
}

// Store is a process-local transactional store. Writers are serialized;
// readers see the last committed state.
type Store struct {
	mu        sync.RWMutex
	committed *state
	writer    chan struct{}
	now       func() time.Time
}

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		committed: newState(),
		writer:    make(chan struct{}, 1),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin opens a transaction working on a private copy of the committed
// state. It blocks while another transaction is open.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	return &tx{parent: s, state: work}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.committed)
}

func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	t, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(t.(*tx).state); err != nil {
		_ = t.Rollback()
		return err
	}
	return t.Commit()
}

func (s *Store) FindAccount(ctx context.Context, f store.AccountFilter, cols []store.Column) (store.Account, error) {
	var out store.Account
	err := s.read(func(st *state) error {
		a, err := st.findAccount(f)
		if err != nil {
			return err
		}
		out = store.Project(copyAccount(a), cols)
		return nil
	})
	return out, err
}

func (s *Store) InsertAccount(ctx context.Context, a store.Account, staleBefore time.Time) (store.Account, error) {
	var out store.Account
	err := s.write(ctx, func(st *state) error {
		inserted, err := st.insertAccount(a, staleBefore, s.now())
		out = inserted
		return err
	})
	return out, err
}

func (s *Store) UpdateAccount(ctx context.Context, f store.AccountFilter, p store.AccountPatch) error {
	return s.write(ctx, func(st *state) error {
		return st.updateAccount(f, p, s.now())
	})
}

func (s *Store) DeleteAccount(ctx context.Context, name string) error {
	return s.write(ctx, func(st *state) error {
		return st.deleteAccount(name)
	})
}

func (s *Store) UpsertSession(ctx context.Context, sess store.Session) error {
	return s.write(ctx, func(st *state) error {
		st.upsertSession(sess, s.now())
		return nil
	})
}

func (s *Store) DeleteSessions(ctx context.Context, f store.SessionFilter) (int64, error) {
	var n int64
	err := s.write(ctx, func(st *state) error {
		deleted, err := st.deleteSessions(f)
		n = deleted
		return err
	})
	return n, err
}

func (s *Store) FindSession(ctx context.Context, tokenHash, ip, device string, notBefore time.Time) (store.Session, error) {
	var out store.Session
	err := s.read(func(st *state) error {
		found, err := st.findSession(tokenHash, ip, device, notBefore)
		out = found
		return err
	})
	return out, err
}

func (s *Store) ListSessions(ctx context.Context, name string) ([]store.Session, error) {
	var out []store.Session
	err := s.read(func(st *state) error {
		out = st.listSessions(name)
		return nil
	})
	return out, err
}

type tx struct {
	parent *Store
	state  *state
	done   bool
}

func (t *tx) finish() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return nil
}

func (t *tx) Commit() error {
	if err := t.finish(); err != nil {
		return err
	}
	t.parent.mu.Lock()
	t.parent.committed = t.state
	t.parent.mu.Unlock()
	<-t.parent.writer
	return nil
}

func (t *tx) Rollback() error {
	if err := t.finish(); err != nil {
		return err
	}
	t.state = nil
	<-t.parent.writer
	return nil
}

func (t *tx) live() error {
	if t.done {
		return ErrTxDone
	}
	return nil
}

func (t *tx) FindAccount(ctx context.Context, f store.AccountFilter, cols []store.Column) (store.Account, error) {
	if err := t.live(); err != nil {
		return store.Account{}, err
	}
	a, err := t.state.findAccount(f)
	if err != nil {
		return store.Account{}, err
	}
	return store.Project(copyAccount(a), cols), nil
}

func (t *tx) InsertAccount(ctx context.Context, a store.Account, staleBefore time.Time) (store.Account, error) {
	if err := t.live(); err != nil {
		return store.Account{}, err
	}
	return t.state.insertAccount(a, staleBefore, t.parent.now())
}

func (t *tx) UpdateAccount(ctx context.Context, f store.AccountFilter, p store.AccountPatch) error {
	if err := t.live(); err != nil {
		return err
	}
	return t.state.updateAccount(f, p, t.parent.now())
}

func (t *tx) DeleteAccount(ctx context.Context, name string) error {
	if err := t.live(); err != nil {
		return err
	}
	return t.state.deleteAccount(name)
}

func (t *tx) UpsertSession(ctx context.Context, sess store.Session) error {
	if err := t.live(); err != nil {
		return err
	}
	t.state.upsertSession(sess, t.parent.now())
	return nil
}

func (t *tx) DeleteSessions(ctx context.Context, f store.SessionFilter) (int64, error) {
	if err := t.live(); err != nil {
		return 0, err
	}
	return t.state.deleteSessions(f)
}

func (t *tx) FindSession(ctx context.Context, tokenHash, ip, device string, notBefore time.Time) (store.Session, error) {
	if err := t.live(); err != nil {
		return store.Session{}, err
	}
	return t.state.findSession(tokenHash, ip, device, notBefore)
}

func (t *tx) ListSessions(ctx context.Context, name string) ([]store.Session, error) {
	if err := t.live(); err != nil {
		return nil, err
	}
	return t.state.listSessions(name), nil
}

func matches(a store.Account, f store.AccountFilter) bool {
	if f.Name != "" && a.Name != f.Name {
		return false
	}
	if f.Email != "" && a.Email != f.Email {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Version != nil && a.Version != *f.Version {
		return false
	}
	return true
}

func (st *state) findAccount(f store.AccountFilter) (store.Account, error) {
	if !f.Identified() {
		return store.Account{}, store.ErrInvalidFilter
	}
	if f.Name != "" {
		a, ok := st.accounts[f.Name]
		if !ok || !matches(a, f) {
			return store.Account{}, store.ErrNotFound
		}
		return a, nil
	}
	for _, a := range st.accounts {
		if matches(a, f) {
			return a, nil
		}
	}
	return store.Account{}, store.ErrNotFound
}

func (st *state) emailTaken(email, exceptName string) bool {
	for name, a := range st.accounts {
		if name != exceptName && a.Email == email {
			return true
		}
	}
	return false
}

func (st *state) insertAccount(a store.Account, staleBefore, now time.Time) (store.Account, error) {
	var replace []string
	for name, existing := range st.accounts {
		if existing.Name != a.Name && existing.Email != a.Email {
			continue
		}
		if existing.Status == store.StatusPending && existing.UpdatedAt.Before(staleBefore) {
			replace = append(replace, name)
			continue
		}
		return store.Account{}, store.ErrConflict
	}
	for _, name := range replace {
		delete(st.accounts, name)
	}

	st.nextAccountID++
	a = copyAccount(a)
	a.ID = st.nextAccountID
	a.Version = 0
	a.CreatedAt = now
	a.UpdatedAt = now
	st.accounts[a.Name] = a
	return copyAccount(a), nil
}

func (st *state) updateAccount(f store.AccountFilter, p store.AccountPatch, now time.Time) error {
	current, err := st.findAccount(f)
	if err != nil {
		return err
	}
	next := current

	if p.Name != nil && *p.Name != current.Name {
		if _, taken := st.accounts[*p.Name]; taken {
			return store.ErrConflict
		}
		next.Name = *p.Name
	}
	if p.Email != nil && *p.Email != current.Email {
		if st.emailTaken(*p.Email, current.Name) {
			return store.ErrConflict
		}
		next.Email = *p.Email
	}
	if p.PasswordHash != nil {
		next.PasswordHash = *p.PasswordHash
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.IP != nil {
		next.IP = *p.IP
	}
	if p.CodeHash != nil {
		h := *p.CodeHash
		next.CodeHash = &h
	}
	if p.ClearCode {
		next.CodeHash = nil
	}
	next.Version++
	next.UpdatedAt = now

	delete(st.accounts, current.Name)
	st.accounts[next.Name] = next
	return nil
}

func (st *state) deleteAccount(name string) error {
	if _, ok := st.accounts[name]; !ok {
		return store.ErrNotFound
	}
	delete(st.accounts, name)
	return nil
}

func (st *state) upsertSession(s store.Session, now time.Time) {
	key := sessionKey{name: s.Name, ip: s.IP, device: s.Device}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if existing, ok := st.sessions[key]; ok {
		s.ID = existing.ID
	} else {
		st.nextSessionID++
		s.ID = st.nextSessionID
	}
	st.sessions[key] = s
}

func (st *state) deleteSessions(f store.SessionFilter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	var n int64
	for key := range st.sessions {
		if key.name != f.Name {
			continue
		}
		if f.SingleDevice() && (key.ip != f.IP || key.device != f.Device) {
			continue
		}
		delete(st.sessions, key)
		n++
	}
	return n, nil
}

func (st *state) findSession(tokenHash, ip, device string, notBefore time.Time) (store.Session, error) {
	for key, s := range st.sessions {
		if key.ip != ip || key.device != device || s.TokenHash != tokenHash {
			continue
		}
		if s.CreatedAt.Before(notBefore) {
			continue
		}
		return s, nil
	}
	return store.Session{}, store.ErrNotFound
}

func (st *state) listSessions(name string) []store.Session {
	out := make([]store.Session, 0)
	for key, s := range st.sessions {
		if key.name == name {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
