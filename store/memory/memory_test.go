package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/twostep/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func pending(name, email string) store.Account {
	return store.Account{Name: name, Email: email, PasswordHash: "x", Role: store.RoleUser, Status: store.StatusPending}
}

func TestInsertAccountRejectsLiveCollision(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore()

	_, err := s.InsertAccount(ctx, pending("alice", "a@x.com"), clock.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = s.InsertAccount(ctx, pending("alice", "other@x.com"), clock.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.InsertAccount(ctx, pending("bob", "a@x.com"), clock.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestInsertAccountReplacesStalePendingRow(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore()

	first, err := s.InsertAccount(ctx, pending("alice", "a@x.com"), clock.Now())
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	second, err := s.InsertAccount(ctx, pending("alice", "a@x.com"), clock.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestInsertAccountNeverReplacesActiveRow(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore()

	a := pending("alice", "a@x.com")
	a.Status = store.StatusActive
	_, err := s.InsertAccount(ctx, a, clock.Now())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = s.InsertAccount(ctx, pending("alice", "a@x.com"), clock.Now())
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUpdateAccountBumpsVersionAndHonoursFilter(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore()
	_, err := s.InsertAccount(ctx, pending("alice", "a@x.com"), clock.Now())
	require.NoError(t, err)

	active := store.StatusActive
	v0 := int64(0)
	require.NoError(t, s.UpdateAccount(ctx, store.AccountFilter{Name: "alice", Version: &v0}, store.AccountPatch{Status: &active}))

	got, err := s.FindAccount(ctx, store.AccountFilter{Name: "alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, store.StatusActive, got.Status)

	err = s.UpdateAccount(ctx, store.AccountFilter{Name: "alice", Version: &v0}, store.AccountPatch{Status: &active})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateAccountRenameRekeysAndChecksEmail(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore()
	_, err := s.InsertAccount(ctx, pending("alice", "a@x.com"), clock.Now())
	require.NoError(t, err)
	_, err = s.InsertAccount(ctx, pending("bob", "b@x.com"), clock.Now())
	require.NoError(t, err)

	taken := "b@x.com"
	err = s.UpdateAccount(ctx, store.AccountFilter{Name: "alice"}, store.AccountPatch{Email: &taken})
	assert.ErrorIs(t, err, store.ErrConflict)

	renamed := "1#alice"
	require.NoError(t, s.UpdateAccount(ctx, store.AccountFilter{Name: "alice"}, store.AccountPatch{Name: &renamed}))

	_, err = s.FindAccount(ctx, store.AccountFilter{Name: "alice"}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := s.FindAccount(ctx, store.AccountFilter{Email: "a@x.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, renamed, got.Name)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertAccount(ctx, pending("alice", "a@x.com"), clock.Now())
	require.NoError(t, err)
	require.NoError(t, tx.UpsertSession(ctx, store.Session{Name: "alice", IP: "1.1.1.1", Device: "d", TokenHash: "h"}))

	_, err = s.FindAccount(ctx, store.AccountFilter{Name: "alice"}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound, "uncommitted rows must not be visible")

	require.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)

	_, err = s.FindAccount(ctx, store.AccountFilter{Name: "alice"}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
	sessions, err := s.ListSessions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore()

	err := store.WithTx(ctx, s, func(tx store.Tx) error {
		_, err := tx.InsertAccount(ctx, pending("alice", "a@x.com"), clock.Now())
		return err
	})
	require.NoError(t, err)

	boom := assert.AnError
	err = store.WithTx(ctx, s, func(tx store.Tx) error {
		if _, err := tx.InsertAccount(ctx, pending("bob", "b@x.com"), clock.Now()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindAccount(ctx, store.AccountFilter{Name: "alice"}, nil)
	assert.NoError(t, err)
	_, err = s.FindAccount(ctx, store.AccountFilter{Name: "bob"}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertSessionIsKeyedOnNameIPDevice(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()

	require.NoError(t, s.UpsertSession(ctx, store.Session{Name: "alice", IP: "1.1.1.1", Device: "phone", TokenHash: "h1"}))
	require.NoError(t, s.UpsertSession(ctx, store.Session{Name: "alice", IP: "1.1.1.1", Device: "phone", TokenHash: "h2"}))
	require.NoError(t, s.UpsertSession(ctx, store.Session{Name: "alice", IP: "2.2.2.2", Device: "laptop", TokenHash: "h3"}))

	sessions, err := s.ListSessions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	_, err = s.FindSession(ctx, "h1", "1.1.1.1", "phone", time.Time{})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindSession(ctx, "h2", "1.1.1.1", "phone", time.Time{})
	assert.NoError(t, err)
	_, err = s.FindSession(ctx, "h2", "2.2.2.2", "phone", time.Time{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteSessionsSingleDeviceAndAll(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()
	for _, dev := range []string{"phone", "laptop", "tablet", ""} {
		require.NoError(t, s.UpsertSession(ctx, store.Session{Name: "alice", IP: "1.1.1.1", Device: dev, TokenHash: "h-" + dev}))
	}

	n, err := s.DeleteSessions(ctx, store.DeviceSession("alice", "1.1.1.1", "phone"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteSessions(ctx, store.DeviceSession("alice", "1.1.1.1", ""))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteSessions(ctx, store.AllSessions("alice"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.DeleteSessions(ctx, store.SessionFilter{Name: "alice", IP: "1.1.1.1"})
	assert.ErrorIs(t, err, store.ErrInvalidFilter)
}

func TestFindSessionIgnoresExpiredRows(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore()
	require.NoError(t, s.UpsertSession(ctx, store.Session{Name: "alice", IP: "ip", Device: "d", TokenHash: "h"}))

	clock.Advance(time.Hour)
	_, err := s.FindSession(ctx, "h", "ip", "d", clock.Now().Add(-30*time.Minute))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindSession(ctx, "h", "ip", "d", clock.Now().Add(-2*time.Hour))
	assert.NoError(t, err)
}

func TestBeginHonoursContextWhileAnotherTxIsOpen(t *testing.T) {
	s, _ := newClockedStore()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
