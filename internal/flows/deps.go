package flows

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/token"
)

// CredentialHasher hashes and verifies account passwords.
type CredentialHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// CodeHasher creates, hashes and verifies one-time codes.
type CodeHasher interface {
	Create() (string, error)
	Hash(code string) (string, error)
	Verify(code string, hash *string) (bool, error)
}

// TokenCodec signs and verifies continuation tokens.
type TokenCodec interface {
	Sign(sub token.Subject, purpose token.Purpose, version *int64, ttl time.Duration) (string, error)
	Verify(raw string, purpose token.Purpose) (*token.Claims, error)
}

// SessionManager issues, resolves and revokes sessions against the given
// queries handle.
type SessionManager interface {
	Upsert(ctx context.Context, q store.Queries, owner session.Owner, ip, device string) (string, error)
	Revoke(ctx context.Context, q store.Queries, filter store.SessionFilter) (int64, error)
	ResolveIfPresent(ctx context.Context, q store.Queries, token, ip, device string, cols []store.Column) (session.Resolved, error)
	List(ctx context.Context, q store.Queries, name string) ([]store.Session, error)
}

// Limiter bounds code issuance and failed verifications. Subjects are
// account names; operations group the steps of one flow.
type Limiter interface {
	CheckIssue(ctx context.Context, operation, subject, ip string) error
	CheckVerify(ctx context.Context, operation, subject string) error
	RecordVerifyFailure(ctx context.Context, operation, subject string) error
	ResetVerify(ctx context.Context, operation, subject string) error
}

// Observer receives flow side-effect notifications for metrics. Nil
// fields are skipped.
type Observer struct {
	SessionCreated  func(flow Flow)
	SessionsRevoked func(flow Flow, n int64)
	RolledBack      func(flow Flow)
	RateLimited     func(flow Flow)
}

// Deps is the collaborator bundle every flow runs against. The root engine
// builds it once.
type Deps struct {
	Store       store.Store
	Credentials CredentialHasher
	Codes       CodeHasher
	Tokens      TokenCodec
	Sessions    SessionManager
	Notifier    notify.Notifier
	// Limiter is optional.
	Limiter Limiter
	Logger  *slog.Logger
	Now     func() time.Time
	// TokenTTL is the continuation token lifetime used when a flow option
	// does not override it. Pending accounts idle for longer are
	// replaceable by a new registration.
	TokenTTL time.Duration
	// BidTTL is the lifetime of the password-reset bid token.
	BidTTL   time.Duration
	Observer Observer
}

func (d *Deps) ready() bool {
	return d != nil &&
		d.Store != nil &&
		d.Credentials != nil &&
		d.Codes != nil &&
		d.Tokens != nil &&
		d.Sessions != nil &&
		d.Notifier != nil
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) ttl(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return d.TokenTTL
}

func (d *Deps) sessionCreated(flow Flow) {
	if d.Observer.SessionCreated != nil {
		d.Observer.SessionCreated(flow)
	}
}

func (d *Deps) sessionsRevoked(flow Flow, n int64) {
	if n > 0 && d.Observer.SessionsRevoked != nil {
		d.Observer.SessionsRevoked(flow, n)
	}
}

func (d *Deps) rolledBack(flow Flow) {
	if d.Observer.RolledBack != nil {
		d.Observer.RolledBack(flow)
	}
}

func (d *Deps) rateLimited(flow Flow) {
	if d.Observer.RateLimited != nil {
		d.Observer.RateLimited(flow)
	}
}
