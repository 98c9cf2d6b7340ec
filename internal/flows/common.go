package flows

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/twostep/internal/failure"
	"github.com/MrEthical07/twostep/internal/rate"
	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/otp"
	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/token"
)

// Checkpoints shared by every flow.
const (
	codeRateLimited = 2398
	codeTransaction = 2399
)

var errNotReady = errors.New("flow dependencies are not configured")

// inTx runs fn in a transaction. fn's error is returned after rollback; a
// failed rollback is logged and traced with codeTransaction.
func (d *Deps) inTx(ctx context.Context, flow Flow, fn func(tx store.Tx) error) (err error) {
	tx, err := d.Store.Begin(ctx)
	if err != nil {
		return failure.New(failure.KindInternal, codeTransaction, fmt.Errorf("begin: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			d.rolledBack(flow)
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		d.rolledBack(flow)
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger().Error("twostep: rollback failed",
				"flow", string(flow),
				"error", rbErr,
			)
			return failure.Trace(err, codeTransaction)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		d.rolledBack(flow)
		return failure.New(failure.KindInternal, codeTransaction, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// storeFailure classifies a store error at checkpoint code.
func storeFailure(code int, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return failure.New(failure.KindNotFound, code, err)
	case errors.Is(err, store.ErrConflict):
		return failure.New(failure.KindConflict, code, err)
	default:
		return failure.New(failure.KindInternal, code, err)
	}
}

// updateFailure classifies the error of a version-filtered update. A
// missing row means another writer advanced the version first.
func updateFailure(code int, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return failure.New(failure.KindConflict, code, err)
	}
	return storeFailure(code, err)
}

func sessionFailure(code int, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return failure.New(failure.KindNotFound, code, err)
	}
	return failure.New(failure.KindInternal, code, err)
}

func tokenFailure(code int, err error) error {
	if errors.Is(err, token.ErrInvalid) {
		return failure.New(failure.KindUnauthorized, code, err)
	}
	return failure.New(failure.KindInternal, code, err)
}

func checkRole(code int, have, want store.Role) error {
	if have < want {
		return failure.Errorf(failure.KindForbidden, code, "role %d below required %d", have, want)
	}
	return nil
}

func checkStatus(code int, kind failure.Kind, have, want store.Status) error {
	if have != want {
		return failure.Errorf(kind, code, "account status %s", have)
	}
	return nil
}

func checkVersion(code int, claims *token.Claims, have int64) error {
	if claims.Version == nil || *claims.Version != have {
		return failure.Errorf(failure.KindUnauthorized, code, "token version is stale")
	}
	return nil
}

func (d *Deps) checkIssue(ctx context.Context, flow Flow, subject, ip string) error {
	if d.Limiter == nil {
		return nil
	}
	return d.rateFailure(flow, d.Limiter.CheckIssue(ctx, flow.Operation(), subject, ip))
}

func (d *Deps) checkVerify(ctx context.Context, flow Flow, subject string) error {
	if d.Limiter == nil {
		return nil
	}
	return d.rateFailure(flow, d.Limiter.CheckVerify(ctx, flow.Operation(), subject))
}

func (d *Deps) recordVerifyFailure(ctx context.Context, flow Flow, subject string) {
	if d.Limiter == nil {
		return
	}
	if err := d.Limiter.RecordVerifyFailure(ctx, flow.Operation(), subject); err != nil {
		d.logger().Warn("twostep: verify failure not recorded",
			"flow", string(flow),
			"error", err,
		)
	}
}

func (d *Deps) resetVerify(ctx context.Context, flow Flow, subject string) {
	if d.Limiter == nil {
		return
	}
	if err := d.Limiter.ResetVerify(ctx, flow.Operation(), subject); err != nil {
		d.logger().Warn("twostep: verify counter not reset",
			"flow", string(flow),
			"error", err,
		)
	}
}

func (d *Deps) rateFailure(flow Flow, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		d.rateLimited(flow)
		return failure.New(failure.KindTooManyRequests, codeRateLimited, err)
	}
	return failure.New(failure.KindInternal, codeRateLimited, err)
}

// checkCredential verifies password against the stored hash unless an
// interceptor already did.
func (d *Deps) checkCredential(ctx context.Context, flow Flow, code int, scratch *Scratch, name, password, hash string) error {
	if scratch.CredentialChecked {
		return nil
	}
	if err := d.checkVerify(ctx, flow, name); err != nil {
		return err
	}
	ok, err := d.Credentials.Verify(password, hash)
	if err != nil {
		return failure.New(failure.KindInternal, code, err)
	}
	if !ok {
		d.recordVerifyFailure(ctx, flow, name)
		return failure.Errorf(failure.KindUnauthorized, code, "password mismatch")
	}
	return nil
}

// checkCode verifies a one-time code unless an interceptor already did.
// missingKind classifies an account with no pending code.
func (d *Deps) checkCode(ctx context.Context, flow Flow, missing, mismatch int, missingKind failure.Kind, scratch *Scratch, name, code string, hash *string) error {
	if scratch.CodeChecked {
		return nil
	}
	if err := d.checkVerify(ctx, flow, name); err != nil {
		return err
	}
	ok, err := d.Codes.Verify(code, hash)
	if err != nil {
		if errors.Is(err, otp.ErrMissingCode) {
			return failure.New(missingKind, missing, err)
		}
		return failure.New(failure.KindInternal, mismatch, err)
	}
	if !ok {
		d.recordVerifyFailure(ctx, flow, name)
		return failure.Errorf(failure.KindUnauthorized, mismatch, "one-time code mismatch")
	}
	return nil
}

// issueCode creates a code and its hash.
func (d *Deps) issueCode(code int) (raw, hash string, err error) {
	raw, err = d.Codes.Create()
	if err != nil {
		return "", "", failure.New(failure.KindInternal, code, err)
	}
	hash, err = d.Codes.Hash(raw)
	if err != nil {
		return "", "", failure.New(failure.KindInternal, code, err)
	}
	return raw, hash, nil
}

func (d *Deps) sign(code int, a store.Account, email string, purpose token.Purpose, version *int64, ttl time.Duration) (string, error) {
	raw, err := d.Tokens.Sign(token.Subject{Name: a.Name, Email: email, Role: int(a.Role)}, purpose, version, ttl)
	if err != nil {
		return "", failure.New(failure.KindInternal, code, err)
	}
	return raw, nil
}

// notice sends tmpl to the address when enabled.
func (d *Deps) notice(ctx context.Context, code int, enabled bool, tmpl notify.Template, to string, data map[string]string) error {
	if !enabled {
		return nil
	}
	if err := d.Notifier.Send(ctx, tmpl.Message(to, data)); err != nil {
		return failure.New(failure.KindInternal, code, fmt.Errorf("notify: %w", err))
	}
	return nil
}

func mailData(name, email string) map[string]string {
	return map[string]string{
		notify.KeyName:  name,
		notify.KeyEmail: email,
	}
}

func validEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, "\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func int64p(v int64) *int64 {
	return &v
}
