package flows

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/twostep/internal/failure"
	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/password"
	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/token"
)

const (
	codeResetIdentity   = 2395
	codeResetLookup     = 2374
	codeResetRole       = 2375
	codeResetStatus     = 2376
	codeResetSign       = 2377
	codeResetHook       = 2378
	codeResetNotify     = 2379
	codeResetBidToken   = 2380
	codeResetBidLookup  = 2381
	codeResetBidVersion = 2382
	codeResetBidStatus  = 2383
	codeResetBidSign    = 2386
	codeResetToken      = 2384
	codeResetFind       = 2385
	codeResetActive     = 2387
	codeResetVersion    = 2396
	codeResetPassword   = 2397
	codeResetUpdate     = 2388
	codeResetRevoke     = 2389
	codeResetSession    = 2390
	codeResetAfter      = 2391
	codeResetComplete   = 2392
)

// RunResetPasswordFirst mails a password-reset token for an active account.
// The token is returned in System only; it is meant to reach the account
// owner out of band.
func RunResetPasswordFirst(ctx context.Context, req ResetRequest, opts ResetPasswordFirstOptions, d *Deps) (Result[NoBody, TokenSystem], error) {
	var zero Result[NoBody, TokenSystem]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeResetIdentity, errNotReady)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" && req.Email == "" {
		return zero, failure.Errorf(failure.KindInvalidRequest, codeResetIdentity, "name or email is required")
	}
	o := opts.resolve(notify.ResetPasswordToken,
		store.ColumnName, store.ColumnEmail, store.ColumnRole, store.ColumnStatus, store.ColumnVersion)

	account, err := d.Store.FindAccount(ctx, identityFilter(req.Name, req.Email), o.cols)
	if err != nil {
		return zero, storeFailure(codeResetLookup, err)
	}
	if err := checkRole(codeResetRole, account.Role, o.role); err != nil {
		return zero, err
	}
	if err := checkStatus(codeResetStatus, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}
	if err := d.checkIssue(ctx, FlowResetPasswordFirst, account.Name, ""); err != nil {
		return zero, err
	}

	alternate, err := d.sign(codeResetSign, account, account.Email, token.PurposePasswordReset, int64p(account.Version), d.ttl(opts.TTL))
	if err != nil {
		return zero, err
	}

	err = d.inTx(ctx, FlowResetPasswordFirst, func(tx store.Tx) error {
		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowResetPasswordFirst,
			Point:   AfterStateChange,
			Account: account,
			Scratch: &Scratch{},
			Queries: tx,
		}, codeResetHook); err != nil {
			return err
		}

		data := mailData(account.Name, account.Email)
		data[notify.KeyJWTToken] = alternate
		return d.notice(ctx, codeResetNotify, o.notice, o.mail, account.Email, data)
	})
	if err != nil {
		return zero, err
	}

	return Result[NoBody, TokenSystem]{
		Status: http.StatusNoContent,
		System: TokenSystem{AlternateToken: alternate},
	}, nil
}

// RunResetPasswordSecond exchanges a reset token for a short-lived bid
// token after re-checking the account.
func RunResetPasswordSecond(ctx context.Context, req ResetSecondRequest, opts ResetPasswordSecondOptions, d *Deps) (Result[TokenBody, NoBody], error) {
	var zero Result[TokenBody, NoBody]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeResetBidToken, errNotReady)
	}
	cols := store.Calibrate(opts.Columns, store.ColumnName, store.ColumnEmail, store.ColumnRole, store.ColumnStatus, store.ColumnVersion)

	claims, err := d.Tokens.Verify(req.AlternateToken, token.PurposePasswordReset)
	if err != nil {
		return zero, tokenFailure(codeResetBidToken, err)
	}

	account, err := d.Store.FindAccount(ctx, store.AccountFilter{Name: claims.Name}, cols)
	if err != nil {
		return zero, storeFailure(codeResetBidLookup, err)
	}
	if err := checkVersion(codeResetBidVersion, claims, account.Version); err != nil {
		return zero, err
	}
	if err := checkStatus(codeResetBidStatus, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = d.BidTTL
	}
	bid, err := d.sign(codeResetBidSign, account, account.Email, token.PurposePasswordBid, int64p(account.Version), ttl)
	if err != nil {
		return zero, err
	}

	return Result[TokenBody, NoBody]{
		Status: http.StatusOK,
		Body:   TokenBody{AlternateToken: bid},
	}, nil
}

// RunResetPasswordVerify consumes a bid token, replaces the password and
// opens a session for the acting device. The version bump retires every
// outstanding reset and bid token of the account.
func RunResetPasswordVerify(ctx context.Context, req ResetVerifyRequest, opts ResetPasswordVerifyOptions, d *Deps) (Result[SessionBody, NoBody], error) {
	var zero Result[SessionBody, NoBody]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeResetToken, errNotReady)
	}
	o := opts.resolve(notify.ResetPasswordComplete,
		store.ColumnName, store.ColumnEmail, store.ColumnRole, store.ColumnStatus, store.ColumnVersion)
	forceAll := boolOr(opts.ForceAllLogout, true)

	claims, err := d.Tokens.Verify(req.AlternateToken, token.PurposePasswordBid)
	if err != nil {
		return zero, tokenFailure(codeResetToken, err)
	}

	account, err := d.Store.FindAccount(ctx, store.AccountFilter{Name: claims.Name}, o.cols)
	if err != nil {
		return zero, storeFailure(codeResetFind, err)
	}
	if err := checkStatus(codeResetActive, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}
	if err := checkRole(codeResetActive, account.Role, o.role); err != nil {
		return zero, err
	}
	if err := checkVersion(codeResetVersion, claims, account.Version); err != nil {
		return zero, err
	}

	if req.NewPassword == "" {
		return zero, failure.Errorf(failure.KindInvalidRequest, codeResetPassword, "new password is required")
	}
	hash, err := d.Credentials.Hash(req.NewPassword)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return zero, failure.New(failure.KindInvalidRequest, codeResetPassword, err)
		}
		return zero, failure.New(failure.KindInternal, codeResetPassword, err)
	}

	var (
		sessionToken string
		revoked      int64
	)
	err = d.inTx(ctx, FlowResetPasswordVerify, func(tx store.Tx) error {
		ip := req.IP
		if err := tx.UpdateAccount(ctx, store.AccountFilter{
			Name:    account.Name,
			Status:  store.StatusActive,
			Version: int64p(account.Version),
		}, store.AccountPatch{PasswordHash: &hash, IP: &ip, ClearCode: true}); err != nil {
			return updateFailure(codeResetUpdate, err)
		}
		account.PasswordHash = hash
		account.Version++
		account.CodeHash = nil

		if forceAll {
			n, err := d.Sessions.Revoke(ctx, tx, store.AllSessions(account.Name))
			if err != nil {
				return failure.New(failure.KindInternal, codeResetRevoke, err)
			}
			revoked = n
		}

		issued, err := d.Sessions.Upsert(ctx, tx, session.Owner{Name: account.Name, Role: account.Role}, req.IP, req.Device)
		if err != nil {
			return failure.New(failure.KindInternal, codeResetSession, err)
		}
		sessionToken = issued

		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowResetPasswordVerify,
			Point:   AfterStateChange,
			Account: account,
			Claims:  claims,
			IP:      req.IP,
			Device:  req.Device,
			Scratch: &Scratch{},
			Queries: tx,
		}, codeResetAfter); err != nil {
			return err
		}

		return d.notice(ctx, codeResetComplete, o.notice, o.mail, account.Email, mailData(account.Name, account.Email))
	})
	if err != nil {
		return zero, err
	}

	d.sessionsRevoked(FlowResetPasswordVerify, revoked)
	d.sessionCreated(FlowResetPasswordVerify)
	return Result[SessionBody, NoBody]{
		Status: http.StatusOK,
		Body:   SessionBody{SessionToken: sessionToken},
	}, nil
}
