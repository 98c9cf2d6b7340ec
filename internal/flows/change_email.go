package flows

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/twostep/internal/failure"
	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/token"
)

const (
	codeEmailSession  = 2300
	codeEmailRole     = 2301
	codeEmailStatus   = 2302
	codeEmailInput    = 2303
	codeEmailBefore   = 2304
	codeEmailPassword = 2305
	codeEmailStore    = 2306
	codeEmailAfter    = 2307
	codeEmailNotify   = 2308
	codeEmailToken    = 2309
	codeEmailResolve  = 2310
	codeEmailActive   = 2311
	codeEmailVersion  = 2312
	codeEmailCheck    = 2313
	codeEmailMissing  = 2314
	codeEmailMismatch = 2315
	codeEmailUpdate   = 2316
	codeEmailRevoke   = 2317
	codeEmailRotate   = 2318
	codeEmailHook     = 2319
	codeEmailComplete = 2320
)

// RunChangeEmailFirst sends a one-time code to the new address of the
// account behind the session and returns an email-update token carrying
// that address.
func RunChangeEmailFirst(ctx context.Context, req ChangeEmailRequest, opts ChangeEmailFirstOptions, d *Deps) (Result[TokenBody, CodeSystem], error) {
	var zero Result[TokenBody, CodeSystem]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeEmailInput, errNotReady)
	}

	newEmail := strings.TrimSpace(req.NewEmail)
	if !validEmail(newEmail) {
		return zero, failure.Errorf(failure.KindInvalidRequest, codeEmailInput, "new email is invalid")
	}
	o := opts.resolve(notify.ChangeEmailOTP,
		store.ColumnName, store.ColumnEmail, store.ColumnPasswordHash, store.ColumnRole, store.ColumnStatus, store.ColumnVersion)

	resolved, err := d.Sessions.ResolveIfPresent(ctx, d.Store, req.SessionToken, req.IP, req.Device, o.cols)
	if err != nil {
		return zero, sessionFailure(codeEmailSession, err)
	}
	account := resolved.Account
	if err := checkRole(codeEmailRole, account.Role, o.role); err != nil {
		return zero, err
	}
	if err := checkStatus(codeEmailStatus, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}
	if strings.EqualFold(newEmail, account.Email) {
		return zero, failure.Errorf(failure.KindInvalidRequest, codeEmailInput, "new email matches the current one")
	}

	scratch := &Scratch{}
	if err := runHooks(ctx, o.hooks, HookContext{
		Flow:    FlowChangeEmailFirst,
		Point:   BeforeCredentialCheck,
		Account: account,
		IP:      req.IP,
		Device:  req.Device,
		Scratch: scratch,
		Queries: d.Store,
	}, codeEmailBefore); err != nil {
		return zero, err
	}
	if opts.RequirePassword {
		if err := d.checkCredential(ctx, FlowChangeEmailFirst, codeEmailPassword, scratch, account.Name, req.Password, account.PasswordHash); err != nil {
			return zero, err
		}
	}
	if err := d.checkIssue(ctx, FlowChangeEmailFirst, account.Name, req.IP); err != nil {
		return zero, err
	}

	code, codeHash, err := d.issueCode(codeEmailStore)
	if err != nil {
		return zero, err
	}

	var alternate string
	err = d.inTx(ctx, FlowChangeEmailFirst, func(tx store.Tx) error {
		ip := req.IP
		if err := tx.UpdateAccount(ctx, store.AccountFilter{
			Name:    account.Name,
			Version: int64p(account.Version),
		}, store.AccountPatch{CodeHash: &codeHash, IP: &ip}); err != nil {
			return updateFailure(codeEmailStore, err)
		}
		account.Version++
		account.CodeHash = &codeHash

		signed, err := d.sign(codeEmailStore, account, newEmail, token.PurposeEmailUpdate, int64p(account.Version), d.ttl(opts.TTL))
		if err != nil {
			return err
		}
		alternate = signed

		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowChangeEmailFirst,
			Point:   AfterStateChange,
			Account: account,
			IP:      req.IP,
			Device:  req.Device,
			Scratch: scratch,
			Queries: tx,
		}, codeEmailAfter); err != nil {
			return err
		}

		data := mailData(account.Name, newEmail)
		data[notify.KeyOneTimePassword] = code
		return d.notice(ctx, codeEmailNotify, o.notice, o.mail, newEmail, data)
	})
	if err != nil {
		return zero, err
	}

	return Result[TokenBody, CodeSystem]{
		Status: http.StatusOK,
		Body:   TokenBody{AlternateToken: alternate},
		System: CodeSystem{OneTimePassword: code},
	}, nil
}

// RunChangeEmailVerify commits the address carried by the email-update
// token. With forced logout every session is replaced by a single new one
// for the acting device, whose token is returned with status 200;
// otherwise sessions are left alone and the status is 204.
func RunChangeEmailVerify(ctx context.Context, req ChangeEmailVerifyRequest, opts ChangeEmailVerifyOptions, d *Deps) (Result[SessionBody, NoBody], error) {
	var zero Result[SessionBody, NoBody]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeEmailToken, errNotReady)
	}
	o := opts.resolve(notify.ChangeEmailComplete,
		store.ColumnName, store.ColumnEmail, store.ColumnRole, store.ColumnStatus, store.ColumnVersion, store.ColumnCodeHash)
	forceAll := boolOr(opts.ForceAllLogout, true)

	claims, err := d.Tokens.Verify(req.AlternateToken, token.PurposeEmailUpdate)
	if err != nil {
		return zero, tokenFailure(codeEmailToken, err)
	}

	resolved, err := d.Sessions.ResolveIfPresent(ctx, d.Store, req.SessionToken, req.IP, req.Device, o.cols)
	if err != nil {
		return zero, sessionFailure(codeEmailResolve, err)
	}
	account := resolved.Account
	if claims.Name != account.Name {
		return zero, failure.Errorf(failure.KindUnauthorized, codeEmailToken, "token was issued for another account")
	}
	if err := checkStatus(codeEmailActive, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}
	if err := checkRole(codeEmailActive, account.Role, o.role); err != nil {
		return zero, err
	}
	if err := checkVersion(codeEmailVersion, claims, account.Version); err != nil {
		return zero, err
	}

	scratch := &Scratch{}
	if err := runHooks(ctx, o.hooks, HookContext{
		Flow:    FlowChangeEmailVerify,
		Point:   BeforeCredentialCheck,
		Account: account,
		Claims:  claims,
		IP:      req.IP,
		Device:  req.Device,
		Scratch: scratch,
		Queries: d.Store,
	}, codeEmailCheck); err != nil {
		return zero, err
	}
	if err := d.checkCode(ctx, FlowChangeEmailVerify, codeEmailMissing, codeEmailMismatch, failure.KindInternal,
		scratch, account.Name, req.Code, account.CodeHash); err != nil {
		return zero, err
	}

	var (
		sessionToken string
		revoked      int64
	)
	err = d.inTx(ctx, FlowChangeEmailVerify, func(tx store.Tx) error {
		email, ip := claims.Email, req.IP
		if err := tx.UpdateAccount(ctx, store.AccountFilter{
			Name:    account.Name,
			Version: int64p(account.Version),
		}, store.AccountPatch{Email: &email, IP: &ip, ClearCode: true}); err != nil {
			return updateFailure(codeEmailUpdate, err)
		}
		account.Email = email
		account.Version++
		account.CodeHash = nil

		if forceAll {
			n, err := d.Sessions.Revoke(ctx, tx, store.AllSessions(account.Name))
			if err != nil {
				return failure.New(failure.KindInternal, codeEmailRevoke, err)
			}
			revoked = n

			issued, err := d.Sessions.Upsert(ctx, tx, session.Owner{Name: account.Name, Role: account.Role}, req.IP, req.Device)
			if err != nil {
				return failure.New(failure.KindInternal, codeEmailRotate, err)
			}
			sessionToken = issued
		}

		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowChangeEmailVerify,
			Point:   AfterStateChange,
			Account: account,
			Claims:  claims,
			IP:      req.IP,
			Device:  req.Device,
			Scratch: scratch,
			Queries: tx,
		}, codeEmailHook); err != nil {
			return err
		}

		return d.notice(ctx, codeEmailComplete, o.notice, o.mail, account.Email, mailData(account.Name, account.Email))
	})
	if err != nil {
		return zero, err
	}

	d.resetVerify(ctx, FlowChangeEmailVerify, account.Name)
	if !forceAll {
		return Result[SessionBody, NoBody]{Status: http.StatusNoContent}, nil
	}
	d.sessionsRevoked(FlowChangeEmailVerify, revoked)
	d.sessionCreated(FlowChangeEmailVerify)
	return Result[SessionBody, NoBody]{
		Status: http.StatusOK,
		Body:   SessionBody{SessionToken: sessionToken},
	}, nil
}
