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
	codeLoginIdentity  = 2394
	codeLoginLookup    = 2353
	codeLoginRole      = 2354
	codeLoginStatus    = 2355
	codeLoginBefore    = 2356
	codeLoginPassword  = 2357
	codeLoginStore     = 2358
	codeLoginAfter     = 2359
	codeLoginNotify    = 2360
	codeLoginToken     = 2361
	codeLoginFind      = 2362
	codeLoginActive    = 2363
	codeLoginVersion   = 2364
	codeLoginCheck     = 2365
	codeLoginMissing   = 2366
	codeLoginMismatch  = 2367
	codeLoginRevoke    = 2368
	codeLoginSession   = 2369
	codeLoginHook      = 2370
	codeLoginComplete  = 2371
	codeLoginClearCode = 2372
)

// identityFilter selects by name, falling back to email.
func identityFilter(name, email string) store.AccountFilter {
	if name != "" {
		return store.AccountFilter{Name: name}
	}
	return store.AccountFilter{Email: email}
}

// RunLoginFirst checks the password of an active account, stores the hash
// of a fresh one-time code and returns a sign-in token that expects the
// version the code write produces.
func RunLoginFirst(ctx context.Context, req LoginRequest, opts LoginFirstOptions, d *Deps) (Result[TokenBody, CodeSystem], error) {
	var zero Result[TokenBody, CodeSystem]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeLoginIdentity, errNotReady)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" && req.Email == "" {
		return zero, failure.Errorf(failure.KindInvalidRequest, codeLoginIdentity, "name or email is required")
	}
	if req.Password == "" {
		return zero, failure.Errorf(failure.KindInvalidRequest, codeLoginIdentity, "password is required")
	}
	o := opts.resolve(notify.LoginOTP,
		store.ColumnName, store.ColumnEmail, store.ColumnPasswordHash, store.ColumnRole, store.ColumnStatus, store.ColumnVersion)

	account, err := d.Store.FindAccount(ctx, identityFilter(req.Name, req.Email), o.cols)
	if err != nil {
		return zero, storeFailure(codeLoginLookup, err)
	}
	if err := checkRole(codeLoginRole, account.Role, o.role); err != nil {
		return zero, err
	}
	if err := checkStatus(codeLoginStatus, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}

	scratch := &Scratch{}
	if err := runHooks(ctx, o.hooks, HookContext{
		Flow:    FlowLoginFirst,
		Point:   BeforeCredentialCheck,
		Account: account,
		IP:      req.IP,
		Device:  req.Device,
		Scratch: scratch,
		Queries: d.Store,
	}, codeLoginBefore); err != nil {
		return zero, err
	}
	if err := d.checkCredential(ctx, FlowLoginFirst, codeLoginPassword, scratch, account.Name, req.Password, account.PasswordHash); err != nil {
		return zero, err
	}
	if err := d.checkIssue(ctx, FlowLoginFirst, account.Name, req.IP); err != nil {
		return zero, err
	}

	code, codeHash, err := d.issueCode(codeLoginStore)
	if err != nil {
		return zero, err
	}

	var alternate string
	err = d.inTx(ctx, FlowLoginFirst, func(tx store.Tx) error {
		ip := req.IP
		if err := tx.UpdateAccount(ctx, store.AccountFilter{
			Name:    account.Name,
			Version: int64p(account.Version),
		}, store.AccountPatch{CodeHash: &codeHash, IP: &ip}); err != nil {
			return updateFailure(codeLoginStore, err)
		}
		account.Version++
		account.CodeHash = &codeHash

		signed, err := d.sign(codeLoginStore, account, account.Email, token.PurposeSignIn, int64p(account.Version), d.ttl(opts.TTL))
		if err != nil {
			return err
		}
		alternate = signed

		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowLoginFirst,
			Point:   AfterStateChange,
			Account: account,
			IP:      req.IP,
			Device:  req.Device,
			Scratch: scratch,
			Queries: tx,
		}, codeLoginAfter); err != nil {
			return err
		}

		data := mailData(account.Name, account.Email)
		data[notify.KeyOneTimePassword] = code
		return d.notice(ctx, codeLoginNotify, o.notice, o.mail, account.Email, data)
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

// RunLoginVerify consumes the one-time code, rotates the account's sessions
// and returns a session token for the acting device.
func RunLoginVerify(ctx context.Context, req LoginVerifyRequest, opts LoginVerifyOptions, d *Deps) (Result[SessionBody, NoBody], error) {
	var zero Result[SessionBody, NoBody]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeLoginToken, errNotReady)
	}
	o := opts.resolve(notify.LoginComplete,
		store.ColumnName, store.ColumnEmail, store.ColumnRole, store.ColumnStatus, store.ColumnVersion, store.ColumnCodeHash)
	forceAll := boolOr(opts.ForceAllLogout, true)

	claims, err := d.Tokens.Verify(req.AlternateToken, token.PurposeSignIn)
	if err != nil {
		return zero, tokenFailure(codeLoginToken, err)
	}

	account, err := d.Store.FindAccount(ctx, store.AccountFilter{Name: claims.Name}, o.cols)
	if err != nil {
		return zero, storeFailure(codeLoginFind, err)
	}
	if err := checkStatus(codeLoginActive, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}
	if err := checkRole(codeLoginActive, account.Role, o.role); err != nil {
		return zero, err
	}
	if err := checkVersion(codeLoginVersion, claims, account.Version); err != nil {
		return zero, err
	}

	scratch := &Scratch{}
	if err := runHooks(ctx, o.hooks, HookContext{
		Flow:    FlowLoginVerify,
		Point:   BeforeCredentialCheck,
		Account: account,
		Claims:  claims,
		IP:      req.IP,
		Device:  req.Device,
		Scratch: scratch,
		Queries: d.Store,
	}, codeLoginCheck); err != nil {
		return zero, err
	}
	if err := d.checkCode(ctx, FlowLoginVerify, codeLoginMissing, codeLoginMismatch, failure.KindInternal,
		scratch, account.Name, req.Code, account.CodeHash); err != nil {
		return zero, err
	}

	var (
		sessionToken string
		revoked      int64
	)
	err = d.inTx(ctx, FlowLoginVerify, func(tx store.Tx) error {
		ip := req.IP
		if err := tx.UpdateAccount(ctx, store.AccountFilter{
			Name:    account.Name,
			Version: int64p(account.Version),
		}, store.AccountPatch{IP: &ip, ClearCode: true}); err != nil {
			return updateFailure(codeLoginClearCode, err)
		}
		account.Version++
		account.CodeHash = nil

		filter := store.AllSessions(account.Name)
		if !forceAll {
			filter = store.DeviceSession(account.Name, req.IP, req.Device)
		}
		n, err := d.Sessions.Revoke(ctx, tx, filter)
		if err != nil {
			return failure.New(failure.KindInternal, codeLoginRevoke, err)
		}
		revoked = n

		issued, err := d.Sessions.Upsert(ctx, tx, session.Owner{Name: account.Name, Role: account.Role}, req.IP, req.Device)
		if err != nil {
			return failure.New(failure.KindInternal, codeLoginSession, err)
		}
		sessionToken = issued

		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowLoginVerify,
			Point:   AfterStateChange,
			Account: account,
			Claims:  claims,
			IP:      req.IP,
			Device:  req.Device,
			Scratch: scratch,
			Queries: tx,
		}, codeLoginHook); err != nil {
			return err
		}

		return d.notice(ctx, codeLoginComplete, o.notice, o.mail, account.Email, mailData(account.Name, account.Email))
	})
	if err != nil {
		return zero, err
	}

	d.sessionsRevoked(FlowLoginVerify, revoked)
	d.sessionCreated(FlowLoginVerify)
	d.resetVerify(ctx, FlowLoginVerify, account.Name)
	return Result[SessionBody, NoBody]{
		Status: http.StatusOK,
		Body:   SessionBody{SessionToken: sessionToken},
	}, nil
}
