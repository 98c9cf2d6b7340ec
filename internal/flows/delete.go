package flows

import (
	"context"
	"net/http"
	"strconv"

	"github.com/MrEthical07/twostep/internal/failure"
	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/token"
)

const (
	codeDeleteSession  = 2332
	codeDeleteRole     = 2333
	codeDeleteStatus   = 2334
	codeDeleteBefore   = 2335
	codeDeletePassword = 2336
	codeDeleteStore    = 2337
	codeDeleteAfter    = 2338
	codeDeleteNotify   = 2339
	codeDeleteToken    = 2340
	codeDeleteResolve  = 2341
	codeDeleteActive   = 2342
	codeDeleteVersion  = 2343
	codeDeleteCheck    = 2344
	codeDeleteMissing  = 2345
	codeDeleteMismatch = 2346
	codeDeleteRemove   = 2347
	codeDeleteRevoke   = 2348
	codeDeleteHook     = 2349
	codeDeleteComplete = 2350
)

// RunDeleteFirst issues a deletion code for the account behind the session.
func RunDeleteFirst(ctx context.Context, req DeleteRequest, opts DeleteFirstOptions, d *Deps) (Result[TokenBody, CodeSystem], error) {
	var zero Result[TokenBody, CodeSystem]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeDeleteSession, errNotReady)
	}
	o := opts.resolve(notify.DeletionOTP,
		store.ColumnName, store.ColumnEmail, store.ColumnPasswordHash, store.ColumnRole, store.ColumnStatus, store.ColumnVersion)

	resolved, err := d.Sessions.ResolveIfPresent(ctx, d.Store, req.SessionToken, req.IP, req.Device, o.cols)
	if err != nil {
		return zero, sessionFailure(codeDeleteSession, err)
	}
	account := resolved.Account
	if err := checkRole(codeDeleteRole, account.Role, o.role); err != nil {
		return zero, err
	}
	if err := checkStatus(codeDeleteStatus, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}

	scratch := &Scratch{}
	if err := runHooks(ctx, o.hooks, HookContext{
		Flow:    FlowDeleteFirst,
		Point:   BeforeCredentialCheck,
		Account: account,
		IP:      req.IP,
		Device:  req.Device,
		Scratch: scratch,
		Queries: d.Store,
	}, codeDeleteBefore); err != nil {
		return zero, err
	}
	if opts.RequirePassword {
		if err := d.checkCredential(ctx, FlowDeleteFirst, codeDeletePassword, scratch, account.Name, req.Password, account.PasswordHash); err != nil {
			return zero, err
		}
	}
	if err := d.checkIssue(ctx, FlowDeleteFirst, account.Name, req.IP); err != nil {
		return zero, err
	}

	code, codeHash, err := d.issueCode(codeDeleteStore)
	if err != nil {
		return zero, err
	}

	var alternate string
	err = d.inTx(ctx, FlowDeleteFirst, func(tx store.Tx) error {
		ip := req.IP
		if err := tx.UpdateAccount(ctx, store.AccountFilter{
			Name:    account.Name,
			Version: int64p(account.Version),
		}, store.AccountPatch{CodeHash: &codeHash, IP: &ip}); err != nil {
			return updateFailure(codeDeleteStore, err)
		}
		account.Version++
		account.CodeHash = &codeHash

		signed, err := d.sign(codeDeleteStore, account, account.Email, token.PurposeDeleteMember, int64p(account.Version), d.ttl(opts.TTL))
		if err != nil {
			return err
		}
		alternate = signed

		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowDeleteFirst,
			Point:   AfterStateChange,
			Account: account,
			IP:      req.IP,
			Device:  req.Device,
			Scratch: scratch,
			Queries: tx,
		}, codeDeleteAfter); err != nil {
			return err
		}

		data := mailData(account.Name, account.Email)
		data[notify.KeyOneTimePassword] = code
		return d.notice(ctx, codeDeleteNotify, o.notice, o.mail, account.Email, data)
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

// RunDeleteVerify removes the account, or marks it inactive when logical
// deletion is selected, and revokes every session it owned.
func RunDeleteVerify(ctx context.Context, req DeleteVerifyRequest, opts DeleteVerifyOptions, d *Deps) (Result[NoBody, NoBody], error) {
	var zero Result[NoBody, NoBody]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeDeleteToken, errNotReady)
	}
	o := opts.resolve(notify.DeletionComplete,
		store.ColumnName, store.ColumnEmail, store.ColumnRole, store.ColumnStatus, store.ColumnVersion, store.ColumnCodeHash)
	physical := boolOr(opts.PhysicalDeletion, true)
	overwrite := boolOr(opts.OverwriteOnLogicalDeletion, true)

	claims, err := d.Tokens.Verify(req.AlternateToken, token.PurposeDeleteMember)
	if err != nil {
		return zero, tokenFailure(codeDeleteToken, err)
	}

	resolved, err := d.Sessions.ResolveIfPresent(ctx, d.Store, req.SessionToken, req.IP, req.Device, o.cols)
	if err != nil {
		return zero, sessionFailure(codeDeleteResolve, err)
	}
	account := resolved.Account
	if claims.Name != account.Name {
		return zero, failure.Errorf(failure.KindUnauthorized, codeDeleteToken, "token was issued for another account")
	}
	if err := checkStatus(codeDeleteActive, failure.KindForbidden, account.Status, store.StatusActive); err != nil {
		return zero, err
	}
	if err := checkRole(codeDeleteActive, account.Role, o.role); err != nil {
		return zero, err
	}
	if err := checkVersion(codeDeleteVersion, claims, account.Version); err != nil {
		return zero, err
	}

	scratch := &Scratch{}
	if err := runHooks(ctx, o.hooks, HookContext{
		Flow:    FlowDeleteVerify,
		Point:   BeforeCredentialCheck,
		Account: account,
		Claims:  claims,
		IP:      req.IP,
		Device:  req.Device,
		Scratch: scratch,
		Queries: d.Store,
	}, codeDeleteCheck); err != nil {
		return zero, err
	}
	if err := d.checkCode(ctx, FlowDeleteVerify, codeDeleteMissing, codeDeleteMismatch, failure.KindInternal,
		scratch, account.Name, req.Code, account.CodeHash); err != nil {
		return zero, err
	}

	var revoked int64
	err = d.inTx(ctx, FlowDeleteVerify, func(tx store.Tx) error {
		filter := store.AccountFilter{
			Name:    account.Name,
			Status:  store.StatusActive,
			Version: int64p(account.Version),
		}
		patch := store.AccountPatch{ClearCode: true}
		if !physical {
			inactive := store.StatusInactive
			patch.Status = &inactive
			if overwrite {
				prefix := strconv.FormatInt(d.now().UnixMilli(), 10) + "#"
				name, email := prefix+account.Name, prefix+account.Email
				patch.Name, patch.Email = &name, &email
			}
		}
		// The guarded update also serves the physical path: it fails when
		// another writer has moved the version since the token was issued.
		if err := tx.UpdateAccount(ctx, filter, patch); err != nil {
			return updateFailure(codeDeleteRemove, err)
		}
		if physical {
			if err := tx.DeleteAccount(ctx, account.Name); err != nil {
				return storeFailure(codeDeleteRemove, err)
			}
		}

		n, err := d.Sessions.Revoke(ctx, tx, store.AllSessions(account.Name))
		if err != nil {
			return failure.New(failure.KindInternal, codeDeleteRevoke, err)
		}
		revoked = n

		snapshot := account
		snapshot.Version++
		snapshot.CodeHash = nil
		if !physical {
			snapshot.Status = store.StatusInactive
			if patch.Name != nil {
				snapshot.Name, snapshot.Email = *patch.Name, *patch.Email
			}
		}
		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowDeleteVerify,
			Point:   AfterStateChange,
			Account: snapshot,
			Claims:  claims,
			IP:      req.IP,
			Device:  req.Device,
			Scratch: scratch,
			Queries: tx,
		}, codeDeleteHook); err != nil {
			return err
		}

		return d.notice(ctx, codeDeleteComplete, o.notice, o.mail, account.Email, mailData(account.Name, account.Email))
	})
	if err != nil {
		return zero, err
	}

	d.sessionsRevoked(FlowDeleteVerify, revoked)
	d.resetVerify(ctx, FlowDeleteVerify, account.Name)
	return Result[NoBody, NoBody]{Status: http.StatusNoContent}, nil
}
