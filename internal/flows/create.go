package flows

import (
	"context"
	"encoding/json"
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
	codeCreateInput    = 2400
	codeCreateInsert   = 2321
	codeCreateHook     = 2322
	codeCreateNotify   = 2323
	codeCreateToken    = 2324
	codeCreateLookup   = 2325
	codeCreateRole     = 2393
	codeCreateBefore   = 2401
	codeCreateMissing  = 2326
	codeCreateMismatch = 2327
	codeCreateActivate = 2328
	codeCreateSession  = 2329
	codeCreateAfter    = 2330
	codeCreateComplete = 2331
)

// RunCreateFirst registers a pending account, stores the hash of a fresh
// one-time code on it and returns a creation token. A pending account with
// the same name or email that has been idle longer than the token lifetime
// is replaced.
func RunCreateFirst(ctx context.Context, req CreateRequest, opts CreateFirstOptions, d *Deps) (Result[TokenBody, CodeSystem], error) {
	var zero Result[TokenBody, CodeSystem]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeCreateInput, errNotReady)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Name == "":
		return zero, failure.Errorf(failure.KindInvalidRequest, codeCreateInput, "name is required")
	case !validEmail(req.Email):
		return zero, failure.Errorf(failure.KindInvalidRequest, codeCreateInput, "email is invalid")
	case req.Password == "":
		return zero, failure.Errorf(failure.KindInvalidRequest, codeCreateInput, "password is required")
	case len(req.Custom) > 0 && !json.Valid(req.Custom):
		return zero, failure.Errorf(failure.KindInvalidRequest, codeCreateInput, "custom data is not valid JSON")
	}

	role := opts.Role
	if role == 0 {
		role = store.RoleUser
	}
	notice := boolOr(opts.SendNotice, true)
	mail := opts.MailFormat.Merge(notify.CreateOTP)
	ttl := d.ttl(opts.TTL)

	if err := d.checkIssue(ctx, FlowCreateFirst, req.Name, req.IP); err != nil {
		return zero, err
	}

	hash, err := d.Credentials.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return zero, failure.New(failure.KindInvalidRequest, codeCreateInput, err)
		}
		return zero, failure.New(failure.KindInternal, codeCreateInsert, err)
	}
	code, codeHash, err := d.issueCode(codeCreateInsert)
	if err != nil {
		return zero, err
	}

	var alternate string
	err = d.inTx(ctx, FlowCreateFirst, func(tx store.Tx) error {
		account, err := tx.InsertAccount(ctx, store.Account{
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         role,
			Status:       store.StatusPending,
			Custom:       req.Custom,
			CodeHash:     &codeHash,
			IP:           req.IP,
		}, d.now().Add(-ttl))
		if err != nil {
			return storeFailure(codeCreateInsert, err)
		}

		signed, err := d.sign(codeCreateInsert, account, account.Email, token.PurposeCreate, nil, ttl)
		if err != nil {
			return err
		}
		alternate = signed

		if err := runHooks(ctx, opts.Hooks, HookContext{
			Flow:    FlowCreateFirst,
			Point:   AfterStateChange,
			Account: account,
			IP:      req.IP,
			Scratch: &Scratch{},
			Queries: tx,
		}, codeCreateHook); err != nil {
			return err
		}

		data := mailData(account.Name, account.Email)
		data[notify.KeyOneTimePassword] = code
		return d.notice(ctx, codeCreateNotify, notice, mail, account.Email, data)
	})
	if err != nil {
		return zero, err
	}

	return Result[TokenBody, CodeSystem]{
		Status: http.StatusCreated,
		Body:   TokenBody{AlternateToken: alternate},
		System: CodeSystem{OneTimePassword: code},
	}, nil
}

// RunCreateVerify activates the pending account named by the creation token
// and opens its first session.
func RunCreateVerify(ctx context.Context, req CreateVerifyRequest, opts CreateVerifyOptions, d *Deps) (Result[SessionBody, NoBody], error) {
	var zero Result[SessionBody, NoBody]
	if !d.ready() {
		return zero, failure.New(failure.KindInternal, codeCreateToken, errNotReady)
	}
	o := opts.resolve(notify.CreateComplete,
		store.ColumnName, store.ColumnEmail, store.ColumnRole, store.ColumnStatus, store.ColumnVersion, store.ColumnCodeHash)

	claims, err := d.Tokens.Verify(req.AlternateToken, token.PurposeCreate)
	if err != nil {
		return zero, tokenFailure(codeCreateToken, err)
	}

	account, err := d.Store.FindAccount(ctx, store.AccountFilter{
		Name:   claims.Name,
		Status: store.StatusPending,
	}, o.cols)
	if err != nil {
		return zero, storeFailure(codeCreateLookup, err)
	}
	if err := checkRole(codeCreateRole, account.Role, o.role); err != nil {
		return zero, err
	}

	scratch := &Scratch{}
	if err := runHooks(ctx, o.hooks, HookContext{
		Flow:    FlowCreateVerify,
		Point:   BeforeCredentialCheck,
		Account: account,
		Claims:  claims,
		IP:      req.IP,
		Device:  req.Device,
		Scratch: scratch,
		Queries: d.Store,
	}, codeCreateBefore); err != nil {
		return zero, err
	}
	if err := d.checkCode(ctx, FlowCreateVerify, codeCreateMissing, codeCreateMismatch, failure.KindUnauthorized,
		scratch, account.Name, req.Code, account.CodeHash); err != nil {
		return zero, err
	}

	var sessionToken string
	err = d.inTx(ctx, FlowCreateVerify, func(tx store.Tx) error {
		active := store.StatusActive
		ip := req.IP
		if err := tx.UpdateAccount(ctx, store.AccountFilter{
			Name:    account.Name,
			Status:  store.StatusPending,
			Version: int64p(account.Version),
		}, store.AccountPatch{Status: &active, IP: &ip, ClearCode: true}); err != nil {
			return updateFailure(codeCreateActivate, err)
		}
		account.Status = active
		account.Version++
		account.CodeHash = nil

		issued, err := d.Sessions.Upsert(ctx, tx, session.Owner{Name: account.Name, Role: account.Role}, req.IP, req.Device)
		if err != nil {
			return failure.New(failure.KindInternal, codeCreateSession, err)
		}
		sessionToken = issued

		if err := runHooks(ctx, o.hooks, HookContext{
			Flow:    FlowCreateVerify,
			Point:   AfterStateChange,
			Account: account,
			Claims:  claims,
			IP:      req.IP,
			Device:  req.Device,
			Scratch: scratch,
			Queries: tx,
		}, codeCreateAfter); err != nil {
			return err
		}

		return d.notice(ctx, codeCreateComplete, o.notice, o.mail, account.Email, mailData(account.Name, account.Email))
	})
	if err != nil {
		return zero, err
	}

	d.sessionCreated(FlowCreateVerify)
	d.resetVerify(ctx, FlowCreateVerify, account.Name)
	return Result[SessionBody, NoBody]{
		Status: http.StatusOK,
		Body:   SessionBody{SessionToken: sessionToken},
	}, nil
}
