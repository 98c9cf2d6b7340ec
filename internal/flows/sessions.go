package flows

import (
	"context"

	"github.com/MrEthical07/twostep/internal/failure"
	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/store"
)

const (
	codeAuthenticate = 2402
	codeLogout       = 2403
	codeListSessions = 2404
)

// RunAuthenticate resolves a bearer session token presented from ip and
// device.
func RunAuthenticate(ctx context.Context, sessionToken, ip, device string, cols []store.Column, d *Deps) (session.Resolved, error) {
	if !d.ready() {
		return session.Resolved{}, failure.New(failure.KindInternal, codeAuthenticate, errNotReady)
	}
	resolved, err := d.Sessions.ResolveIfPresent(ctx, d.Store, sessionToken, ip, device, cols)
	if err != nil {
		return session.Resolved{}, sessionFailure(codeAuthenticate, err)
	}
	return resolved, nil
}

// RunLogout revokes the single session the token is bound to.
func RunLogout(ctx context.Context, sessionToken, ip, device string, d *Deps) error {
	if !d.ready() {
		return failure.New(failure.KindInternal, codeLogout, errNotReady)
	}
	resolved, err := d.Sessions.ResolveIfPresent(ctx, d.Store, sessionToken, ip, device, []store.Column{store.ColumnName})
	if err != nil {
		return sessionFailure(codeLogout, err)
	}
	n, err := d.Sessions.Revoke(ctx, d.Store, store.DeviceSession(resolved.Session.Name, resolved.Session.IP, resolved.Session.Device))
	if err != nil {
		return failure.New(failure.KindInternal, codeLogout, err)
	}
	d.sessionsRevoked(FlowLogout, n)
	return nil
}

// RunListSessions returns the live sessions of name.
func RunListSessions(ctx context.Context, name string, d *Deps) ([]store.Session, error) {
	if !d.ready() {
		return nil, failure.New(failure.KindInternal, codeListSessions, errNotReady)
	}
	if name == "" {
		return nil, failure.Errorf(failure.KindInvalidRequest, codeListSessions, "name is required")
	}
	sessions, err := d.Sessions.List(ctx, d.Store, name)
	if err != nil {
		return nil, failure.New(failure.KindInternal, codeListSessions, err)
	}
	return sessions, nil
}
