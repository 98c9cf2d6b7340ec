package twostep

import "context"

// ChangeEmailFirst sends a confirmation code to req.NewEmail for the
// account signed in with req.SessionToken.
func (e *Engine) ChangeEmailFirst(ctx context.Context, req ChangeEmailRequest, opts ChangeEmailFirstOptions) (Result[TokenBody, CodeSystem], error) {
	req.IP, req.Device = fillIP(ctx, req.IP), fillDevice(ctx, req.Device)
	meta := callMeta{ip: req.IP, device: req.Device}
	return observe(ctx, e, FlowChangeEmailFirst, meta, func(ctx context.Context) (Result[TokenBody, CodeSystem], error) {
		return e.flows.ChangeEmailFirst(ctx, req, opts)
	})
}

// ChangeEmailVerify commits the new address. With ForceAllLogout (the
// default) every session is revoked and a fresh token is returned with
// status 200; otherwise sessions are kept and the status is 204.
func (e *Engine) ChangeEmailVerify(ctx context.Context, req ChangeEmailVerifyRequest, opts ChangeEmailVerifyOptions) (Result[SessionBody, NoBody], error) {
	req.IP, req.Device = fillIP(ctx, req.IP), fillDevice(ctx, req.Device)
	meta := callMeta{ip: req.IP, device: req.Device}
	return observe(ctx, e, FlowChangeEmailVerify, meta, func(ctx context.Context) (Result[SessionBody, NoBody], error) {
		return e.flows.ChangeEmailVerify(ctx, req, opts)
	})
}
