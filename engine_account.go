package twostep

import "context"

// CreateFirst registers a pending account and issues its activation code.
// A pending account whose token window has passed is replaced by a new
// registration under the same name or email.
//
// Result.System.OneTimePassword holds the plaintext code. It has already
// been sent through the notifier unless SendNotice is false.
func (e *Engine) CreateFirst(ctx context.Context, req CreateRequest, opts CreateFirstOptions) (Result[TokenBody, CodeSystem], error) {
	req.IP = fillIP(ctx, req.IP)
	meta := callMeta{name: req.Name, ip: req.IP}
	return observe(ctx, e, FlowCreateFirst, meta, func(ctx context.Context) (Result[TokenBody, CodeSystem], error) {
		return e.flows.CreateFirst(ctx, req, opts)
	})
}

// CreateVerify activates the account behind the continuation token and
// opens its first session.
func (e *Engine) CreateVerify(ctx context.Context, req CreateVerifyRequest, opts CreateVerifyOptions) (Result[SessionBody, NoBody], error) {
	req.IP, req.Device = fillIP(ctx, req.IP), fillDevice(ctx, req.Device)
	meta := callMeta{ip: req.IP, device: req.Device}
	return observe(ctx, e, FlowCreateVerify, meta, func(ctx context.Context) (Result[SessionBody, NoBody], error) {
		return e.flows.CreateVerify(ctx, req, opts)
	})
}

// DeleteFirst issues a deletion code to the account signed in with
// req.SessionToken.
func (e *Engine) DeleteFirst(ctx context.Context, req DeleteRequest, opts DeleteFirstOptions) (Result[TokenBody, CodeSystem], error) {
	req.IP, req.Device = fillIP(ctx, req.IP), fillDevice(ctx, req.Device)
	meta := callMeta{ip: req.IP, device: req.Device}
	return observe(ctx, e, FlowDeleteFirst, meta, func(ctx context.Context) (Result[TokenBody, CodeSystem], error) {
		return e.flows.DeleteFirst(ctx, req, opts)
	})
}

// DeleteVerify removes or deactivates the account and revokes all of its
// sessions.
func (e *Engine) DeleteVerify(ctx context.Context, req DeleteVerifyRequest, opts DeleteVerifyOptions) (Result[NoBody, NoBody], error) {
	req.IP, req.Device = fillIP(ctx, req.IP), fillDevice(ctx, req.Device)
	meta := callMeta{ip: req.IP, device: req.Device}
	return observe(ctx, e, FlowDeleteVerify, meta, func(ctx context.Context) (Result[NoBody, NoBody], error) {
		return e.flows.DeleteVerify(ctx, req, opts)
	})
}
