package twostep

import "context"

// ResetPasswordFirst mails a reset token to the account found by Name, or
// by Email when Name is empty. The token is also returned in
// Result.System for hosts that deliver it themselves.
func (e *Engine) ResetPasswordFirst(ctx context.Context, req ResetRequest, opts ResetPasswordFirstOptions) (Result[NoBody, TokenSystem], error) {
	meta := callMeta{name: identity(req.Name, req.Email), ip: clientIPFromContext(ctx)}
	return observe(ctx, e, FlowResetPasswordFirst, meta, func(ctx context.Context) (Result[NoBody, TokenSystem], error) {
		return e.flows.ResetPasswordFirst(ctx, req, opts)
	})
}

// ResetPasswordSecond exchanges the mailed reset token for a short-lived bid
// token that authorizes the password change.
func (e *Engine) ResetPasswordSecond(ctx context.Context, req ResetSecondRequest, opts ResetPasswordSecondOptions) (Result[TokenBody, NoBody], error) {
	meta := callMeta{ip: clientIPFromContext(ctx)}
	return observe(ctx, e, FlowResetPasswordSecond, meta, func(ctx context.Context) (Result[TokenBody, NoBody], error) {
		return e.flows.ResetPasswordSecond(ctx, req, opts)
	})
}

// ResetPasswordVerify sets the new password, which advances the account
// version and invalidates every outstanding reset token, and opens a
// session on (IP, Device).
func (e *Engine) ResetPasswordVerify(ctx context.Context, req ResetVerifyRequest, opts ResetPasswordVerifyOptions) (Result[SessionBody, NoBody], error) {
	req.IP, req.Device = fillIP(ctx, req.IP), fillDevice(ctx, req.Device)
	meta := callMeta{ip: req.IP, device: req.Device}
	return observe(ctx, e, FlowResetPasswordVerify, meta, func(ctx context.Context) (Result[SessionBody, NoBody], error) {
		return e.flows.ResetPasswordVerify(ctx, req, opts)
	})
}
