package twostep

import "context"

// LoginFirst checks the password of an active account and issues a login
// code. The account is looked up by Name, or by Email when Name is empty.
func (e *Engine) LoginFirst(ctx context.Context, req LoginRequest, opts LoginFirstOptions) (Result[TokenBody, CodeSystem], error) {
	req.IP, req.Device = fillIP(ctx, req.IP), fillDevice(ctx, req.Device)
	meta := callMeta{name: identity(req.Name, req.Email), ip: req.IP, device: req.Device}
	return observe(ctx, e, FlowLoginFirst, meta, func(ctx context.Context) (Result[TokenBody, CodeSystem], error) {
		return e.flows.LoginFirst(ctx, req, opts)
	})
}

// LoginVerify exchanges the login code for a session on (IP, Device).
// Unless ForceAllLogout is false every other session of the account is
// revoked first.
func (e *Engine) LoginVerify(ctx context.Context, req LoginVerifyRequest, opts LoginVerifyOptions) (Result[SessionBody, NoBody], error) {
	req.IP, req.Device = fillIP(ctx, req.IP), fillDevice(ctx, req.Device)
	meta := callMeta{ip: req.IP, device: req.Device}
	return observe(ctx, e, FlowLoginVerify, meta, func(ctx context.Context) (Result[SessionBody, NoBody], error) {
		return e.flows.LoginVerify(ctx, req, opts)
	})
}

func identity(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
