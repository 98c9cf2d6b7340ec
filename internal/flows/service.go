package flows

import (
	"context"

	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/store"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps *Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: &deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.ready()
}

func (s Service) CreateFirst(ctx context.Context, req CreateRequest, opts CreateFirstOptions) (Result[TokenBody, CodeSystem], error) {
	return RunCreateFirst(ctx, req, opts, s.deps)
}

func (s Service) CreateVerify(ctx context.Context, req CreateVerifyRequest, opts CreateVerifyOptions) (Result[SessionBody, NoBody], error) {
	return RunCreateVerify(ctx, req, opts, s.deps)
}

func (s Service) LoginFirst(ctx context.Context, req LoginRequest, opts LoginFirstOptions) (Result[TokenBody, CodeSystem], error) {
	return RunLoginFirst(ctx, req, opts, s.deps)
}

func (s Service) LoginVerify(ctx context.Context, req LoginVerifyRequest, opts LoginVerifyOptions) (Result[SessionBody, NoBody], error) {
	return RunLoginVerify(ctx, req, opts, s.deps)
}

func (s Service) ChangeEmailFirst(ctx context.Context, req ChangeEmailRequest, opts ChangeEmailFirstOptions) (Result[TokenBody, CodeSystem], error) {
	return RunChangeEmailFirst(ctx, req, opts, s.deps)
}

func (s Service) ChangeEmailVerify(ctx context.Context, req ChangeEmailVerifyRequest, opts ChangeEmailVerifyOptions) (Result[SessionBody, NoBody], error) {
	return RunChangeEmailVerify(ctx, req, opts, s.deps)
}

func (s Service) DeleteFirst(ctx context.Context, req DeleteRequest, opts DeleteFirstOptions) (Result[TokenBody, CodeSystem], error) {
	return RunDeleteFirst(ctx, req, opts, s.deps)
}

func (s Service) DeleteVerify(ctx context.Context, req DeleteVerifyRequest, opts DeleteVerifyOptions) (Result[NoBody, NoBody], error) {
	return RunDeleteVerify(ctx, req, opts, s.deps)
}

func (s Service) ResetPasswordFirst(ctx context.Context, req ResetRequest, opts ResetPasswordFirstOptions) (Result[NoBody, TokenSystem], error) {
	return RunResetPasswordFirst(ctx, req, opts, s.deps)
}

func (s Service) ResetPasswordSecond(ctx context.Context, req ResetSecondRequest, opts ResetPasswordSecondOptions) (Result[TokenBody, NoBody], error) {
	return RunResetPasswordSecond(ctx, req, opts, s.deps)
}

func (s Service) ResetPasswordVerify(ctx context.Context, req ResetVerifyRequest, opts ResetPasswordVerifyOptions) (Result[SessionBody, NoBody], error) {
	return RunResetPasswordVerify(ctx, req, opts, s.deps)
}

func (s Service) Authenticate(ctx context.Context, sessionToken, ip, device string, cols []store.Column) (session.Resolved, error) {
	return RunAuthenticate(ctx, sessionToken, ip, device, cols, s.deps)
}

func (s Service) Logout(ctx context.Context, sessionToken, ip, device string) error {
	return RunLogout(ctx, sessionToken, ip, device, s.deps)
}

func (s Service) ListSessions(ctx context.Context, name string) ([]store.Session, error) {
	return RunListSessions(ctx, name, s.deps)
}
