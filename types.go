package twostep

import (
	"github.com/MrEthical07/twostep/internal/flows"
	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/store"
)

// Flow names one step of one operation.
type Flow = flows.Flow

const (
	FlowCreateFirst         = flows.FlowCreateFirst
	FlowCreateVerify        = flows.FlowCreateVerify
	FlowLoginFirst          = flows.FlowLoginFirst
	FlowLoginVerify         = flows.FlowLoginVerify
	FlowChangeEmailFirst    = flows.FlowChangeEmailFirst
	FlowChangeEmailVerify   = flows.FlowChangeEmailVerify
	FlowDeleteFirst         = flows.FlowDeleteFirst
	FlowDeleteVerify        = flows.FlowDeleteVerify
	FlowResetPasswordFirst  = flows.FlowResetPasswordFirst
	FlowResetPasswordSecond = flows.FlowResetPasswordSecond
	FlowResetPasswordVerify = flows.FlowResetPasswordVerify
	FlowAuthenticate        = flows.FlowAuthenticate
	FlowLogout              = flows.FlowLogout

	// FlowListSessions only appears in logs, audit events and metrics.
	FlowListSessions Flow = "list_sessions"
)

// Extension pipeline.
type (
	HookPoint       = flows.HookPoint
	HookContext     = flows.HookContext
	Hook            = flows.Hook
	Interceptor     = flows.Interceptor
	InterceptorFunc = flows.InterceptorFunc
	Scratch         = flows.Scratch
)

const (
	BeforeCredentialCheck = flows.BeforeCredentialCheck
	AfterStateChange      = flows.AfterStateChange
)

// Collaborator contracts accepted by the [Builder].
type (
	CredentialHasher = flows.CredentialHasher
	CodeHasher       = flows.CodeHasher
)

// Requests.
type (
	CreateRequest            = flows.CreateRequest
	CreateVerifyRequest      = flows.CreateVerifyRequest
	LoginRequest             = flows.LoginRequest
	LoginVerifyRequest       = flows.LoginVerifyRequest
	ChangeEmailRequest       = flows.ChangeEmailRequest
	ChangeEmailVerifyRequest = flows.ChangeEmailVerifyRequest
	DeleteRequest            = flows.DeleteRequest
	DeleteVerifyRequest      = flows.DeleteVerifyRequest
	ResetRequest             = flows.ResetRequest
	ResetSecondRequest       = flows.ResetSecondRequest
	ResetVerifyRequest       = flows.ResetVerifyRequest
)

// Per-flow options. The zero value of each selects the documented defaults.
type (
	CommonOptions              = flows.Common
	CreateFirstOptions         = flows.CreateFirstOptions
	CreateVerifyOptions        = flows.CreateVerifyOptions
	LoginFirstOptions          = flows.LoginFirstOptions
	LoginVerifyOptions         = flows.LoginVerifyOptions
	ChangeEmailFirstOptions    = flows.ChangeEmailFirstOptions
	ChangeEmailVerifyOptions   = flows.ChangeEmailVerifyOptions
	DeleteFirstOptions         = flows.DeleteFirstOptions
	DeleteVerifyOptions        = flows.DeleteVerifyOptions
	ResetPasswordFirstOptions  = flows.ResetPasswordFirstOptions
	ResetPasswordSecondOptions = flows.ResetPasswordSecondOptions
	ResetPasswordVerifyOptions = flows.ResetPasswordVerifyOptions
)

// Result is the success envelope of every flow step. Body is meant for the
// client; System is for the host application only and must never be sent
// to the client.
type Result[B, S any] = flows.Result[B, S]

type (
	TokenBody   = flows.TokenBody
	SessionBody = flows.SessionBody
	NoBody      = flows.NoBody
	CodeSystem  = flows.CodeSystem
	TokenSystem = flows.TokenSystem
)

// Principal is an authenticated session with its account snapshot.
type Principal = session.Resolved

// SessionInfo is a stored session as returned by ListSessions. TokenHash
// is the keyed digest, never the bearer token.
type SessionInfo = store.Session

// Bool returns a pointer to v, for the tri-state option fields.
func Bool(v bool) *bool {
	return flows.Bool(v)
}
