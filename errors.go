package twostep

import (
	"errors"

	"github.com/MrEthical07/twostep/internal/failure"
	"github.com/MrEthical07/twostep/otp"
	"github.com/MrEthical07/twostep/password"
	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/token"
)

// Error is the failure returned by every flow. Kind selects the status
// class; Codes lists the tracing checkpoints, innermost first.
type Error = failure.Error

// ErrorKind classifies an [Error].
type ErrorKind = failure.Kind

const (
	KindInvalidRequest  = failure.KindInvalidRequest
	KindUnauthorized    = failure.KindUnauthorized
	KindForbidden       = failure.KindForbidden
	KindNotFound        = failure.KindNotFound
	KindConflict        = failure.KindConflict
	KindTooManyRequests = failure.KindTooManyRequests
	KindInternal        = failure.KindInternal
)

// Kind sentinels. errors.Is(err, ErrUnauthorized) matches any flow failure
// of that kind regardless of its tracing codes.
var (
	ErrInvalidRequest  = failure.ErrInvalidRequest
	ErrUnauthorized    = failure.ErrUnauthorized
	ErrForbidden       = failure.ErrForbidden
	ErrNotFound        = failure.ErrNotFound
	ErrConflict        = failure.ErrConflict
	ErrTooManyRequests = failure.ErrTooManyRequests
	ErrInternal        = failure.ErrInternal
)

// Collaborator causes that stay reachable through errors.Is on a flow failure.
var (
	ErrInvalidToken       = token.ErrInvalid
	ErrSessionNotFound    = session.ErrNotFound
	ErrMissingOneTimeCode = otp.ErrMissingCode
	ErrPasswordPolicy     = password.ErrPolicy
)

var (
	// ErrEngineNotReady is returned by every method of a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrStoreRequired is returned by Build when no store was supplied.
	ErrStoreRequired = errors.New("store required")
	// ErrNotifierRequired is returned by Build when no notifier was supplied.
	ErrNotifierRequired = errors.New("notifier required")
	// ErrRedisRequired is returned by Build when rate limiting is enabled
	// without a Redis client.
	ErrRedisRequired = errors.New("rate limiting requires a redis client")
)

// KindOf returns the failure kind of err. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	return failure.KindOf(err)
}

// TraceOf returns the tracing codes carried by err, innermost first.
func TraceOf(err error) []int {
	return failure.CodesOf(err)
}

// StatusOf returns the HTTP status class of err, or 200 for nil.
func StatusOf(err error) int {
	return failure.StatusOf(err)
}
