package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/twostep/internal/failure"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/token"
)

// HookPoint names where in a flow an interceptor runs.
type HookPoint uint8

const (
	// BeforeCredentialCheck runs after identity and authorization checks and
	// before the password or one-time code is verified. No transaction is
	// open.
	BeforeCredentialCheck HookPoint = iota + 1
	// AfterStateChange runs inside the open transaction after the primary
	// mutation and before notification.
	AfterStateChange
)

func (p HookPoint) String() string {
	switch p {
	case BeforeCredentialCheck:
		return "before_credential_check"
	case AfterStateChange:
		return "after_state_change"
	default:
		return "unknown"
	}
}

// Scratch is shared by every interceptor of one flow invocation.
// Setting CredentialChecked or CodeChecked in a BeforeCredentialCheck
// interceptor skips the engine's own password or code verification.
type Scratch struct {
	CredentialChecked bool
	CodeChecked       bool
	Values            map[string]any
}

// Set stores a caller-defined value.
func (s *Scratch) Set(key string, v any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = v
}

// Get returns a caller-defined value.
func (s *Scratch) Get(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// HookContext is what an interceptor sees.
type HookContext struct {
	Flow    Flow
	Point   HookPoint
	Account store.Account
	// Claims is the verified continuation token, nil in steps that have
	// none.
	Claims  *token.Claims
	IP      string
	Device  string
	Scratch *Scratch
	// Queries is the open transaction at AfterStateChange and the store
	// otherwise. Writes made through it share the flow's fate.
	Queries store.Queries
}

// Interceptor is a caller-supplied extension. A returned error aborts the
// flow as an internal error, unless it is already a classified failure, in
// which case its kind (and so the response status) is kept.
type Interceptor interface {
	Intercept(ctx context.Context, hc HookContext) error
}

// InterceptorFunc adapts a function to [Interceptor].
type InterceptorFunc func(ctx context.Context, hc HookContext) error

// Intercept calls f.
func (f InterceptorFunc) Intercept(ctx context.Context, hc HookContext) error {
	return f(ctx, hc)
}

// Hook registers an interceptor at a point.
type Hook struct {
	Point       HookPoint
	Interceptor Interceptor
}

// runHooks invokes every hook registered at hc.Point in order and stops at
// the first failure. Classified failures keep their kind; anything else is
// internal. code is appended either way.
func runHooks(ctx context.Context, hooks []Hook, hc HookContext, code int) error {
	for i, h := range hooks {
		if h.Point != hc.Point || h.Interceptor == nil {
			continue
		}
		if err := h.Interceptor.Intercept(ctx, hc); err != nil {
			var fe *failure.Error
			if errors.As(err, &fe) {
				return failure.Trace(err, code)
			}
			return failure.New(failure.KindInternal, code, fmt.Errorf("%s hook %d: %w", hc.Point, i, err))
		}
	}
	return nil
}
