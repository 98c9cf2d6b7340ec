package failure

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind classifies a flow failure. Each kind maps to one HTTP-style status.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindTooManyRequests:
		return "too many requests"
	case KindInternal:
		return "internal error"
	default:
		return "unknown"
	}
}

// Status returns the HTTP status class for the kind. Unknown kinds are 500.
func (k Kind) Status() int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with an ordered list of tracing codes.
// The first code identifies the checkpoint that failed; outer layers may
// append more.
type Error struct {
	Kind  Kind
	Codes []int
	Err   error
}

// Sentinels match any *Error of the same kind through errors.Is.
var (
	ErrInvalidRequest  = &Error{Kind: KindInvalidRequest}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrTooManyRequests = &Error{Kind: KindTooManyRequests}
	ErrInternal        = &Error{Kind: KindInternal}
)

// New builds a failure of kind at checkpoint code, wrapping cause.
func New(kind Kind, code int, cause error) *Error {
	return &Error{Kind: kind, Codes: []int{code}, Err: cause}
}

// Trace appends code to err. Plain errors become internal failures.
func Trace(err error, code int) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return New(KindInternal, code, err)
	}
	codes := make([]int, 0, len(fe.Codes)+1)
	codes = append(codes, fe.Codes...)
	codes = append(codes, code)
	return &Error{Kind: fe.Kind, Codes: codes, Err: fe.Err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if len(e.Codes) > 0 {
		b.WriteString(" [")
		for i, c := range e.Codes {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(c))
		}
		b.WriteByte(']')
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports kind equality against a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return len(t.Codes) == 0 && t.Err == nil && t.Kind == e.Kind
}

// Status returns the HTTP status class of the failure.
func (e *Error) Status() int {
	if e == nil {
		return http.StatusOK
	}
	return e.Kind.Status()
}

// Trace returns a copy of the tracing codes.
func (e *Error) Trace() []int {
	if e == nil {
		return nil
	}
	return append([]int(nil), e.Codes...)
}

// KindOf extracts the failure kind from err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// CodesOf extracts the tracing codes from err.
func CodesOf(err error) []int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Trace()
	}
	return nil
}

// StatusOf returns the HTTP status class for err.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return KindOf(err).Status()
}

// Errorf is a convenience for New with a formatted cause.
func Errorf(kind Kind, code int, format string, args ...any) *Error {
	return New(kind, code, fmt.Errorf(format, args...))
}
