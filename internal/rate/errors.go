package rate

import "errors"

var (
	// ErrRateLimited is returned when a budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis command failure. Callers fail
	// closed on it.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
