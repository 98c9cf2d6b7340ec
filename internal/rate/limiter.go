package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters. A zero maximum disables the
// corresponding budget.
type Config struct {
	MaxIssuePerWindow int
	IssueWindow       time.Duration
	EnableIPThrottle  bool
	MaxVerifyFailures int
	VerifyCooldown    time.Duration
}

// Limiter enforces per-subject budgets for code issuance and failed
// verifications using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckIssue counts one issuance for subject (and ip when IP throttling is
// on) in flow and fails once the window budget is exceeded.
func (l *Limiter) CheckIssue(ctx context.Context, flow, subject, ip string) error {
	if l.config.MaxIssuePerWindow <= 0 {
		return nil
	}
	if err := l.enforceFixedWindow(ctx, issueKey(flow, subject), l.config.MaxIssuePerWindow, l.config.IssueWindow); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, issueIPKey(flow, ip), l.config.MaxIssuePerWindow, l.config.IssueWindow); err != nil {
			return err
		}
	}
	return nil
}

// CheckVerify fails when subject has exhausted its failed-verification
// budget for flow. It does not count an attempt.
func (l *Limiter) CheckVerify(ctx context.Context, flow, subject string) error {
	if l.config.MaxVerifyFailures <= 0 {
		return nil
	}
	return l.checkCounter(ctx, verifyKey(flow, subject), l.config.MaxVerifyFailures)
}

// RecordVerifyFailure counts a failed verification. It returns
// ErrRateLimited once the budget is exceeded.
func (l *Limiter) RecordVerifyFailure(ctx context.Context, flow, subject string) error {
	if l.config.MaxVerifyFailures <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, verifyKey(flow, subject), l.config.VerifyCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxVerifyFailures) {
		return ErrRateLimited
	}
	return nil
}

// ResetVerify clears the failure counter after a successful verification.
func (l *Limiter) ResetVerify(ctx context.Context, flow, subject string) error {
	if l.config.MaxVerifyFailures <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, verifyKey(flow, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// VerifyFailures returns the current failure count. Missing keys return
// zero and do not reveal account existence.
func (l *Limiter) VerifyFailures(ctx context.Context, flow, subject string) (int, error) {
	count, err := l.redis.Get(ctx, verifyKey(flow, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) enforceFixedWindow(ctx context.Context, key string, maxAttempts int, window time.Duration) error {
	count, err := l.incrementWithTTL(ctx, key, window)
	if err != nil {
		return err
	}
	if count > int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
