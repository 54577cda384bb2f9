package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payequity/internal/config"
)

const (
	keyEquityPreview = "equity:preview:company:%s"
	keyGrantLock     = "equity_grant:%s:%d"
)

// Limiter guards the equity endpoints. A Limiter without redis allows every
// preview and hands out no-op grant locks, which leaves the database row lock
// and version check as the only settlement guards.
type Limiter struct {
	bucket *TokenBucket
	locker *Locker

	previewRate  float64
	previewBurst int
}

func NewLimiter(cfg config.Config, client redis.UniversalClient) *Limiter {
	if client == nil {
		return &Limiter{}
	}
	return &Limiter{
		bucket:       NewTokenBucket(client),
		locker:       NewLocker(client),
		previewRate:  cfg.RateLimit.PreviewRate,
		previewBurst: cfg.RateLimit.PreviewBurst,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil && l.locker != nil
}

// AllowPreview takes a token from the company's preview bucket.
func (l *Limiter) AllowPreview(ctx context.Context, companyID string) (*RateLimitResult, error) {
	if !l.Enabled() || l.previewRate <= 0 || l.previewBurst <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEquityPreview, strings.TrimSpace(companyID)), l.previewRate, l.previewBurst)
}

// GrantLockKey is the lock serialising settlements that draw on the same
// contractor's grant for a year.
func GrantLockKey(contractorID string, year int) string {
	return fmt.Sprintf(keyGrantLock, strings.TrimSpace(contractorID), year)
}

// LockGrant blocks until the grant lock is held, ttl expires the lock if the
// holder dies. The returned release func is always non-nil.
func (l *Limiter) LockGrant(ctx context.Context, contractorID string, year int, ttl time.Duration) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !l.Enabled() {
		return noop, nil
	}

	key := GrantLockKey(contractorID, year)
	lockCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	token, err := l.locker.Lock(lockCtx, key, ttl, 0)
	if err != nil {
		return noop, err
	}
	return func(ctx context.Context) error {
		return l.locker.Release(ctx, key, token)
	}, nil
}
