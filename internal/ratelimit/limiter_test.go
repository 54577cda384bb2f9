package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/payequity/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWithoutRedisAllowsEverything(t *testing.T) {
	l := NewLimiter(config.Config{}, nil)
	assert.False(t, l.Enabled())

	res, err := l.AllowPreview(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	release, err := l.LockGrant(context.Background(), "7", 2024, time.Second)
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.NoError(t, release(context.Background()))
}

func TestGrantLockKey(t *testing.T) {
	assert.Equal(t, "equity_grant:7:2024", GrantLockKey(" 7 ", 2024))
}

func TestNilLockerReportsNotConfigured(t *testing.T) {
	var l *Locker
	_, _, err := l.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "k", "token"))
	assert.Nil(t, NewLocker(nil))
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 8*time.Second, defaultBucketTTL(5, 20))
	assert.Equal(t, time.Second, defaultBucketTTL(1000, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 0))
}

func TestCastHelpers(t *testing.T) {
	assert.Equal(t, int64(3), castToInt(int64(3)))
	assert.Equal(t, int64(2), castToInt(2.9))
	assert.Equal(t, 1.5, castToFloat("1.5"))
	assert.Equal(t, 4.0, castToFloat(int64(4)))
	assert.Equal(t, 0.0, castToFloat(struct{}{}))
}
