package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEquityPolicy(t *testing.T) {
	assert.NoError(t, ValidateEquityPolicy(DefaultEquityPolicy()))

	policy := DefaultEquityPolicy()
	policy.Rounding = "ceil"
	assert.Error(t, ValidateEquityPolicy(policy))

	policy = DefaultEquityPolicy()
	policy.MaxEquityPercentageBps = 10001
	assert.Error(t, ValidateEquityPolicy(policy))

	policy = DefaultEquityPolicy()
	policy.SettlementLockTTLSec = 0
	assert.Error(t, ValidateEquityPolicy(policy))
}

func TestEquityPolicyHolderDefaults(t *testing.T) {
	var holder *EquityPolicyHolder
	assert.Equal(t, DefaultEquityPolicy(), holder.Get())

	custom := DefaultEquityPolicy()
	custom.Rounding = "half_even"
	assert.Equal(t, "half_even", NewStaticEquityPolicyHolder(custom).Get().Rounding)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_AUTO_MIGRATE", "off")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.True(t, cfg.Redis.Enabled())
	assert.False(t, cfg.DBAutoMigrate)
	assert.Equal(t, "payequity", cfg.AppName)
}
