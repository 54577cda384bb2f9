package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EquityPolicy holds the operator-tunable settings for equity settlement.
// It is read from equity.yml and reloaded when the file changes.
type EquityPolicy struct {
	// Rounding is "half_up" or "half_even".
	Rounding               string `mapstructure:"rounding"`
	MaxEquityPercentageBps int64  `mapstructure:"maxEquityPercentageBps"`
	AlertsEnabled          bool   `mapstructure:"alertsEnabled"`
	SettlementLockTTLSec   int    `mapstructure:"settlementLockTtlSec"`
}

func DefaultEquityPolicy() EquityPolicy {
	return EquityPolicy{
		Rounding:               "half_up",
		MaxEquityPercentageBps: 10000,
		AlertsEnabled:          true,
		SettlementLockTTLSec:   30,
	}
}

type EquityPolicyHolder struct {
	current atomic.Value // holds EquityPolicy
}

// NewStaticEquityPolicyHolder returns a holder that never reloads.
func NewStaticEquityPolicyHolder(policy EquityPolicy) *EquityPolicyHolder {
	holder := &EquityPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewEquityPolicyHolder() (*EquityPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("equity")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/payequity/config")
	v.AddConfigPath("/etc/payequity")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYEQUITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEquityPolicy()
	v.SetDefault("equity.rounding", defaults.Rounding)
	v.SetDefault("equity.maxEquityPercentageBps", defaults.MaxEquityPercentageBps)
	v.SetDefault("equity.alertsEnabled", defaults.AlertsEnabled)
	v.SetDefault("equity.settlementLockTtlSec", defaults.SettlementLockTTLSec)

	configFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		configFound = false
	}

	var policy EquityPolicy
	if err := v.UnmarshalKey("equity", &policy); err != nil {
		return nil, err
	}
	if err := ValidateEquityPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticEquityPolicyHolder(policy)
	if !configFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EquityPolicy
		if err := v.UnmarshalKey("equity", &updated); err != nil {
			zap.L().Warn("equity policy reload failed", zap.Error(err))
			return
		}
		if err := ValidateEquityPolicy(updated); err != nil {
			zap.L().Warn("invalid equity policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("equity policy reloaded", zap.String("file", e.Name), zap.String("rounding", updated.Rounding))
	})

	return holder, nil
}

func (h *EquityPolicyHolder) Get() EquityPolicy {
	if h == nil {
		return DefaultEquityPolicy()
	}
	policy, ok := h.current.Load().(EquityPolicy)
	if !ok {
		return DefaultEquityPolicy()
	}
	return policy
}

func ValidateEquityPolicy(policy EquityPolicy) error {
	switch strings.ToLower(strings.TrimSpace(policy.Rounding)) {
	case "half_up", "half_even":
	default:
		return fmt.Errorf("equity.rounding %q must be half_up or half_even", policy.Rounding)
	}
	if policy.MaxEquityPercentageBps <= 0 || policy.MaxEquityPercentageBps > 10000 {
		return errors.New("equity.maxEquityPercentageBps must be within 1..10000")
	}
	if policy.SettlementLockTTLSec <= 0 {
		return errors.New("equity.settlementLockTtlSec must be positive")
	}
	return nil
}
