package slack

import (
	"time"

	"github.com/smallbiznis/payequity/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

// NewFromConfig posts through the webhook when one is configured.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Alert.WebhookURL == "" {
		return &NoOpProvider{Log: log.Named("providers.slack")}
	}
	return NewWebhookProvider(cfg.Alert.WebhookURL, time.Duration(cfg.Alert.TimeoutSec)*time.Second)
}
