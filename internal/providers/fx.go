package providers

import (
	"github.com/smallbiznis/payequity/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	slack.Module,
)
