package equitysplit

import (
	"github.com/smallbiznis/payequity/internal/equitysplit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("equitysplit.service",
	fx.Provide(service.NewService),
)
