package alert

import (
	"context"

	"github.com/smallbiznis/payequity/internal/alert/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("alert",
	fx.Provide(repository.NewRepository),
	fx.Provide(NewAsyncNotifier),
	fx.Provide(func(n *AsyncNotifier) Notifier { return n }),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, n *AsyncNotifier) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			n.Start()
			return nil
		},
		OnStop: n.Stop,
	})
}
