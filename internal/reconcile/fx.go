package reconcile

import "go.uber.org/fx"

var Module = fx.Module("reconcile.pass",
	fx.Provide(NewPass),
)
