package config

import "go.uber.org/fx"

// Module expects a config.File to be supplied by the caller.
var Module = fx.Module("config",
	fx.Provide(Load),
)
