package ingest

import "go.uber.org/fx"

var Module = fx.Module("ingest.engine",
	fx.Provide(NewEngine),
)
