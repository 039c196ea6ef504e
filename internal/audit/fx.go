package audit

import (
	"github.com/railzwaylabs/orderetl/internal/audit/repository"
	"github.com/railzwaylabs/orderetl/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewExportService),
)
