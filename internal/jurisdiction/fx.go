package jurisdiction

import (
	"github.com/dealerdesk/taxengine/internal/jurisdiction/repository"
	"github.com/dealerdesk/taxengine/internal/jurisdiction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("jurisdiction.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
