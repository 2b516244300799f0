package audittrail

import (
	"github.com/dealerdesk/taxengine/internal/audittrail/repository"
	"github.com/dealerdesk/taxengine/internal/audittrail/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audittrail.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
