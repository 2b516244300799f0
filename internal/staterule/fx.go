package staterule

import (
	"github.com/dealerdesk/taxengine/internal/staterule/repository"
	"github.com/dealerdesk/taxengine/internal/staterule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("staterule.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
