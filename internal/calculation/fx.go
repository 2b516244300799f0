package calculation

import (
	"github.com/dealerdesk/taxengine/internal/calculation/service"
	obsmetrics "github.com/dealerdesk/taxengine/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("calculation.service",
	fx.Provide(obsmetrics.Engine),
	fx.Provide(service.NewService),
)
