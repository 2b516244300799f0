package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/dealerdesk/taxengine/internal/audittrail"
	"github.com/dealerdesk/taxengine/internal/cache"
	"github.com/dealerdesk/taxengine/internal/calculation"
	"github.com/dealerdesk/taxengine/internal/clock"
	"github.com/dealerdesk/taxengine/internal/config"
	"github.com/dealerdesk/taxengine/internal/jurisdiction"
	"github.com/dealerdesk/taxengine/internal/logger"
	"github.com/dealerdesk/taxengine/internal/migration"
	"github.com/dealerdesk/taxengine/internal/server"
	"github.com/dealerdesk/taxengine/internal/staterule"
	"github.com/dealerdesk/taxengine/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,

		// Functional domains
		jurisdiction.Module,
		staterule.Module,
		audittrail.Module,
		calculation.Module,

		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
