package migration

import (
	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	"github.com/dealerdesk/taxengine/internal/config"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	"github.com/dealerdesk/taxengine/internal/seed"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql run from the gorm models directly.
			if err := conn.AutoMigrate(
				&jurisdictiondomain.Jurisdiction{},
				&stateruledomain.StateRules{},
				&audittraildomain.TaxAuditLog{},
			); err != nil {
				return err
			}
		}

		if err := seed.EnsureStateRules(conn); err != nil {
			return err
		}
		if cfg.Environment != "production" {
			return seed.EnsureSampleJurisdictions(conn)
		}
		return nil
	}),
)
