package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	"github.com/dealerdesk/taxengine/internal/cache"
	"github.com/dealerdesk/taxengine/internal/clock"
	"github.com/dealerdesk/taxengine/internal/config"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	"github.com/dealerdesk/taxengine/pkg/money"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Cfg    config.Config
	Repo   jurisdictiondomain.Repository
	Cache  cache.ReferenceCache `optional:"true"`
	Engine *config.EngineConfigHolder
	Audit  audittraildomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	cfg    config.Config
	repo   jurisdictiondomain.Repository
	cache  cache.ReferenceCache
	engine *config.EngineConfigHolder
	audit  audittraildomain.Service
}

func NewService(p Params) jurisdictiondomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("jurisdiction.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		cfg:    p.Cfg,
		repo:   p.Repo,
		cache:  p.Cache,
		engine: p.Engine,
		audit:  p.Audit,
	}
}

func (s *Service) ResolveByPostalCode(ctx context.Context, postalCode string, asOf time.Time) (*jurisdictiondomain.Jurisdiction, error) {
	normalized, err := NormalizePostalCode(postalCode)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if j, ok := s.cache.GetJurisdiction(normalized, asOf); ok {
			return j, nil
		}
	}

	j, err := s.repo.FindActiveByPostalCode(ctx, s.db, normalized, asOf)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, jurisdictiondomain.ErrJurisdictionNotFound
	}

	if s.cache != nil {
		s.cache.SetJurisdiction(normalized, asOf, j)
	}
	return j, nil
}

func (s *Service) ResolveByLocation(ctx context.Context, state string, county, city *string, asOf time.Time) (*jurisdictiondomain.Jurisdiction, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if len(state) != 2 {
		return nil, jurisdictiondomain.ErrInvalidState
	}

	j, err := s.repo.FindActiveByLocation(ctx, s.db, state, county, city, asOf)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, jurisdictiondomain.ErrJurisdictionNotFound
	}
	return j, nil
}

// Rates stacks the four components through pkg/money so the total carries
// no drift from the stored components.
func (s *Service) Rates(j *jurisdictiondomain.Jurisdiction) jurisdictiondomain.TaxRateBreakdown {
	total := money.Add(money.Add(j.StateRate, j.CountyRate), money.Add(j.CityRate, j.SpecialDistrictRate))
	return jurisdictiondomain.TaxRateBreakdown{
		StateRate:           j.StateRate,
		CountyRate:          j.CountyRate,
		CityRate:            j.CityRate,
		SpecialDistrictRate: j.SpecialDistrictRate,
		TotalRate:           total,
		EffectiveDate:       j.EffectiveDate,
	}
}

// StateAverageRate is the explicit fallback for estimate features. It is
// never consulted by the core resolve path.
func (s *Service) StateAverageRate(stateCode string) (decimal.Decimal, error) {
	stateCode = strings.ToUpper(strings.TrimSpace(stateCode))
	literal, ok := s.engine.Current().StateAverageRates[stateCode]
	if !ok {
		return decimal.Zero, jurisdictiondomain.ErrNoStateAverageRate
	}
	return money.Parse("stateAverageRates."+stateCode, literal)
}

// Load inserts a jurisdiction record and end-dates the superseded open
// record for the same postal code in one transaction, keeping effective
// windows non-overlapping.
func (s *Service) Load(ctx context.Context, req jurisdictiondomain.LoadRequest) (*jurisdictiondomain.Jurisdiction, error) {
	normalized, err := NormalizePostalCode(req.PostalCode)
	if err != nil {
		return nil, err
	}
	state := strings.ToUpper(strings.TrimSpace(req.State))
	if len(state) != 2 {
		return nil, jurisdictiondomain.ErrInvalidState
	}
	if req.EffectiveDate.IsZero() {
		return nil, jurisdictiondomain.ErrInvalidEffectiveDate
	}

	stateRate, err := money.Parse("state_rate", req.StateRate)
	if err != nil {
		return nil, err
	}
	countyRate, err := money.Parse("county_rate", req.CountyRate)
	if err != nil {
		return nil, err
	}
	cityRate, err := money.Parse("city_rate", req.CityRate)
	if err != nil {
		return nil, err
	}
	districtRate, err := money.Parse("special_district_rate", req.SpecialDistrictRate)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	j := &jurisdictiondomain.Jurisdiction{
		ID:                  s.genID.Generate(),
		PostalCode:          normalized,
		State:               state,
		County:              req.County,
		City:                req.City,
		SpecialDistrict:     req.SpecialDistrict,
		StateRate:           stateRate,
		CountyRate:          countyRate,
		CityRate:            cityRate,
		SpecialDistrictRate: districtRate,
		EffectiveDate:       req.EffectiveDate.UTC(),
		Source:              strings.TrimSpace(req.Source),
		LastVerified:        req.LastVerified,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	loadedBy := strings.TrimSpace(req.LoadedBy)
	if loadedBy == "" {
		loadedBy = "system"
	}

	// The load and its audit entry commit or roll back together.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.EndDateOpenRecord(ctx, tx, normalized, j.EffectiveDate); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, j); err != nil {
			return err
		}
		_, err := s.audit.Append(ctx, tx, &audittraildomain.TaxAuditLog{
			CalculationID:    ulid.Make().String(),
			DealershipID:     "system",
			CalculatedBy:     loadedBy,
			CalculatedAt:     now,
			Type:             audittraildomain.CalculationTypeJurisdictionLoaded,
			Inputs:           audittraildomain.Snapshot(req),
			Outputs:          audittraildomain.Snapshot(j),
			JurisdictionID:   &j.ID,
			StateCode:        state,
			EngineVersion:    s.cfg.EngineVersion,
			ValidationPassed: true,
			CreatedAt:        now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateJurisdictions()
	}
	s.log.Info("jurisdiction loaded",
		zap.String("postal_code", normalized),
		zap.String("state", state),
		zap.Time("effective_date", j.EffectiveDate),
		zap.String("loaded_by", req.LoadedBy),
	)
	return j, nil
}

func (s *Service) History(ctx context.Context, postalCode string) ([]jurisdictiondomain.Jurisdiction, error) {
	normalized, err := NormalizePostalCode(postalCode)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPostalCode(ctx, s.db, normalized)
}

// NormalizePostalCode strips whitespace and any ZIP+4 extension and
// validates the remaining five-digit code.
func NormalizePostalCode(postalCode string) (string, error) {
	trimmed := strings.TrimSpace(postalCode)
	if idx := strings.IndexByte(trimmed, '-'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if len(trimmed) == 9 && allDigits(trimmed) {
		trimmed = trimmed[:5]
	}
	if len(trimmed) != 5 || !allDigits(trimmed) {
		return "", jurisdictiondomain.ErrInvalidPostalCode
	}
	return trimmed, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
