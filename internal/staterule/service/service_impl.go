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
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"github.com/dealerdesk/taxengine/pkg/money"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
	Repo  stateruledomain.Repository
	Cache cache.ReferenceCache `optional:"true"`
	Audit audittraildomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config
	repo  stateruledomain.Repository
	cache cache.ReferenceCache
	audit audittraildomain.Service
}

func NewService(p Params) stateruledomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("staterule.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Cfg,
		repo:  p.Repo,
		cache: p.Cache,
		audit: p.Audit,
	}
}

func (s *Service) Rules(ctx context.Context, stateCode string, asOf time.Time) (*stateruledomain.StateRules, error) {
	normalized, err := normalizeStateCode(stateCode)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if rules, ok := s.cache.GetStateRules(normalized, asOf); ok {
			return rules, nil
		}
	}

	rules, err := s.repo.FindActive(ctx, s.db, normalized, asOf)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		return nil, stateruledomain.ErrUnsupportedState
	}

	if s.cache != nil {
		s.cache.SetStateRules(normalized, asOf, rules)
	}
	return rules, nil
}

// LoadVersion inserts a new rule version for a state and end-dates the
// previous open version in the same transaction.
func (s *Service) LoadVersion(ctx context.Context, req stateruledomain.LoadRequest) (*stateruledomain.StateRules, error) {
	normalized, err := normalizeStateCode(req.StateCode)
	if err != nil {
		return nil, err
	}
	if req.EffectiveDate.IsZero() {
		return nil, stateruledomain.ErrInvalidEffectiveDate
	}
	scheme, err := normalizeScheme(req.SpecialScheme)
	if err != nil {
		return nil, err
	}

	titleFee, err := money.Parse("title_fee", req.TitleFee)
	if err != nil {
		return nil, err
	}
	tradeInCap, err := parseOptionalDecimal("trade_in_credit_cap", req.TradeInCreditCap)
	if err != nil {
		return nil, err
	}
	tradeInPercent, err := parseOptionalDecimal("trade_in_credit_percent", req.TradeInCreditPercent)
	if err != nil {
		return nil, err
	}
	docFeeMax, err := parseOptionalDecimal("doc_fee_max", req.DocFeeMax)
	if err != nil {
		return nil, err
	}

	rules := &stateruledomain.StateRules{
		ID:                        s.genID.Generate(),
		StateCode:                 normalized,
		EffectiveDate:             req.EffectiveDate.UTC(),
		AllowsTradeInCredit:       req.AllowsTradeInCredit,
		TradeInCreditCap:          tradeInCap,
		TradeInCreditPercent:      tradeInPercent,
		DocFeeCapped:              req.DocFeeCapped,
		DocFeeMax:                 docFeeMax,
		DocFeeTaxable:             req.DocFeeTaxable,
		TitleFee:                  titleFee,
		ServiceContractsTaxable:   req.ServiceContractsTaxable,
		GapTaxable:                req.GapTaxable,
		AccessoriesTaxable:        req.AccessoriesTaxable,
		ManufacturerRebateTaxable: req.ManufacturerRebateTaxable,
		DealerRebateTaxable:       req.DealerRebateTaxable,
		SpecialScheme:             scheme,
		CreatedAt:                 s.clock.Now(),
	}

	loadedBy := strings.TrimSpace(req.LoadedBy)
	if loadedBy == "" {
		loadedBy = "system"
	}

	// The new version and its audit entry commit or roll back together.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		closedVersion, err := s.repo.EndDateOpenVersion(ctx, tx, normalized, rules.EffectiveDate)
		if err != nil {
			return err
		}
		rules.Version = closedVersion + 1
		if err := s.repo.Insert(ctx, tx, rules); err != nil {
			return err
		}
		_, err = s.audit.Append(ctx, tx, &audittraildomain.TaxAuditLog{
			CalculationID:     ulid.Make().String(),
			DealershipID:      "system",
			CalculatedBy:      loadedBy,
			CalculatedAt:      rules.CreatedAt,
			Type:              audittraildomain.CalculationTypeStateRulesVersioned,
			Inputs:            audittraildomain.Snapshot(req),
			Outputs:           audittraildomain.Snapshot(rules),
			StateCode:         normalized,
			StateRulesVersion: &rules.Version,
			EngineVersion:     s.cfg.EngineVersion,
			ValidationPassed:  true,
			CreatedAt:         rules.CreatedAt,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateStateRules()
	}
	s.log.Info("state rules versioned",
		zap.String("state", normalized),
		zap.Int("version", rules.Version),
		zap.Time("effective_date", rules.EffectiveDate),
		zap.String("loaded_by", req.LoadedBy),
	)
	return rules, nil
}

func (s *Service) Versions(ctx context.Context, stateCode string) ([]stateruledomain.StateRules, error) {
	normalized, err := normalizeStateCode(stateCode)
	if err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, s.db, normalized)
}

func normalizeStateCode(stateCode string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(stateCode))
	if len(normalized) != 2 {
		return "", stateruledomain.ErrInvalidStateCode
	}
	for _, r := range normalized {
		if r < 'A' || r > 'Z' {
			return "", stateruledomain.ErrInvalidStateCode
		}
	}
	return normalized, nil
}

func normalizeScheme(scheme stateruledomain.SpecialScheme) (stateruledomain.SpecialScheme, error) {
	normalized := stateruledomain.SpecialScheme(strings.ToLower(strings.TrimSpace(string(scheme))))
	switch normalized {
	case "":
		return stateruledomain.SchemeStandard, nil
	case stateruledomain.SchemeStandard,
		stateruledomain.SchemeTitleAdValorem,
		stateruledomain.SchemePrivilegeTax,
		stateruledomain.SchemeHighwayUse:
		return normalized, nil
	default:
		return "", stateruledomain.ErrInvalidScheme
	}
}

func parseOptionalDecimal(field, value string) (*decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := money.Parse(field, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
