package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	calculationdomain "github.com/dealerdesk/taxengine/internal/calculation/domain"
	"github.com/dealerdesk/taxengine/internal/clock"
	"github.com/dealerdesk/taxengine/internal/config"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	obsmetrics "github.com/dealerdesk/taxengine/internal/observability/metrics"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"github.com/dealerdesk/taxengine/pkg/money"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Engine     *config.EngineConfigHolder
	JurSvc     jurisdictiondomain.Service
	RuleSvc    stateruledomain.Service
	AuditSvc   audittraildomain.Service
	ObsMetrics *obsmetrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.Config
	engine     *config.EngineConfigHolder
	jurSvc     jurisdictiondomain.Service
	ruleSvc    stateruledomain.Service
	auditSvc   audittraildomain.Service
	obsMetrics *obsmetrics.EngineMetrics
}

func NewService(p Params) calculationdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("calculation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Cfg,
		engine:     p.Engine,
		jurSvc:     p.JurSvc,
		ruleSvc:    p.RuleSvc,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// parsedRequest carries the validated decimal view of a request through the
// pipeline.
type parsedRequest struct {
	price        decimal.Decimal
	tradeIn      decimal.Decimal
	rebateMfr    decimal.Decimal
	rebateDealer decimal.Decimal
	asOf         time.Time
}

// computedSalesTax is the pipeline output before audit persistence.
type computedSalesTax struct {
	result       *calculationdomain.SalesTaxResult
	jurisdiction *jurisdictiondomain.Jurisdiction
	rules        *stateruledomain.StateRules
	parsed       parsedRequest
	strategy     splitStrategy
	base         decimal.Decimal
	components   taxComponents
}

func (s *Service) CalculateSalesTax(ctx context.Context, req calculationdomain.SalesTaxRequest) (*calculationdomain.SalesTaxResult, error) {
	started := time.Now()

	computed, err := s.computeSalesTax(ctx, req)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	entry := s.buildAuditEntry(req, computed, audittraildomain.CalculationTypeSalesTax, req.DealID, toJSONMap(req), toJSONMap(computed.result))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.auditSvc.Append(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.observe(computed, audittraildomain.CalculationTypeSalesTax, started)
	return computed.result, nil
}

func (s *Service) EstimateSalesTax(ctx context.Context, req calculationdomain.SalesTaxRequest) (*calculationdomain.SalesTaxResult, error) {
	started := time.Now()

	parsed, err := s.parseRequest(req)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	state := strings.ToUpper(strings.TrimSpace(req.State))
	rules, err := s.ruleSvc.Rules(ctx, state, parsed.asOf)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	avgRate, err := s.jurSvc.StateAverageRate(state)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	// The estimate carries the whole state-average rate in the state
	// component; there is no component-level data behind an average.
	rates := jurisdictiondomain.TaxRateBreakdown{
		StateRate:           avgRate,
		CountyRate:          decimal.Zero,
		CityRate:            decimal.Zero,
		SpecialDistrictRate: decimal.Zero,
		TotalRate:           avgRate,
		EffectiveDate:       parsed.asOf,
	}

	strategy := strategyForScheme(rules.SpecialScheme, s.engine.Current())
	base, credit := s.taxableBase(parsed, rules)
	comps := strategy.split(base, rates)
	outcome := validateTaxCalculation(parsed.price, base, comps, s.engine.Current())

	computed := &computedSalesTax{
		result:     s.assembleResult(req, parsed, nil, rates, base, credit, comps, outcome, calculationdomain.RateSourceStateAverage),
		rules:      rules,
		parsed:     parsed,
		strategy:   strategy,
		base:       base,
		components: comps,
	}

	entry := s.buildAuditEntry(req, computed, audittraildomain.CalculationTypeSalesTaxEstimate, req.DealID, toJSONMap(req), toJSONMap(computed.result))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.auditSvc.Append(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.observe(computed, audittraildomain.CalculationTypeSalesTaxEstimate, started)
	return computed.result, nil
}

func (s *Service) CalculateDealTaxes(ctx context.Context, req calculationdomain.DealTaxRequest) (*calculationdomain.CompleteTaxBreakdown, error) {
	started := time.Now()

	computed, err := s.computeSalesTax(ctx, req.SalesTaxRequest)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	rules := computed.rules
	feeRate := computed.strategy.rate(s.jurSvc.Rates(computed.jurisdiction))

	docFee, err := money.ParseOptional("doc_fee", req.DocFee)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	if rules.DocFeeCapped && rules.DocFeeMax != nil {
		docFee = money.ApplyCap(docFee, *rules.DocFeeMax)
	}
	docFeeTax := decimal.Zero
	if rules.DocFeeTaxable && docFee.IsPositive() {
		docFeeTax = money.CalculateTax(docFee, feeRate)
	}

	registrationFee, err := money.ParseOptional("registration_fee", req.RegistrationFee)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	titleFee := money.RoundMoney(rules.TitleFee)

	fees, err := s.assessFees(req, rules, feeRate)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	totalTaxable := computed.base
	totalNonTaxable := money.Add(titleFee, registrationFee)
	if rules.DocFeeTaxable {
		totalTaxable = money.Add(totalTaxable, docFee)
	} else {
		totalNonTaxable = money.Add(totalNonTaxable, docFee)
	}

	totalTaxes := money.Add(computed.components.Total, docFeeTax)
	totalFees := money.Add(money.Add(docFee, titleFee), registrationFee)
	for _, fee := range fees {
		if fee.amount.IsZero() {
			continue
		}
		totalFees = money.Add(totalFees, fee.amount)
		totalTaxes = money.Add(totalTaxes, fee.tax)
		if fee.taxable {
			totalTaxable = money.Add(totalTaxable, fee.amount)
		} else {
			totalNonTaxable = money.Add(totalNonTaxable, fee.amount)
		}
	}

	breakdown := &calculationdomain.CompleteTaxBreakdown{
		SalesTax:          *computed.result,
		DocFee:            money.ToMoneyString(docFee),
		DocFeeTax:         money.ToMoneyString(docFeeTax),
		TitleFee:          money.ToMoneyString(titleFee),
		RegistrationFee:   money.ToMoneyString(registrationFee),
		Fees:              assembleFees(fees),
		TotalTaxable:      money.ToMoneyString(totalTaxable),
		TotalNonTaxable:   money.ToMoneyString(totalNonTaxable),
		TotalTaxes:        money.ToMoneyString(totalTaxes),
		TotalTaxesAndFees: money.ToMoneyString(money.Add(totalTaxes, totalFees)),
		AuditRef:          computed.result.CalculationID,
		Validation:        *computed.result.Validation,
	}

	// One consolidated audit entry covers the whole deal.
	entry := s.buildAuditEntry(req.SalesTaxRequest, computed, audittraildomain.CalculationTypeDealTaxes, req.DealID, toJSONMap(req), toJSONMap(breakdown))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.auditSvc.Append(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.observe(computed, audittraildomain.CalculationTypeDealTaxes, started)
	return breakdown, nil
}

func (s *Service) CalculateTradeInCredit(tradeInValue string, rules *stateruledomain.StateRules) (string, error) {
	tradeIn, err := money.ParseOptional("trade_in_value", tradeInValue)
	if err != nil {
		return "", err
	}
	return money.ToMoneyString(tradeInCredit(tradeIn, rules)), nil
}

func (s *Service) CalculateDocFee(ctx context.Context, stateCode, requestedFee string) (string, error) {
	fee, err := money.Parse("doc_fee", requestedFee)
	if err != nil {
		return "", err
	}
	rules, err := s.ruleSvc.Rules(ctx, stateCode, s.clock.Now())
	if err != nil {
		return "", err
	}
	if rules.DocFeeCapped && rules.DocFeeMax != nil {
		fee = money.ApplyCap(fee, *rules.DocFeeMax)
	}
	return money.ToMoneyString(fee), nil
}

func (s *Service) CalculateTitleFee(ctx context.Context, stateCode string) (string, error) {
	rules, err := s.ruleSvc.Rules(ctx, stateCode, s.clock.Now())
	if err != nil {
		return "", err
	}
	return money.ToMoneyString(rules.TitleFee), nil
}

func (s *Service) AuditTaxCalculation(ctx context.Context, dealID string) ([]audittraildomain.TaxAuditLog, error) {
	return s.auditSvc.GetByDeal(ctx, dealID)
}

// computeSalesTax runs the pipeline up to (not including) audit
// persistence: resolve jurisdiction, resolve rules, compute taxable base,
// apply rate, split components, validate.
func (s *Service) computeSalesTax(ctx context.Context, req calculationdomain.SalesTaxRequest) (*computedSalesTax, error) {
	parsed, err := s.parseRequest(req)
	if err != nil {
		return nil, err
	}

	var jur *jurisdictiondomain.Jurisdiction
	switch {
	case strings.TrimSpace(req.PostalCode) != "":
		jur, err = s.jurSvc.ResolveByPostalCode(ctx, req.PostalCode, parsed.asOf)
	case strings.TrimSpace(req.State) != "":
		jur, err = s.jurSvc.ResolveByLocation(ctx, req.State, req.County, req.City, parsed.asOf)
	default:
		return nil, calculationdomain.ErrInvalidLocation
	}
	if err != nil {
		return nil, err
	}

	stateCode := strings.ToUpper(strings.TrimSpace(req.State))
	if stateCode == "" {
		stateCode = jur.State
	}
	rules, err := s.ruleSvc.Rules(ctx, stateCode, parsed.asOf)
	if err != nil {
		return nil, err
	}

	rates := s.jurSvc.Rates(jur)
	strategy := strategyForScheme(rules.SpecialScheme, s.engine.Current())
	base, credit := s.taxableBase(parsed, rules)
	comps := strategy.split(base, rates)
	outcome := validateTaxCalculation(parsed.price, base, comps, s.engine.Current())

	return &computedSalesTax{
		result:       s.assembleResult(req, parsed, jur, rates, base, credit, comps, outcome, calculationdomain.RateSourceJurisdiction),
		jurisdiction: jur,
		rules:        rules,
		parsed:       parsed,
		strategy:     strategy,
		base:         base,
		components:   comps,
	}, nil
}

func (s *Service) parseRequest(req calculationdomain.SalesTaxRequest) (parsedRequest, error) {
	if strings.TrimSpace(req.DealershipID) == "" {
		return parsedRequest{}, calculationdomain.ErrInvalidDealership
	}

	price, err := money.Parse("vehicle_price", req.VehiclePrice)
	if err != nil {
		return parsedRequest{}, err
	}
	tradeIn, err := money.ParseOptional("trade_in_value", req.TradeInValue)
	if err != nil {
		return parsedRequest{}, err
	}
	rebateMfr, err := money.ParseOptional("rebate_manufacturer", req.RebateManufacturer)
	if err != nil {
		return parsedRequest{}, err
	}
	rebateDealer, err := money.ParseOptional("rebate_dealer", req.RebateDealer)
	if err != nil {
		return parsedRequest{}, err
	}

	asOf := s.clock.Now()
	if req.CalculationDate != nil && !req.CalculationDate.IsZero() {
		asOf = req.CalculationDate.UTC()
	}

	return parsedRequest{
		price:        price,
		tradeIn:      tradeIn,
		rebateMfr:    rebateMfr,
		rebateDealer: rebateDealer,
		asOf:         asOf,
	}, nil
}

// taxableBase subtracts the allowed trade-in credit and the non-taxable
// rebate portion from the vehicle price, clamped at zero. It returns the
// credit alongside the base so callers can report what was applied.
func (s *Service) taxableBase(parsed parsedRequest, rules *stateruledomain.StateRules) (decimal.Decimal, decimal.Decimal) {
	credit := tradeInCredit(parsed.tradeIn, rules)
	base := money.Subtract(parsed.price, credit)
	if !rules.ManufacturerRebateTaxable {
		base = money.Subtract(base, parsed.rebateMfr)
	}
	if !rules.DealerRebateTaxable {
		base = money.Subtract(base, parsed.rebateDealer)
	}
	return money.Max(base, decimal.Zero), credit
}

// tradeInCredit applies the state's trade-in policy: no credit when
// disallowed, otherwise the trade-in value reduced by the percentage cap
// and then bounded by the absolute cap, so the more restrictive of the two
// governs when both are set.
func tradeInCredit(tradeIn decimal.Decimal, rules *stateruledomain.StateRules) decimal.Decimal {
	if !rules.AllowsTradeInCredit || !tradeIn.IsPositive() {
		return decimal.Zero
	}
	credit := tradeIn
	if rules.TradeInCreditPercent != nil {
		credit = money.RoundMoney(money.ApplyPercent(tradeIn, *rules.TradeInCreditPercent))
	}
	if rules.TradeInCreditCap != nil {
		credit = money.ApplyCap(credit, *rules.TradeInCreditCap)
	}
	return credit
}

func (s *Service) assembleResult(
	req calculationdomain.SalesTaxRequest,
	parsed parsedRequest,
	jur *jurisdictiondomain.Jurisdiction,
	rates jurisdictiondomain.TaxRateBreakdown,
	base decimal.Decimal,
	credit decimal.Decimal,
	comps taxComponents,
	outcome calculationdomain.ValidationOutcome,
	rateSource string,
) *calculationdomain.SalesTaxResult {
	result := &calculationdomain.SalesTaxResult{
		CalculationID:        ulid.Make().String(),
		TotalTax:             money.ToMoneyString(comps.Total),
		StateTax:             money.ToMoneyString(comps.State),
		CountyTax:            money.ToMoneyString(comps.County),
		CityTax:              money.ToMoneyString(comps.City),
		SpecialDistrictTax:   money.ToMoneyString(comps.SpecialDistrict),
		Rates:                rates,
		TaxableAmount:        money.ToMoneyString(base),
		TradeInCreditApplied: money.ToMoneyString(credit),
		RateSource:           rateSource,
		CalculatedAt:         s.clock.Now(),
		CalculatedBy:         strings.TrimSpace(req.UserID),
		Validation:           &outcome,
	}
	if jur != nil {
		result.Jurisdiction = &calculationdomain.ResolvedJurisdiction{
			ID:              jur.ID.String(),
			PostalCode:      jur.PostalCode,
			State:           jur.State,
			County:          jur.County,
			City:            jur.City,
			SpecialDistrict: jur.SpecialDistrict,
		}
	}
	return result
}

type assessedFee struct {
	name    string
	amount  decimal.Decimal
	taxable bool
	tax     decimal.Decimal
}

func (s *Service) assessFees(req calculationdomain.DealTaxRequest, rules *stateruledomain.StateRules, feeRate decimal.Decimal) ([]assessedFee, error) {
	var fees []assessedFee

	appendFee := func(name string, amount decimal.Decimal, taxable bool) {
		if amount.IsZero() {
			return
		}
		tax := decimal.Zero
		if taxable {
			tax = money.CalculateTax(amount, feeRate)
		}
		fees = append(fees, assessedFee{name: name, amount: amount, taxable: taxable, tax: tax})
	}

	serviceContracts, err := money.ParseOptional("service_contracts", req.ServiceContracts)
	if err != nil {
		return nil, err
	}
	appendFee("service_contracts", serviceContracts, rules.ServiceContractsTaxable)

	gap, err := money.ParseOptional("gap", req.Gap)
	if err != nil {
		return nil, err
	}
	appendFee("gap", gap, rules.GapTaxable)

	for i, accessory := range req.Accessories {
		amount, err := money.Parse(fmt.Sprintf("accessories[%d]", i), accessory)
		if err != nil {
			return nil, err
		}
		appendFee(fmt.Sprintf("accessory_%d", i+1), amount, rules.AccessoriesTaxable)
	}

	for i, fee := range req.OtherFees {
		amount, err := money.Parse(fmt.Sprintf("other_fees[%d].amount", i), fee.Amount)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(fee.Name)
		if name == "" {
			name = fmt.Sprintf("other_fee_%d", i+1)
		}
		appendFee(name, amount, fee.Taxable)
	}

	return fees, nil
}

func assembleFees(fees []assessedFee) []calculationdomain.AssessedFee {
	out := make([]calculationdomain.AssessedFee, 0, len(fees))
	for _, fee := range fees {
		out = append(out, calculationdomain.AssessedFee{
			Name:    fee.name,
			Amount:  money.ToMoneyString(fee.amount),
			Taxable: fee.taxable,
			Tax:     money.ToMoneyString(fee.tax),
		})
	}
	return out
}

func (s *Service) buildAuditEntry(
	req calculationdomain.SalesTaxRequest,
	computed *computedSalesTax,
	calcType audittraildomain.CalculationType,
	dealID *string,
	inputs, outputs datatypes.JSONMap,
) *audittraildomain.TaxAuditLog {
	entry := &audittraildomain.TaxAuditLog{
		ID:               s.genID.Generate(),
		CalculationID:    computed.result.CalculationID,
		DealID:           dealID,
		DealershipID:     strings.TrimSpace(req.DealershipID),
		CalculatedBy:     computed.result.CalculatedBy,
		CalculatedAt:     computed.result.CalculatedAt,
		Type:             calcType,
		Inputs:           inputs,
		Outputs:          outputs,
		StateCode:        computed.rules.StateCode,
		EngineVersion:    s.cfg.EngineVersion,
		ValidationPassed: computed.result.Validation.Passed,
		ValidationErrors: computed.result.Validation.Violations,
		CreatedAt:        s.clock.Now(),
	}
	if computed.jurisdiction != nil {
		id := computed.jurisdiction.ID
		entry.JurisdictionID = &id
	}
	if computed.rules != nil {
		version := computed.rules.Version
		entry.StateRulesVersion = &version
	}
	if entry.CalculatedBy == "" {
		entry.CalculatedBy = "system"
	}
	return entry
}

func (s *Service) observe(computed *computedSalesTax, calcType audittraildomain.CalculationType, started time.Time) {
	state := computed.rules.StateCode
	s.obsMetrics.RecordCalculation(state, string(calcType))
	s.obsMetrics.ObserveDuration(string(calcType), time.Since(started))
	if !computed.result.Validation.Passed {
		s.obsMetrics.RecordValidationFailure(state)
		s.log.Warn("tax calculation validation failed",
			zap.String("calculation_id", computed.result.CalculationID),
			zap.String("state", state),
			zap.Strings("violations", computed.result.Validation.Violations),
		)
	}
}

func (s *Service) recordError(err error) {
	s.obsMetrics.RecordCalculationError(errorKind(err))
}

func errorKind(err error) string {
	var parseErr *money.ParseError
	switch {
	case errors.Is(err, jurisdictiondomain.ErrJurisdictionNotFound):
		return "jurisdiction_not_found"
	case errors.Is(err, stateruledomain.ErrUnsupportedState):
		return "unsupported_state"
	case errors.As(err, &parseErr):
		return "invalid_input"
	default:
		return "internal"
	}
}

// toJSONMap snapshots a request or result into the audit entry's JSON
// column. Money stays as decimal-string literals through this round trip.
func toJSONMap(v any) datatypes.JSONMap {
	return audittraildomain.Snapshot(v)
}
