package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	audittrailrepo "github.com/dealerdesk/taxengine/internal/audittrail/repository"
	audittrailservice "github.com/dealerdesk/taxengine/internal/audittrail/service"
	calculationdomain "github.com/dealerdesk/taxengine/internal/calculation/domain"
	"github.com/dealerdesk/taxengine/internal/clock"
	"github.com/dealerdesk/taxengine/internal/config"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	jurisdictionrepo "github.com/dealerdesk/taxengine/internal/jurisdiction/repository"
	jurisdictionservice "github.com/dealerdesk/taxengine/internal/jurisdiction/service"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	staterulerepo "github.com/dealerdesk/taxengine/internal/staterule/repository"
	stateruleservice "github.com/dealerdesk/taxengine/internal/staterule/service"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testHarness struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	service calculationdomain.Service
	jurSvc  jurisdictiondomain.Service
	ruleSvc stateruledomain.Service
	audits  audittraildomain.Service
}

func newTestHarness(t *testing.T) *testHarness {
	return newTestHarnessWithEngine(t, config.DefaultEngineConfig())
}

func newTestHarnessWithEngine(t *testing.T, engineCfg config.EngineConfig) *testHarness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&jurisdictiondomain.Jurisdiction{},
		&stateruledomain.StateRules{},
		&audittraildomain.TaxAuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{EngineVersion: "test"}

	holder, err := config.NewStaticEngineConfigHolder(engineCfg)
	require.NoError(t, err)

	auditSvc := audittrailservice.NewService(audittrailservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  audittrailrepo.Provide(),
	})
	jurSvc := jurisdictionservice.NewService(jurisdictionservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Cfg:    cfg,
		Repo:   jurisdictionrepo.Provide(),
		Engine: holder,
		Audit:  auditSvc,
	})
	ruleSvc := stateruleservice.NewService(stateruleservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Cfg:   cfg,
		Repo:  staterulerepo.Provide(),
		Audit: auditSvc,
	})

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Cfg:      cfg,
		Engine:   holder,
		JurSvc:   jurSvc,
		RuleSvc:  ruleSvc,
		AuditSvc: auditSvc,
	})

	return &testHarness{
		db:      db,
		clock:   fake,
		service: svc,
		jurSvc:  jurSvc,
		ruleSvc: ruleSvc,
		audits:  auditSvc,
	}
}

func (h *testHarness) seedJurisdiction(t *testing.T, postalCode, state string, stateRate, countyRate, cityRate, districtRate string) {
	t.Helper()
	_, err := h.jurSvc.Load(context.Background(), jurisdictiondomain.LoadRequest{
		PostalCode:          postalCode,
		State:               state,
		StateRate:           stateRate,
		CountyRate:          countyRate,
		CityRate:            cityRate,
		SpecialDistrictRate: districtRate,
		EffectiveDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:              "test",
		LoadedBy:            "tester",
	})
	require.NoError(t, err)
}

func (h *testHarness) seedRules(t *testing.T, req stateruledomain.LoadRequest) {
	t.Helper()
	if req.EffectiveDate.IsZero() {
		req.EffectiveDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if req.TitleFee == "" {
		req.TitleFee = "15.00"
	}
	if req.LoadedBy == "" {
		req.LoadedBy = "tester"
	}
	_, err := h.ruleSvc.LoadVersion(context.Background(), req)
	require.NoError(t, err)
}

func TestCalculateSalesTax_TradeInCredit(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "75001", "TX", "0.0625", "0.0050", "0.0060", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "TX",
		AllowsTradeInCredit: true,
		DocFeeTaxable:       true,
	})

	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "35000.00",
		TradeInValue: "10000.00",
		PostalCode:   "75001",
		State:        "TX",
		UserID:       "user_01",
	})
	require.NoError(t, err)

	// (35000 - 10000) * 0.0735 = 1837.50
	require.Equal(t, "1837.50", result.TotalTax)
	require.Equal(t, "25000.00", result.TaxableAmount)
	require.Equal(t, "10000.00", result.TradeInCreditApplied)
	require.Equal(t, calculationdomain.RateSourceJurisdiction, result.RateSource)
	require.NotNil(t, result.Jurisdiction)
	require.Equal(t, "75001", result.Jurisdiction.PostalCode)
	require.True(t, result.Validation.Passed)
}

func TestCalculateSalesTax_TradeInCreditCap(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "48201", "MI", "0.0600", "0.0000", "0.0000", "0.0000")
	cap := "2000.00"
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "MI",
		AllowsTradeInCredit: true,
		TradeInCreditCap:    cap,
	})

	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "30000.00",
		TradeInValue: "12000.00",
		PostalCode:   "48201",
		State:        "MI",
	})
	require.NoError(t, err)

	require.Equal(t, "2000.00", result.TradeInCreditApplied)
	require.Equal(t, "28000.00", result.TaxableAmount)
	require.Equal(t, "1680.00", result.TotalTax)
}

func TestCalculateSalesTax_NoTradeInCreditState(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "90001", "CA", "0.0725", "0.0100", "0.0000", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "CA",
		AllowsTradeInCredit: false,
	})

	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "20000.00",
		TradeInValue: "5000.00",
		PostalCode:   "90001",
		State:        "CA",
	})
	require.NoError(t, err)

	require.Equal(t, "0.00", result.TradeInCreditApplied)
	require.Equal(t, "20000.00", result.TaxableAmount)
}

func TestCalculateSalesTax_ComponentsSumToTotal(t *testing.T) {
	h := newTestHarness(t)
	// Rates chosen so naive per-component rounding drifts from the rounded total.
	h.seedJurisdiction(t, "80014", "CO", "0.0290", "0.0025", "0.0331", "0.0110")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "CO",
		AllowsTradeInCredit: true,
	})

	for _, price := range []string{"17777.77", "23999.99", "31245.63", "999.99"} {
		result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
			DealershipID: "dlr_01",
			VehiclePrice: price,
			PostalCode:   "80014",
			State:        "CO",
		})
		require.NoError(t, err)

		sum := decimal.RequireFromString(result.StateTax).
			Add(decimal.RequireFromString(result.CountyTax)).
			Add(decimal.RequireFromString(result.CityTax)).
			Add(decimal.RequireFromString(result.SpecialDistrictTax))
		require.Equal(t, result.TotalTax, sum.StringFixed(2), "price %s", price)
	}
}

func TestCalculateSalesTax_Deterministic(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "75001", "TX", "0.0625", "0.0050", "0.0060", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{StateCode: "TX", AllowsTradeInCredit: true})

	req := calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "28456.78",
		TradeInValue: "3120.55",
		PostalCode:   "75001",
		State:        "TX",
	}
	first, err := h.service.CalculateSalesTax(context.Background(), req)
	require.NoError(t, err)
	second, err := h.service.CalculateSalesTax(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first.TotalTax, second.TotalTax)
	require.Equal(t, first.StateTax, second.StateTax)
	require.Equal(t, first.TaxableAmount, second.TaxableAmount)
	require.NotEqual(t, first.CalculationID, second.CalculationID)
}

func TestCalculateSalesTax_MissingJurisdictionWritesNoAudit(t *testing.T) {
	h := newTestHarness(t)
	h.seedRules(t, stateruledomain.LoadRequest{StateCode: "TX", AllowsTradeInCredit: true})

	_, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "35000.00",
		PostalCode:   "00000",
		State:        "TX",
	})
	require.ErrorIs(t, err, jurisdictiondomain.ErrJurisdictionNotFound)

	var count int64
	require.NoError(t, h.db.Model(&audittraildomain.TaxAuditLog{}).
		Where("calculation_type = ?", audittraildomain.CalculationTypeSalesTax).
		Count(&count).Error)
	require.Zero(t, count)
}

func TestCalculateSalesTax_WritesAuditEntry(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "75001", "TX", "0.0625", "0.0050", "0.0060", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{StateCode: "TX", AllowsTradeInCredit: true})

	dealID := "deal_42"
	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "35000.00",
		TradeInValue: "10000.00",
		PostalCode:   "75001",
		State:        "TX",
		DealID:       &dealID,
		UserID:       "user_01",
	})
	require.NoError(t, err)

	entry, err := h.audits.GetByCalculationID(context.Background(), result.CalculationID)
	require.NoError(t, err)
	require.Equal(t, "dlr_01", entry.DealershipID)
	require.Equal(t, audittraildomain.CalculationTypeSalesTax, entry.Type)
	require.Equal(t, "TX", entry.StateCode)
	require.Equal(t, "test", entry.EngineVersion)
	require.NotNil(t, entry.JurisdictionID)
	require.NotNil(t, entry.StateRulesVersion)
	require.Equal(t, 1, *entry.StateRulesVersion)
	require.True(t, entry.ValidationPassed)
	require.Equal(t, "35000.00", entry.Inputs["vehicle_price"])
	require.Equal(t, "1837.50", entry.Outputs["total_tax"])
}

func TestCalculateSalesTax_InvalidPriceRejected(t *testing.T) {
	h := newTestHarness(t)

	for _, price := range []string{"", "-100.00", "abc", "1,000.00"} {
		_, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
			DealershipID: "dlr_01",
			VehiclePrice: price,
			PostalCode:   "75001",
			State:        "TX",
		})
		require.Error(t, err, "price %q", price)
	}

	var count int64
	require.NoError(t, h.db.Model(&audittraildomain.TaxAuditLog{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCalculateSalesTax_HistoricalVersionApplied(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "30301", "GA", "0.0400", "0.0300", "0.0000", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "GA",
		EffectiveDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		AllowsTradeInCredit: false,
	})
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "GA",
		EffectiveDate:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		AllowsTradeInCredit: true,
	})

	historic := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID:    "dlr_01",
		VehiclePrice:    "20000.00",
		TradeInValue:    "5000.00",
		PostalCode:      "30301",
		State:           "GA",
		CalculationDate: &historic,
	})
	require.NoError(t, err)
	require.Equal(t, "0.00", result.TradeInCreditApplied, "version 1 disallowed trade-in credit")

	current, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "20000.00",
		TradeInValue: "5000.00",
		PostalCode:   "30301",
		State:        "GA",
	})
	require.NoError(t, err)
	require.Equal(t, "5000.00", current.TradeInCreditApplied)
}

func TestCalculateDealTaxes_DocFeeCap(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "90001", "CA", "0.0725", "0.0000", "0.0000", "0.0000")
	docFeeMax := "85.00"
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "CA",
		AllowsTradeInCredit: false,
		DocFeeCapped:        true,
		DocFeeMax:           docFeeMax,
		DocFeeTaxable:       true,
		TitleFee:            "23.00",
	})

	breakdown, err := h.service.CalculateDealTaxes(context.Background(), calculationdomain.DealTaxRequest{
		SalesTaxRequest: calculationdomain.SalesTaxRequest{
			DealershipID: "dlr_01",
			VehiclePrice: "20000.00",
			PostalCode:   "90001",
			State:        "CA",
		},
		DocFee: "300.00",
	})
	require.NoError(t, err)

	require.Equal(t, "85.00", breakdown.DocFee)
	// 85.00 * 0.0725 = 6.16 (rounded half-up)
	require.Equal(t, "6.16", breakdown.DocFeeTax)
	require.Equal(t, "23.00", breakdown.TitleFee)
	require.Equal(t, breakdown.SalesTax.CalculationID, breakdown.AuditRef)
}

func TestCalculateDealTaxes_FeeTaxability(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "75001", "TX", "0.0625", "0.0000", "0.0000", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:               "TX",
		AllowsTradeInCredit:     true,
		ServiceContractsTaxable: true,
		GapTaxable:              false,
		AccessoriesTaxable:      true,
	})

	breakdown, err := h.service.CalculateDealTaxes(context.Background(), calculationdomain.DealTaxRequest{
		SalesTaxRequest: calculationdomain.SalesTaxRequest{
			DealershipID: "dlr_01",
			VehiclePrice: "30000.00",
			PostalCode:   "75001",
			State:        "TX",
		},
		ServiceContracts: "2000.00",
		Gap:              "800.00",
		Accessories:      []string{"500.00"},
		OtherFees: []calculationdomain.FeeItem{
			{Name: "nitrogen", Amount: "99.00", Taxable: false},
		},
	})
	require.NoError(t, err)

	byName := map[string]calculationdomain.AssessedFee{}
	for _, fee := range breakdown.Fees {
		byName[fee.Name] = fee
	}
	require.Equal(t, "125.00", byName["service_contracts"].Tax)
	require.Equal(t, "0.00", byName["gap"].Tax)
	require.Equal(t, "31.25", byName["accessory_1"].Tax)
	require.Equal(t, "0.00", byName["nitrogen"].Tax)

	// One consolidated audit entry for the whole deal.
	var count int64
	require.NoError(t, h.db.Model(&audittraildomain.TaxAuditLog{}).
		Where("calculation_type = ?", audittraildomain.CalculationTypeDealTaxes).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCalculateSalesTax_StateOnlyScheme(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "30301", "GA", "0.0700", "0.0300", "0.0100", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "GA",
		AllowsTradeInCredit: true,
		SpecialScheme:       stateruledomain.SchemeTitleAdValorem,
	})

	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "10000.00",
		PostalCode:   "30301",
		State:        "GA",
	})
	require.NoError(t, err)

	// Title ad valorem taxes at the state rate only.
	require.Equal(t, "700.00", result.TotalTax)
	require.Equal(t, "700.00", result.StateTax)
	require.Equal(t, "0.00", result.CountyTax)
	require.Equal(t, "0.00", result.CityTax)
}

func TestCalculateSalesTax_HighwayUseMaxTaxApplied(t *testing.T) {
	engineCfg := config.DefaultEngineConfig()
	engineCfg.Schemes = map[string]config.SchemeConfig{
		"highway_use": {MaxTax: "2000.00"},
	}
	h := newTestHarnessWithEngine(t, engineCfg)
	h.seedJurisdiction(t, "28202", "NC", "0.0300", "0.0100", "0.0000", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "NC",
		AllowsTradeInCredit: true,
		SpecialScheme:       stateruledomain.SchemeHighwayUse,
	})

	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "100000.00",
		PostalCode:   "28202",
		State:        "NC",
	})
	require.NoError(t, err)

	// Uncapped the tax would be 4000.00; the scheme maximum binds and the
	// components scale proportionally.
	require.Equal(t, "2000.00", result.TotalTax)
	require.Equal(t, "1500.00", result.StateTax)
	require.Equal(t, "500.00", result.CountyTax)

	sum := decimal.RequireFromString(result.StateTax).
		Add(decimal.RequireFromString(result.CountyTax)).
		Add(decimal.RequireFromString(result.CityTax)).
		Add(decimal.RequireFromString(result.SpecialDistrictTax))
	require.Equal(t, result.TotalTax, sum.StringFixed(2))
}

func TestCalculateSalesTax_HighwayUseUncappedByDefault(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "28202", "NC", "0.0300", "0.0000", "0.0000", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:           "NC",
		AllowsTradeInCredit: true,
		SpecialScheme:       stateruledomain.SchemeHighwayUse,
	})

	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "100000.00",
		PostalCode:   "28202",
		State:        "NC",
	})
	require.NoError(t, err)
	require.Equal(t, "3000.00", result.TotalTax)
}

func TestEstimateSalesTax_UsesStateAverage(t *testing.T) {
	h := newTestHarness(t)
	h.seedRules(t, stateruledomain.LoadRequest{StateCode: "TX", AllowsTradeInCredit: true})

	result, err := h.service.EstimateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "20000.00",
		State:        "TX",
	})
	require.NoError(t, err)

	require.Equal(t, calculationdomain.RateSourceStateAverage, result.RateSource)
	require.Nil(t, result.Jurisdiction)
	require.Equal(t, result.TotalTax, result.StateTax)

	entry, err := h.audits.GetByCalculationID(context.Background(), result.CalculationID)
	require.NoError(t, err)
	require.Equal(t, audittraildomain.CalculationTypeSalesTaxEstimate, entry.Type)
}

func TestEstimateSalesTax_UnknownStateAverage(t *testing.T) {
	h := newTestHarness(t)
	h.seedRules(t, stateruledomain.LoadRequest{StateCode: "AK", AllowsTradeInCredit: true})

	_, err := h.service.EstimateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "20000.00",
		State:        "AK",
	})
	require.ErrorIs(t, err, jurisdictiondomain.ErrNoStateAverageRate)
}

func TestCalculateSalesTax_UnsupportedState(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "97035", "OR", "0.0000", "0.0000", "0.0000", "0.0000")

	_, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "20000.00",
		PostalCode:   "97035",
		State:        "OR",
	})
	require.ErrorIs(t, err, stateruledomain.ErrUnsupportedState)
}

func TestCalculateSalesTax_RebateHandling(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "75001", "TX", "0.0625", "0.0000", "0.0000", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{
		StateCode:                 "TX",
		AllowsTradeInCredit:       true,
		ManufacturerRebateTaxable: false,
		DealerRebateTaxable:       true,
	})

	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID:       "dlr_01",
		VehiclePrice:       "30000.00",
		RebateManufacturer: "2000.00",
		RebateDealer:       "1000.00",
		PostalCode:         "75001",
		State:              "TX",
	})
	require.NoError(t, err)

	// Manufacturer rebate reduces the base; dealer rebate does not.
	require.Equal(t, "28000.00", result.TaxableAmount)
	require.Equal(t, "1750.00", result.TotalTax)
}

func TestCalculateSalesTax_BaseClampedAtZero(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "75001", "TX", "0.0625", "0.0000", "0.0000", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{StateCode: "TX", AllowsTradeInCredit: true})

	result, err := h.service.CalculateSalesTax(context.Background(), calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "5000.00",
		TradeInValue: "8000.00",
		PostalCode:   "75001",
		State:        "TX",
	})
	require.NoError(t, err)

	require.Equal(t, "0.00", result.TaxableAmount)
	require.Equal(t, "0.00", result.TotalTax)
}

func TestAuditTaxCalculation_DealHistoryChronological(t *testing.T) {
	h := newTestHarness(t)
	h.seedJurisdiction(t, "75001", "TX", "0.0625", "0.0000", "0.0000", "0.0000")
	h.seedRules(t, stateruledomain.LoadRequest{StateCode: "TX", AllowsTradeInCredit: true})

	dealID := "deal_7"
	req := calculationdomain.SalesTaxRequest{
		DealershipID: "dlr_01",
		VehiclePrice: "30000.00",
		PostalCode:   "75001",
		State:        "TX",
		DealID:       &dealID,
	}

	first, err := h.service.CalculateSalesTax(context.Background(), req)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	req.TradeInValue = "5000.00"
	second, err := h.service.CalculateSalesTax(context.Background(), req)
	require.NoError(t, err)

	history, err := h.service.AuditTaxCalculation(context.Background(), dealID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, first.CalculationID, history[0].CalculationID)
	require.Equal(t, second.CalculationID, history[1].CalculationID)
}

func TestCalculateTradeInCredit_PercentThenCap(t *testing.T) {
	h := newTestHarness(t)
	cap := decimal.RequireFromString("2500.00")
	pct := decimal.RequireFromString("0.50")
	rules := &stateruledomain.StateRules{
		AllowsTradeInCredit:  true,
		TradeInCreditCap:     &cap,
		TradeInCreditPercent: &pct,
	}

	credit, err := h.service.CalculateTradeInCredit("10000.00", rules)
	require.NoError(t, err)
	// 50% of 10000 is 5000, then capped at 2500.
	require.Equal(t, "2500.00", credit)

	credit, err = h.service.CalculateTradeInCredit("4000.00", rules)
	require.NoError(t, err)
	require.Equal(t, "2000.00", credit)
}
