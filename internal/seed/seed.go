package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var seedEffectiveDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type statePolicy struct {
	state                string
	allowsTradeInCredit  bool
	tradeInCreditCap     string
	tradeInCreditPercent string
	docFeeCapped         bool
	docFeeMax            string
	docFeeTaxable        bool
	titleFee             string
	serviceContractsTax  bool
	gapTaxable           bool
	accessoriesTaxable   bool
	mfrRebateTaxable     bool
	dealerRebateTaxable  bool
	scheme               stateruledomain.SpecialScheme
}

// statePolicies is the bootstrap rule set: one version-1 row per state,
// written only when the state has no rules at all. Administrative loads
// take over from there.
var statePolicies = []statePolicy{
	{state: "AZ", allowsTradeInCredit: true, docFeeTaxable: true, titleFee: "4.00", accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "CA", allowsTradeInCredit: false, docFeeCapped: true, docFeeMax: "85.00", docFeeTaxable: true, titleFee: "23.00", serviceContractsTax: false, accessoriesTaxable: true, mfrRebateTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "CO", allowsTradeInCredit: true, docFeeTaxable: false, titleFee: "7.20", accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "FL", allowsTradeInCredit: true, docFeeTaxable: true, titleFee: "75.25", serviceContractsTax: true, accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "GA", allowsTradeInCredit: true, docFeeTaxable: false, titleFee: "18.00", accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeTitleAdValorem},
	{state: "IL", allowsTradeInCredit: true, tradeInCreditCap: "10000.00", docFeeCapped: true, docFeeMax: "347.26", docFeeTaxable: true, titleFee: "165.00", accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "MI", allowsTradeInCredit: true, tradeInCreditCap: "10000.00", docFeeCapped: true, docFeeMax: "260.00", docFeeTaxable: true, titleFee: "15.00", accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "NC", allowsTradeInCredit: true, docFeeTaxable: false, titleFee: "56.00", accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeHighwayUse},
	{state: "NY", allowsTradeInCredit: true, docFeeCapped: true, docFeeMax: "175.00", docFeeTaxable: false, titleFee: "50.00", serviceContractsTax: true, accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "OH", allowsTradeInCredit: true, docFeeCapped: true, docFeeMax: "250.00", docFeeTaxable: true, titleFee: "15.00", serviceContractsTax: true, accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "OR", allowsTradeInCredit: true, docFeeCapped: true, docFeeMax: "250.00", docFeeTaxable: false, titleFee: "101.00", scheme: stateruledomain.SchemePrivilegeTax},
	{state: "PA", allowsTradeInCredit: true, docFeeCapped: true, docFeeMax: "449.00", docFeeTaxable: false, titleFee: "58.00", accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "TX", allowsTradeInCredit: true, docFeeCapped: true, docFeeMax: "225.00", docFeeTaxable: true, titleFee: "33.00", serviceContractsTax: true, accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "VA", allowsTradeInCredit: false, docFeeTaxable: true, titleFee: "15.00", accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
	{state: "WA", allowsTradeInCredit: true, docFeeCapped: true, docFeeMax: "200.00", docFeeTaxable: true, titleFee: "15.00", serviceContractsTax: true, accessoriesTaxable: true, dealerRebateTaxable: true, scheme: stateruledomain.SchemeStandard},
}

// EnsureStateRules writes the bootstrap rule version for every state that
// has none yet. Existing rules are never touched.
func EnsureStateRules(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, policy := range statePolicies {
			if err := ensureStateRulesTx(tx, node, policy); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureStateRulesTx(tx *gorm.DB, node *snowflake.Node, policy statePolicy) error {
	var count int64
	if err := tx.Model(&stateruledomain.StateRules{}).
		Where("state_code = ?", policy.state).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	titleFee, err := decimal.NewFromString(policy.titleFee)
	if err != nil {
		return err
	}

	rules := &stateruledomain.StateRules{
		ID:                        node.Generate(),
		StateCode:                 policy.state,
		Version:                   1,
		EffectiveDate:             seedEffectiveDate,
		AllowsTradeInCredit:       policy.allowsTradeInCredit,
		DocFeeCapped:              policy.docFeeCapped,
		DocFeeTaxable:             policy.docFeeTaxable,
		TitleFee:                  titleFee,
		ServiceContractsTaxable:   policy.serviceContractsTax,
		GapTaxable:                policy.gapTaxable,
		AccessoriesTaxable:        policy.accessoriesTaxable,
		ManufacturerRebateTaxable: policy.mfrRebateTaxable,
		DealerRebateTaxable:       policy.dealerRebateTaxable,
		SpecialScheme:             policy.scheme,
		CreatedAt:                 time.Now().UTC(),
	}
	if rules.TradeInCreditCap, err = optionalDecimal(policy.tradeInCreditCap); err != nil {
		return err
	}
	if rules.TradeInCreditPercent, err = optionalDecimal(policy.tradeInCreditPercent); err != nil {
		return err
	}
	if rules.DocFeeMax, err = optionalDecimal(policy.docFeeMax); err != nil {
		return err
	}

	return tx.Create(rules).Error
}

type sampleJurisdiction struct {
	postalCode   string
	state        string
	county       string
	city         string
	stateRate    string
	countyRate   string
	cityRate     string
	districtRate string
}

var sampleJurisdictions = []sampleJurisdiction{
	{postalCode: "75001", state: "TX", county: "Dallas", city: "Addison", stateRate: "0.0625", countyRate: "0.0000", cityRate: "0.0100", districtRate: "0.0100"},
	{postalCode: "90001", state: "CA", county: "Los Angeles", city: "Los Angeles", stateRate: "0.0725", countyRate: "0.0100", cityRate: "0.0000", districtRate: "0.0125"},
	{postalCode: "30301", state: "GA", county: "Fulton", city: "Atlanta", stateRate: "0.0700", countyRate: "0.0000", cityRate: "0.0000", districtRate: "0.0000"},
	{postalCode: "48201", state: "MI", county: "Wayne", city: "Detroit", stateRate: "0.0600", countyRate: "0.0000", cityRate: "0.0000", districtRate: "0.0000"},
	{postalCode: "60601", state: "IL", county: "Cook", city: "Chicago", stateRate: "0.0625", countyRate: "0.0175", cityRate: "0.0125", districtRate: "0.0100"},
	{postalCode: "33101", state: "FL", county: "Miami-Dade", city: "Miami", stateRate: "0.0600", countyRate: "0.0100", cityRate: "0.0000", districtRate: "0.0000"},
	{postalCode: "28202", state: "NC", county: "Mecklenburg", city: "Charlotte", stateRate: "0.0300", countyRate: "0.0000", cityRate: "0.0000", districtRate: "0.0000"},
	{postalCode: "98101", state: "WA", county: "King", city: "Seattle", stateRate: "0.0650", countyRate: "0.0000", cityRate: "0.0375", districtRate: "0.0000"},
}

// EnsureSampleJurisdictions seeds a small development data set. Production
// deployments load jurisdictions through the admin API instead.
func EnsureSampleJurisdictions(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sample := range sampleJurisdictions {
			if err := ensureJurisdictionTx(tx, node, sample); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureJurisdictionTx(tx *gorm.DB, node *snowflake.Node, sample sampleJurisdiction) error {
	var count int64
	if err := tx.Model(&jurisdictiondomain.Jurisdiction{}).
		Where("postal_code = ?", sample.postalCode).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	stateRate, err := decimal.NewFromString(sample.stateRate)
	if err != nil {
		return err
	}
	countyRate, err := decimal.NewFromString(sample.countyRate)
	if err != nil {
		return err
	}
	cityRate, err := decimal.NewFromString(sample.cityRate)
	if err != nil {
		return err
	}
	districtRate, err := decimal.NewFromString(sample.districtRate)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	county := sample.county
	city := sample.city
	return tx.Create(&jurisdictiondomain.Jurisdiction{
		ID:                  node.Generate(),
		PostalCode:          sample.postalCode,
		State:               sample.state,
		County:              &county,
		City:                &city,
		StateRate:           stateRate,
		CountyRate:          countyRate,
		CityRate:            cityRate,
		SpecialDistrictRate: districtRate,
		EffectiveDate:       seedEffectiveDate,
		Source:              "seed",
		CreatedAt:           now,
		UpdatedAt:           now,
	}).Error
}

func optionalDecimal(value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
