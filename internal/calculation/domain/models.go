package domain

import (
	"time"

	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
)

// RateSource labels where a result's rate came from. The state-average
// source only ever appears on the explicitly requested estimate path.
const (
	RateSourceJurisdiction = "jurisdiction"
	RateSourceStateAverage = "state_average"
)

// SalesTaxRequest is a vehicle sales-tax calculation request. All money
// fields are canonical decimal-string literals; optional fields are empty
// strings when absent.
type SalesTaxRequest struct {
	DealershipID string `json:"dealership_id"`
	VehiclePrice string `json:"vehicle_price"`

	PostalCode string  `json:"postal_code"`
	State      string  `json:"state"`
	County     *string `json:"county,omitempty"`
	City       *string `json:"city,omitempty"`

	TradeInValue       string `json:"trade_in_value,omitempty"`
	RebateManufacturer string `json:"rebate_manufacturer,omitempty"`
	RebateDealer       string `json:"rebate_dealer,omitempty"`

	DealID          *string    `json:"deal_id,omitempty"`
	UserID          string     `json:"user_id,omitempty"`
	CalculationDate *time.Time `json:"calculation_date,omitempty"`
}

// FeeItem is an itemized deal fee evaluated against its own taxable flag.
type FeeItem struct {
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	Taxable bool   `json:"taxable"`
}

// DealTaxRequest extends a SalesTaxRequest with the full fee side of a deal.
type DealTaxRequest struct {
	SalesTaxRequest

	DocFee           string    `json:"doc_fee,omitempty"`
	RegistrationFee  string    `json:"registration_fee,omitempty"`
	ServiceContracts string    `json:"service_contracts,omitempty"`
	Gap              string    `json:"gap,omitempty"`
	Accessories      []string  `json:"accessories,omitempty"`
	OtherFees        []FeeItem `json:"other_fees,omitempty"`
}

// ValidationOutcome is the post-calculation sanity check result. A failed
// outcome does not block the result; it is recorded in the audit entry and
// surfaced to the caller as a warning.
type ValidationOutcome struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// ResolvedJurisdiction is the jurisdiction summary embedded in results so
// every total is traceable to a specific data vintage.
type ResolvedJurisdiction struct {
	ID              string  `json:"id"`
	PostalCode      string  `json:"postal_code"`
	State           string  `json:"state"`
	County          *string `json:"county,omitempty"`
	City            *string `json:"city,omitempty"`
	SpecialDistrict *string `json:"special_district,omitempty"`
}

// SalesTaxResult is a completed sales-tax calculation. The four component
// taxes always sum exactly to TotalTax.
type SalesTaxResult struct {
	CalculationID string `json:"calculation_id"`

	TotalTax           string `json:"total_tax"`
	StateTax           string `json:"state_tax"`
	CountyTax          string `json:"county_tax"`
	CityTax            string `json:"city_tax"`
	SpecialDistrictTax string `json:"special_district_tax"`

	Rates jurisdictiondomain.TaxRateBreakdown `json:"rates"`

	TaxableAmount        string `json:"taxable_amount"`
	TradeInCreditApplied string `json:"trade_in_credit_applied"`

	Jurisdiction *ResolvedJurisdiction `json:"jurisdiction,omitempty"`
	RateSource   string                `json:"rate_source"`

	CalculatedAt time.Time          `json:"calculated_at"`
	CalculatedBy string             `json:"calculated_by,omitempty"`
	Validation   *ValidationOutcome `json:"validation,omitempty"`
}

// AssessedFee is a deal fee after taxability evaluation.
type AssessedFee struct {
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	Taxable bool   `json:"taxable"`
	Tax     string `json:"tax"`
}

// CompleteTaxBreakdown is the full deal-level result: vehicle sales tax
// plus every fee with its taxability applied, rolled-up totals, and the
// audit reference covering the whole deal.
type CompleteTaxBreakdown struct {
	SalesTax SalesTaxResult `json:"sales_tax"`

	DocFee          string `json:"doc_fee"`
	DocFeeTax       string `json:"doc_fee_tax"`
	TitleFee        string `json:"title_fee"`
	RegistrationFee string `json:"registration_fee"`

	Fees []AssessedFee `json:"fees,omitempty"`

	TotalTaxable      string `json:"total_taxable"`
	TotalNonTaxable   string `json:"total_non_taxable"`
	TotalTaxes        string `json:"total_taxes"`
	TotalTaxesAndFees string `json:"total_taxes_and_fees"`

	AuditRef   string            `json:"audit_ref"`
	Validation ValidationOutcome `json:"validation"`
}
