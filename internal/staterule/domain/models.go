package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SpecialScheme tags a state's non-standard tax structure. The orchestrator
// dispatches to a scheme-specific strategy when the formula diverges;
// reporting layers may branch on the tag freely.
type SpecialScheme string

const (
	// SchemeStandard is ordinary stacked ad-valorem sales tax.
	SchemeStandard SpecialScheme = "standard"
	// SchemeTitleAdValorem is a one-time flat title tax at the state rate
	// replacing local sales tax (e.g. Georgia TAVT).
	SchemeTitleAdValorem SpecialScheme = "title_ad_valorem"
	// SchemePrivilegeTax is a one-time vehicle privilege tax at the state rate.
	SchemePrivilegeTax SpecialScheme = "privilege_tax"
	// SchemeHighwayUse is a highway-use tax (e.g. North Carolina); standard
	// arithmetic at the state-level highway-use rate.
	SchemeHighwayUse SpecialScheme = "highway_use"
)

// StateRules is one versioned, time-bounded policy row per state. Rule
// changes create a new version with a fresh effective window; history is
// never rewritten in place.
type StateRules struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	StateCode string       `gorm:"column:state_code;type:text;not null;index:idx_state_tax_rules_state" json:"state_code"`
	Version   int          `gorm:"not null" json:"version"`

	EffectiveDate time.Time  `gorm:"column:effective_date;not null;index" json:"effective_date"`
	EndDate       *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`

	AllowsTradeInCredit  bool             `gorm:"column:allows_trade_in_credit;not null" json:"allows_trade_in_credit"`
	TradeInCreditCap     *decimal.Decimal `gorm:"column:trade_in_credit_cap;type:numeric(12,2)" json:"trade_in_credit_cap,omitempty"`
	TradeInCreditPercent *decimal.Decimal `gorm:"column:trade_in_credit_percent;type:numeric(8,6)" json:"trade_in_credit_percent,omitempty"`

	DocFeeCapped  bool             `gorm:"column:doc_fee_capped;not null" json:"doc_fee_capped"`
	DocFeeMax     *decimal.Decimal `gorm:"column:doc_fee_max;type:numeric(10,2)" json:"doc_fee_max,omitempty"`
	DocFeeTaxable bool             `gorm:"column:doc_fee_taxable;not null" json:"doc_fee_taxable"`

	TitleFee decimal.Decimal `gorm:"column:title_fee;type:numeric(10,2);not null" json:"title_fee"`

	ServiceContractsTaxable bool `gorm:"column:service_contracts_taxable;not null" json:"service_contracts_taxable"`
	GapTaxable              bool `gorm:"column:gap_taxable;not null" json:"gap_taxable"`
	AccessoriesTaxable      bool `gorm:"column:accessories_taxable;not null" json:"accessories_taxable"`

	// Manufacturer rebates are conventionally non-taxable price reductions;
	// dealer rebates conventionally stay in the taxable base. The two flags
	// are independent and must not be collapsed.
	ManufacturerRebateTaxable bool `gorm:"column:manufacturer_rebate_taxable;not null" json:"manufacturer_rebate_taxable"`
	DealerRebateTaxable       bool `gorm:"column:dealer_rebate_taxable;not null" json:"dealer_rebate_taxable"`

	SpecialScheme SpecialScheme `gorm:"column:special_scheme;type:text;not null" json:"special_scheme"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (StateRules) TableName() string { return "state_tax_rules" }

// ActiveAt reports whether the version's effective window contains asOf.
func (r StateRules) ActiveAt(asOf time.Time) bool {
	if asOf.Before(r.EffectiveDate) {
		return false
	}
	return r.EndDate == nil || asOf.Before(*r.EndDate)
}

// LoadRequest carries an administrative state-rule version load. Money
// fields are canonical decimal-string literals; optional fields empty when absent.
type LoadRequest struct {
	StateCode     string    `json:"state_code"`
	EffectiveDate time.Time `json:"effective_date"`

	AllowsTradeInCredit  bool   `json:"allows_trade_in_credit"`
	TradeInCreditCap     string `json:"trade_in_credit_cap,omitempty"`
	TradeInCreditPercent string `json:"trade_in_credit_percent,omitempty"`

	DocFeeCapped  bool   `json:"doc_fee_capped"`
	DocFeeMax     string `json:"doc_fee_max,omitempty"`
	DocFeeTaxable bool   `json:"doc_fee_taxable"`

	TitleFee string `json:"title_fee"`

	ServiceContractsTaxable bool `json:"service_contracts_taxable"`
	GapTaxable              bool `json:"gap_taxable"`
	AccessoriesTaxable      bool `json:"accessories_taxable"`

	ManufacturerRebateTaxable bool `json:"manufacturer_rebate_taxable"`
	DealerRebateTaxable       bool `json:"dealer_rebate_taxable"`

	SpecialScheme SpecialScheme `json:"special_scheme"`
	LoadedBy      string        `json:"loaded_by"`
}
