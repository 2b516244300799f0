package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Jurisdiction is a time-bounded rate record for a postal code. For any
// postal code and instant, at most one record is active. Records are never
// mutated by the calculation path; the administrative load path end-dates a
// superseded record when it inserts a replacement.
type Jurisdiction struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	PostalCode      string       `gorm:"column:postal_code;type:text;not null;index:idx_tax_jurisdictions_postal" json:"postal_code"`
	State           string       `gorm:"type:text;not null;index" json:"state"`
	County          *string      `gorm:"type:text" json:"county,omitempty"`
	City            *string      `gorm:"type:text" json:"city,omitempty"`
	SpecialDistrict *string      `gorm:"column:special_district;type:text" json:"special_district,omitempty"`

	StateRate           decimal.Decimal `gorm:"column:state_rate;type:numeric(8,6);not null" json:"state_rate"`
	CountyRate          decimal.Decimal `gorm:"column:county_rate;type:numeric(8,6);not null" json:"county_rate"`
	CityRate            decimal.Decimal `gorm:"column:city_rate;type:numeric(8,6);not null" json:"city_rate"`
	SpecialDistrictRate decimal.Decimal `gorm:"column:special_district_rate;type:numeric(8,6);not null" json:"special_district_rate"`

	EffectiveDate time.Time  `gorm:"column:effective_date;not null;index" json:"effective_date"`
	EndDate       *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	Source        string     `gorm:"type:text;not null" json:"source"`
	LastVerified  *time.Time `gorm:"column:last_verified" json:"last_verified,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Jurisdiction) TableName() string { return "tax_jurisdictions" }

// ActiveAt reports whether the record's effective window contains asOf.
func (j Jurisdiction) ActiveAt(asOf time.Time) bool {
	if asOf.Before(j.EffectiveDate) {
		return false
	}
	return j.EndDate == nil || asOf.Before(*j.EndDate)
}

// TaxRateBreakdown is the stacked rate for a resolved jurisdiction.
// TotalRate is always the exact sum of the four components.
type TaxRateBreakdown struct {
	StateRate           decimal.Decimal `json:"state_rate"`
	CountyRate          decimal.Decimal `json:"county_rate"`
	CityRate            decimal.Decimal `json:"city_rate"`
	SpecialDistrictRate decimal.Decimal `json:"special_district_rate"`
	TotalRate           decimal.Decimal `json:"total_rate"`
	EffectiveDate       time.Time       `json:"effective_date"`
}

// LoadRequest carries an administrative jurisdiction load. Rates arrive as
// canonical decimal-string literals.
type LoadRequest struct {
	PostalCode          string     `json:"postal_code"`
	State               string     `json:"state"`
	County              *string    `json:"county,omitempty"`
	City                *string    `json:"city,omitempty"`
	SpecialDistrict     *string    `json:"special_district,omitempty"`
	StateRate           string     `json:"state_rate"`
	CountyRate          string     `json:"county_rate"`
	CityRate            string     `json:"city_rate"`
	SpecialDistrictRate string     `json:"special_district_rate"`
	EffectiveDate       time.Time  `json:"effective_date"`
	Source              string     `json:"source"`
	LastVerified        *time.Time `json:"last_verified,omitempty"`
	LoadedBy            string     `json:"loaded_by"`
}
