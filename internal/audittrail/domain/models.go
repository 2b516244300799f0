package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dealerdesk/taxengine/pkg/db/pagination"
	"gorm.io/datatypes"
)

// CalculationType discriminates audit entries by the operation that
// produced them.
type CalculationType string

const (
	CalculationTypeSalesTax         CalculationType = "sales_tax"
	CalculationTypeDealTaxes        CalculationType = "deal_taxes"
	CalculationTypeSalesTaxEstimate CalculationType = "sales_tax_estimate"

	// Reference-data changes are audited too, so any historical total can
	// be traced to the exact load that produced its rates and rules.
	CalculationTypeJurisdictionLoaded  CalculationType = "jurisdiction.loaded"
	CalculationTypeStateRulesVersioned CalculationType = "state_rules.versioned"
)

// Snapshot marshals v into the JSONMap shape used by the inputs and
// outputs columns. Money fields keep their decimal-string form.
func Snapshot(v any) datatypes.JSONMap {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSONMap{}
	}
	out := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return datatypes.JSONMap{}
	}
	return out
}

// TaxAuditLog is one immutable calculation record: the full input and
// output snapshots plus the exact rule and rate versions applied, written
// once per completed calculation. It is the sole mechanism for reproducing
// a historical total; no update or delete path exists anywhere.
type TaxAuditLog struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"-"`
	CalculationID string       `gorm:"column:calculation_id;type:text;not null;uniqueIndex:ux_tax_audit_logs_calculation" json:"calculation_id"`

	DealID       *string `gorm:"column:deal_id;type:text;index" json:"deal_id,omitempty"`
	DealershipID string  `gorm:"column:dealership_id;type:text;not null;index" json:"dealership_id"`

	CalculatedBy string          `gorm:"column:calculated_by;type:text;not null" json:"calculated_by"`
	CalculatedAt time.Time       `gorm:"column:calculated_at;not null;index" json:"calculated_at"`
	Type         CalculationType `gorm:"column:calculation_type;type:text;not null" json:"calculation_type"`

	Inputs  datatypes.JSONMap `gorm:"column:inputs;not null" json:"inputs"`
	Outputs datatypes.JSONMap `gorm:"column:outputs;not null" json:"outputs"`

	JurisdictionID    *snowflake.ID `gorm:"column:jurisdiction_id" json:"jurisdiction_id,omitempty"`
	StateCode         string        `gorm:"column:state_code;type:text;not null" json:"state_code"`
	StateRulesVersion *int          `gorm:"column:state_rules_version" json:"state_rules_version,omitempty"`
	EngineVersion     string        `gorm:"column:engine_version;type:text;not null" json:"engine_version"`

	ValidationPassed bool                         `gorm:"column:validation_passed;not null" json:"validation_passed"`
	ValidationErrors datatypes.JSONSlice[string]  `gorm:"column:validation_errors" json:"validation_errors"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (TaxAuditLog) TableName() string { return "tax_audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	DealershipID string
	Type         CalculationType
	StartAt      *time.Time
	EndAt        *time.Time
	Cursor       *AuditCursor
	Limit        int
}

type ListRequest struct {
	pagination.Pagination
	DealershipID string
	Type         CalculationType
	StartAt      *time.Time
	EndAt        *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []TaxAuditLog `json:"audit_logs"`
}
