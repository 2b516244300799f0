package repository

import (
	"context"
	"strings"

	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() audittraildomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *audittraildomain.TaxAuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO tax_audit_logs (
			id, calculation_id, deal_id, dealership_id, calculated_by,
			calculated_at, calculation_type, inputs, outputs,
			jurisdiction_id, state_code, state_rules_version, engine_version,
			validation_passed, validation_errors, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CalculationID,
		entry.DealID,
		entry.DealershipID,
		entry.CalculatedBy,
		entry.CalculatedAt,
		entry.Type,
		entry.Inputs,
		entry.Outputs,
		entry.JurisdictionID,
		entry.StateCode,
		entry.StateRulesVersion,
		entry.EngineVersion,
		entry.ValidationPassed,
		entry.ValidationErrors,
		entry.CreatedAt,
	).Error
}

func (r *repo) FindByCalculationID(ctx context.Context, db *gorm.DB, calculationID string) (*audittraildomain.TaxAuditLog, error) {
	var entry audittraildomain.TaxAuditLog
	err := db.WithContext(ctx).
		Model(&audittraildomain.TaxAuditLog{}).
		Where("calculation_id = ?", calculationID).
		Limit(1).
		Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) ListByDeal(ctx context.Context, db *gorm.DB, dealID string) ([]audittraildomain.TaxAuditLog, error) {
	var entries []audittraildomain.TaxAuditLog
	err := db.WithContext(ctx).
		Model(&audittraildomain.TaxAuditLog{}).
		Where("deal_id = ?", dealID).
		Order("calculated_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter audittraildomain.ListFilter) ([]*audittraildomain.TaxAuditLog, error) {
	var entries []*audittraildomain.TaxAuditLog
	stmt := db.WithContext(ctx).
		Model(&audittraildomain.TaxAuditLog{}).
		Where("dealership_id = ?", filter.DealershipID)

	if calcType := strings.TrimSpace(string(filter.Type)); calcType != "" {
		stmt = stmt.Where("calculation_type = ?", calcType)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("calculated_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("calculated_at <= ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
