package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository exposes insert and read operations only; the audit table is
// append-only by construction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *TaxAuditLog) error
	FindByCalculationID(ctx context.Context, db *gorm.DB, calculationID string) (*TaxAuditLog, error)
	ListByDeal(ctx context.Context, db *gorm.DB, dealID string) ([]TaxAuditLog, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*TaxAuditLog, error)
}

// Service is the Audit Trail Store. Append runs against the caller's
// transaction handle so the audit write shares the calculation's
// transactional boundary.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, entry *TaxAuditLog) (string, error)
	GetByCalculationID(ctx context.Context, calculationID string) (*TaxAuditLog, error)
	GetByDeal(ctx context.Context, dealID string) ([]TaxAuditLog, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
