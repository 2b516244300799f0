package domain

import (
	"context"

	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
)

// Service is the tax calculation orchestrator. Every calculation is a
// strict linear pipeline: resolve jurisdiction, resolve state rules,
// compute taxable base, apply rate, split components, assess fees,
// validate, persist audit, return. A stage failure aborts the pipeline;
// partial results are never returned or persisted.
type Service interface {
	CalculateSalesTax(ctx context.Context, req SalesTaxRequest) (*SalesTaxResult, error)
	CalculateDealTaxes(ctx context.Context, req DealTaxRequest) (*CompleteTaxBreakdown, error)
	// EstimateSalesTax uses the explicitly labeled state-average fallback
	// rate when no jurisdiction record matches; results carry
	// RateSourceStateAverage and a distinct audit calculation type.
	EstimateSalesTax(ctx context.Context, req SalesTaxRequest) (*SalesTaxResult, error)

	CalculateTradeInCredit(tradeInValue string, rules *stateruledomain.StateRules) (string, error)
	CalculateDocFee(ctx context.Context, stateCode, requestedFee string) (string, error)
	CalculateTitleFee(ctx context.Context, stateCode string) (string, error)

	AuditTaxCalculation(ctx context.Context, dealID string) ([]audittraildomain.TaxAuditLog, error)
}
