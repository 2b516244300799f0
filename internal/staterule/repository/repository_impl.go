package repository

import (
	"context"
	"time"

	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() stateruledomain.Repository {
	return &repo{}
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, stateCode string, asOf time.Time) (*stateruledomain.StateRules, error) {
	var rules stateruledomain.StateRules
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM state_tax_rules
		 WHERE state_code = ?
		   AND effective_date <= ?
		   AND (end_date IS NULL OR end_date > ?)
		 ORDER BY version DESC
		 LIMIT 1`,
		stateCode,
		asOf,
		asOf,
	).Scan(&rules).Error
	if err != nil {
		return nil, err
	}
	if rules.ID == 0 {
		return nil, nil
	}
	return &rules, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rules *stateruledomain.StateRules) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO state_tax_rules (
			id, state_code, version, effective_date, end_date,
			allows_trade_in_credit, trade_in_credit_cap, trade_in_credit_percent,
			doc_fee_capped, doc_fee_max, doc_fee_taxable, title_fee,
			service_contracts_taxable, gap_taxable, accessories_taxable,
			manufacturer_rebate_taxable, dealer_rebate_taxable,
			special_scheme, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rules.ID,
		rules.StateCode,
		rules.Version,
		rules.EffectiveDate,
		rules.EndDate,
		rules.AllowsTradeInCredit,
		rules.TradeInCreditCap,
		rules.TradeInCreditPercent,
		rules.DocFeeCapped,
		rules.DocFeeMax,
		rules.DocFeeTaxable,
		rules.TitleFee,
		rules.ServiceContractsTaxable,
		rules.GapTaxable,
		rules.AccessoriesTaxable,
		rules.ManufacturerRebateTaxable,
		rules.DealerRebateTaxable,
		rules.SpecialScheme,
		rules.CreatedAt,
	).Error
}

func (r *repo) EndDateOpenVersion(ctx context.Context, db *gorm.DB, stateCode string, endAt time.Time) (int, error) {
	var current stateruledomain.StateRules
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM state_tax_rules
		 WHERE state_code = ? AND end_date IS NULL
		 ORDER BY version DESC
		 LIMIT 1`,
		stateCode,
	).Scan(&current).Error
	if err != nil {
		return 0, err
	}
	if current.ID == 0 {
		return 0, nil
	}

	err = db.WithContext(ctx).Exec(
		`UPDATE state_tax_rules SET end_date = ? WHERE id = ?`,
		endAt,
		current.ID,
	).Error
	if err != nil {
		return 0, err
	}
	return current.Version, nil
}

func (r *repo) ListVersions(ctx context.Context, db *gorm.DB, stateCode string) ([]stateruledomain.StateRules, error) {
	var items []stateruledomain.StateRules
	err := db.WithContext(ctx).
		Model(&stateruledomain.StateRules{}).
		Where("state_code = ?", stateCode).
		Order("version DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
