package repository

import (
	"context"
	"time"

	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() jurisdictiondomain.Repository {
	return &repo{}
}

func (r *repo) FindActiveByPostalCode(ctx context.Context, db *gorm.DB, postalCode string, asOf time.Time) (*jurisdictiondomain.Jurisdiction, error) {
	var j jurisdictiondomain.Jurisdiction
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM tax_jurisdictions
		 WHERE postal_code = ?
		   AND effective_date <= ?
		   AND (end_date IS NULL OR end_date > ?)
		 ORDER BY effective_date DESC, id DESC
		 LIMIT 1`,
		postalCode,
		asOf,
		asOf,
	).Scan(&j).Error
	if err != nil {
		return nil, err
	}
	if j.ID == 0 {
		return nil, nil
	}
	return &j, nil
}

func (r *repo) FindActiveByLocation(ctx context.Context, db *gorm.DB, state string, county, city *string, asOf time.Time) (*jurisdictiondomain.Jurisdiction, error) {
	stmt := db.WithContext(ctx).
		Model(&jurisdictiondomain.Jurisdiction{}).
		Where("state = ?", state).
		Where("effective_date <= ?", asOf).
		Where("end_date IS NULL OR end_date > ?", asOf)

	if county != nil && *county != "" {
		stmt = stmt.Where("county = ?", *county)
	}
	if city != nil && *city != "" {
		stmt = stmt.Where("city = ?", *city)
	}

	var j jurisdictiondomain.Jurisdiction
	err := stmt.Order("effective_date DESC, id DESC").Limit(1).Scan(&j).Error
	if err != nil {
		return nil, err
	}
	if j.ID == 0 {
		return nil, nil
	}
	return &j, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, j *jurisdictiondomain.Jurisdiction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tax_jurisdictions (
			id, postal_code, state, county, city, special_district,
			state_rate, county_rate, city_rate, special_district_rate,
			effective_date, end_date, source, last_verified, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID,
		j.PostalCode,
		j.State,
		j.County,
		j.City,
		j.SpecialDistrict,
		j.StateRate,
		j.CountyRate,
		j.CityRate,
		j.SpecialDistrictRate,
		j.EffectiveDate,
		j.EndDate,
		j.Source,
		j.LastVerified,
		j.CreatedAt,
		j.UpdatedAt,
	).Error
}

// EndDateOpenRecord closes every open record up to and including endAt.
// A same-day reload closes the prior record with a zero-width window, so
// at most one record stays active for the postal code.
func (r *repo) EndDateOpenRecord(ctx context.Context, db *gorm.DB, postalCode string, endAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tax_jurisdictions
		 SET end_date = ?, updated_at = ?
		 WHERE postal_code = ? AND end_date IS NULL AND effective_date <= ?`,
		endAt,
		time.Now().UTC(),
		postalCode,
		endAt,
	).Error
}

func (r *repo) ListByPostalCode(ctx context.Context, db *gorm.DB, postalCode string) ([]jurisdictiondomain.Jurisdiction, error) {
	var items []jurisdictiondomain.Jurisdiction
	err := db.WithContext(ctx).
		Model(&jurisdictiondomain.Jurisdiction{}).
		Where("postal_code = ?", postalCode).
		Order("effective_date DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
