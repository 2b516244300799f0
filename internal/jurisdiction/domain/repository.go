package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// FindActiveByPostalCode returns the record for the postal code whose
	// effective window contains asOf, newest effective date first.
	FindActiveByPostalCode(ctx context.Context, db *gorm.DB, postalCode string, asOf time.Time) (*Jurisdiction, error)
	FindActiveByLocation(ctx context.Context, db *gorm.DB, state string, county, city *string, asOf time.Time) (*Jurisdiction, error)
	Insert(ctx context.Context, db *gorm.DB, j *Jurisdiction) error
	// EndDateOpenRecord closes the open-ended record for a postal code so a
	// replacement can take over without overlapping windows.
	EndDateOpenRecord(ctx context.Context, db *gorm.DB, postalCode string, endAt time.Time) error
	ListByPostalCode(ctx context.Context, db *gorm.DB, postalCode string) ([]Jurisdiction, error)
}
