package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindActive(ctx context.Context, db *gorm.DB, stateCode string, asOf time.Time) (*StateRules, error)
	Insert(ctx context.Context, db *gorm.DB, rules *StateRules) error
	// EndDateOpenVersion closes the open-ended version for a state so a new
	// version can take over without overlapping windows. Returns the closed
	// version number, or zero when the state had no open version.
	EndDateOpenVersion(ctx context.Context, db *gorm.DB, stateCode string, endAt time.Time) (int, error)
	ListVersions(ctx context.Context, db *gorm.DB, stateCode string) ([]StateRules, error)
}
