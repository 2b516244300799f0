package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Service resolves tax jurisdictions and their stacked rates as of a point
// in time. The resolver never substitutes data: a miss is
// ErrJurisdictionNotFound. StateAverageRate is the explicit fallback path
// for consumer-facing estimates only.
type Service interface {
	ResolveByPostalCode(ctx context.Context, postalCode string, asOf time.Time) (*Jurisdiction, error)
	ResolveByLocation(ctx context.Context, state string, county, city *string, asOf time.Time) (*Jurisdiction, error)
	Rates(j *Jurisdiction) TaxRateBreakdown
	StateAverageRate(stateCode string) (decimal.Decimal, error)
	Load(ctx context.Context, req LoadRequest) (*Jurisdiction, error)
	History(ctx context.Context, postalCode string) ([]Jurisdiction, error)
}
