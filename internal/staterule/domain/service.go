package domain

import (
	"context"
	"time"
)

// Service selects the state policy version active at a point in time. A
// state without an active version is ErrUnsupportedState; rules are never
// defaulted from another state.
type Service interface {
	Rules(ctx context.Context, stateCode string, asOf time.Time) (*StateRules, error)
	LoadVersion(ctx context.Context, req LoadRequest) (*StateRules, error)
	Versions(ctx context.Context, stateCode string) ([]StateRules, error)
}
