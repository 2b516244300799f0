package cache

import (
	"strings"
	"time"

	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"go.uber.org/fx"
)

const (
	defaultJurisdictionTTL = 10 * time.Minute
	defaultStateRuleTTL    = 10 * time.Minute
)

// ReferenceCache stores hot-path jurisdiction and state-rule lookups.
// Reference data changes only through the administrative load path, which
// calls the Invalidate hooks; entries otherwise age out on a fixed TTL.
type ReferenceCache interface {
	GetJurisdiction(postalCode string, asOf time.Time) (*jurisdictiondomain.Jurisdiction, bool)
	SetJurisdiction(postalCode string, asOf time.Time, j *jurisdictiondomain.Jurisdiction)
	InvalidateJurisdictions()

	GetStateRules(stateCode string, asOf time.Time) (*stateruledomain.StateRules, bool)
	SetStateRules(stateCode string, asOf time.Time, rules *stateruledomain.StateRules)
	InvalidateStateRules()
}

type referenceCache struct {
	jurisdictions   Cache[string, *jurisdictiondomain.Jurisdiction]
	stateRules      Cache[string, *stateruledomain.StateRules]
	jurisdictionTTL time.Duration
	stateRuleTTL    time.Duration
}

// NewReferenceCache returns an in-memory cache tuned for the calculation read path.
func NewReferenceCache() ReferenceCache {
	return &referenceCache{
		jurisdictions:   NewTTLCache[string, *jurisdictiondomain.Jurisdiction](),
		stateRules:      NewTTLCache[string, *stateruledomain.StateRules](),
		jurisdictionTTL: defaultJurisdictionTTL,
		stateRuleTTL:    defaultStateRuleTTL,
	}
}

func (c *referenceCache) GetJurisdiction(postalCode string, asOf time.Time) (*jurisdictiondomain.Jurisdiction, bool) {
	return c.jurisdictions.Get(cacheKey(postalCode, asOfKey(asOf)))
}

func (c *referenceCache) SetJurisdiction(postalCode string, asOf time.Time, j *jurisdictiondomain.Jurisdiction) {
	if j == nil {
		return
	}
	c.jurisdictions.Set(cacheKey(postalCode, asOfKey(asOf)), j, c.jurisdictionTTL)
}

func (c *referenceCache) InvalidateJurisdictions() {
	c.jurisdictions.Purge()
}

func (c *referenceCache) GetStateRules(stateCode string, asOf time.Time) (*stateruledomain.StateRules, bool) {
	return c.stateRules.Get(cacheKey(stateCode, asOfKey(asOf)))
}

func (c *referenceCache) SetStateRules(stateCode string, asOf time.Time, rules *stateruledomain.StateRules) {
	if rules == nil {
		return
	}
	c.stateRules.Set(cacheKey(stateCode, asOfKey(asOf)), rules, c.stateRuleTTL)
}

func (c *referenceCache) InvalidateStateRules() {
	c.stateRules.Purge()
}

// asOfKey buckets lookups by day; effective windows are date-granular.
func asOfKey(asOf time.Time) string {
	return asOf.UTC().Format("2006-01-02")
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}

var Module = fx.Module("cache",
	fx.Provide(NewReferenceCache),
)
