package service

import (
	"fmt"

	calculationdomain "github.com/dealerdesk/taxengine/internal/calculation/domain"
	"github.com/dealerdesk/taxengine/internal/config"
	"github.com/dealerdesk/taxengine/pkg/money"
	"github.com/shopspring/decimal"
)

// validateTaxCalculation runs the post-calculation sanity checks: the
// components sum to the total within the residual tolerance, the effective
// rate is inside the configured bound, and the taxable amount is
// non-negative and no larger than the price. A failing outcome never
// blocks the result; it is audited and surfaced as a warning.
func validateTaxCalculation(price, base decimal.Decimal, comps taxComponents, cfg config.EngineConfig) calculationdomain.ValidationOutcome {
	var violations []string

	tolerance, err := money.Parse("componentTolerance", cfg.Validation.ComponentTolerance)
	if err != nil {
		tolerance = decimal.New(1, -2)
	}
	maxRate, err := money.Parse("maxTotalRate", cfg.Validation.MaxTotalRate)
	if err != nil {
		maxRate = decimal.New(15, -2)
	}

	componentSum := money.Add(money.Add(comps.State, comps.County), money.Add(comps.City, comps.SpecialDistrict))
	if componentSum.Sub(comps.Total).Abs().GreaterThan(tolerance) {
		violations = append(violations, fmt.Sprintf(
			"component taxes %s do not sum to total tax %s",
			money.ToMoneyString(componentSum), money.ToMoneyString(comps.Total),
		))
	}

	if base.IsNegative() {
		violations = append(violations, fmt.Sprintf("taxable amount %s is negative", money.ToMoneyString(base)))
	}
	if base.GreaterThan(price) {
		violations = append(violations, fmt.Sprintf(
			"taxable amount %s exceeds vehicle price %s",
			money.ToMoneyString(base), money.ToMoneyString(price),
		))
	}

	if base.IsPositive() {
		effectiveRate, err := money.Divide(comps.Total, base)
		if err == nil {
			if effectiveRate.IsNegative() || effectiveRate.GreaterThan(maxRate) {
				violations = append(violations, fmt.Sprintf(
					"effective rate %s outside sane bound 0-%s",
					money.ToPercentString(effectiveRate), money.ToPercentString(maxRate),
				))
			}
		}
	}

	return calculationdomain.ValidationOutcome{
		Passed:     len(violations) == 0,
		Violations: violations,
	}
}
