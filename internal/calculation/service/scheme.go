package service

import (
	"strings"

	"github.com/dealerdesk/taxengine/internal/config"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"github.com/dealerdesk/taxengine/pkg/money"
	"github.com/shopspring/decimal"
)

// taxComponents is an assembled breakdown. The four components always sum
// exactly to Total after residual-cent assignment.
type taxComponents struct {
	State           decimal.Decimal
	County          decimal.Decimal
	City            decimal.Decimal
	SpecialDistrict decimal.Decimal
	Total           decimal.Decimal
}

// splitStrategy computes the component breakdown for one special-scheme
// family. Rate returns the effective rate the scheme applies to fees.
type splitStrategy interface {
	split(base decimal.Decimal, rates jurisdictiondomain.TaxRateBreakdown) taxComponents
	rate(rates jurisdictiondomain.TaxRateBreakdown) decimal.Decimal
}

// standardSplit is ordinary stacked ad-valorem: tax at the combined rate,
// split proportionally, residual cent assigned to the largest component.
type standardSplit struct{}

func (standardSplit) rate(rates jurisdictiondomain.TaxRateBreakdown) decimal.Decimal {
	return rates.TotalRate
}

func (standardSplit) split(base decimal.Decimal, rates jurisdictiondomain.TaxRateBreakdown) taxComponents {
	total := money.CalculateTax(base, rates.TotalRate)

	parts := []decimal.Decimal{
		money.CalculateTax(base, rates.StateRate),
		money.CalculateTax(base, rates.CountyRate),
		money.CalculateTax(base, rates.CityRate),
		money.CalculateTax(base, rates.SpecialDistrictRate),
	}

	parts = distributeResidual(total, parts)

	return taxComponents{
		State:           parts[0],
		County:          parts[1],
		City:            parts[2],
		SpecialDistrict: parts[3],
		Total:           total,
	}
}

// stateOnlySplit covers one-time state-level schemes (title ad valorem,
// privilege tax): the state rate applies and local components stay zero.
type stateOnlySplit struct{}

func (stateOnlySplit) rate(rates jurisdictiondomain.TaxRateBreakdown) decimal.Decimal {
	return rates.StateRate
}

func (stateOnlySplit) split(base decimal.Decimal, rates jurisdictiondomain.TaxRateBreakdown) taxComponents {
	total := money.CalculateTax(base, rates.StateRate)
	return taxComponents{
		State: total,
		Total: total,
	}
}

// cappedSplit bounds the inner strategy's total tax at a configured
// maximum, rescaling components proportionally so they still sum exactly.
type cappedSplit struct {
	inner splitStrategy
	max   decimal.Decimal
}

func (c cappedSplit) rate(rates jurisdictiondomain.TaxRateBreakdown) decimal.Decimal {
	return c.inner.rate(rates)
}

func (c cappedSplit) split(base decimal.Decimal, rates jurisdictiondomain.TaxRateBreakdown) taxComponents {
	comps := c.inner.split(base, rates)
	if comps.Total.LessThanOrEqual(c.max) {
		return comps
	}

	capped := money.RoundMoney(c.max)
	scale, err := money.Divide(capped, comps.Total)
	if err != nil {
		return comps
	}
	parts := distributeResidual(capped, []decimal.Decimal{
		money.RoundMoney(money.Multiply(comps.State, scale)),
		money.RoundMoney(money.Multiply(comps.County, scale)),
		money.RoundMoney(money.Multiply(comps.City, scale)),
		money.RoundMoney(money.Multiply(comps.SpecialDistrict, scale)),
	})
	return taxComponents{
		State:           parts[0],
		County:          parts[1],
		City:            parts[2],
		SpecialDistrict: parts[3],
		Total:           capped,
	}
}

// distributeResidual parks rounding drift on the largest part so the
// parts always sum exactly to total.
func distributeResidual(total decimal.Decimal, parts []decimal.Decimal) []decimal.Decimal {
	sum := decimal.Zero
	largest := 0
	for i, part := range parts {
		sum = money.Add(sum, part)
		if part.GreaterThan(parts[largest]) {
			largest = i
		}
	}
	if residual := money.Subtract(total, sum); !residual.IsZero() {
		parts[largest] = money.Add(parts[largest], residual)
	}
	return parts
}

func strategyForScheme(scheme stateruledomain.SpecialScheme, cfg config.EngineConfig) splitStrategy {
	var strategy splitStrategy
	switch scheme {
	case stateruledomain.SchemeTitleAdValorem, stateruledomain.SchemePrivilegeTax:
		strategy = stateOnlySplit{}
	default:
		// highway_use keeps standard arithmetic; the tag drives the
		// optional per-scheme maximum below and downstream reporting.
		strategy = standardSplit{}
	}

	if sc, ok := cfg.Schemes[string(scheme)]; ok && strings.TrimSpace(sc.MaxTax) != "" {
		if maxTax, err := money.Parse("schemes."+string(scheme)+".maxTax", sc.MaxTax); err == nil && maxTax.IsPositive() {
			return cappedSplit{inner: strategy, max: maxTax}
		}
	}
	return strategy
}
