package domain

import "github.com/quotelineapp/quoteline-server/internal/errors"

// Convert translates an amount from one currency to another using the
// team's rate table. Rates are expressed against the base currency, so a
// cross conversion goes through base. Same-currency conversion is the
// identity even when the code is missing from the table.
func Convert(amount float64, from, to string, rates RateTable) (float64, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := rates[from]
	if !ok || fromRate == 0 {
		return 0, errors.Validationf("no exchange rate for currency %q", from)
	}
	toRate, ok := rates[to]
	if !ok {
		return 0, errors.Validationf("no exchange rate for currency %q", to)
	}
	return amount / fromRate * toRate, nil
}

// DeriveCosts recomputes a component's per-currency cost map from its
// original cost. The original currency and cost are never modified; only
// the derived map is replaced. Currencies that cannot be converted are
// omitted rather than failing the whole recalculation.
func DeriveCosts(c *Component, currencies []string, rates RateTable) {
	if c.OriginalCurrency == "" {
		return
	}
	costs := make(map[string]float64, len(currencies)+1)
	costs[c.OriginalCurrency] = c.OriginalCost
	for _, cur := range currencies {
		if cur == c.OriginalCurrency {
			continue
		}
		v, err := Convert(c.OriginalCost, c.OriginalCurrency, cur, rates)
		if err != nil {
			continue
		}
		costs[cur] = v
	}
	c.CostByCurrency = costs
}
