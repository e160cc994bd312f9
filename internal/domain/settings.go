package domain

// RateTable maps currency codes to their rate against the team's base
// currency. The base currency itself always has rate 1.
type RateTable map[string]float64

// TeamSettings holds per-team configuration. Each field group is
// independently updatable; imports upsert groups one at a time so a failure
// in one group never blocks the others.
type TeamSettings struct {
	Syncable
	TeamID            string    `json:"team_id"`
	BaseCurrency      string    `json:"base_currency"`
	ExchangeRates     RateTable `json:"exchange_rates,omitempty"`
	DefaultMarkup     float64   `json:"default_markup,omitempty"`
	DefaultCurrency   string    `json:"default_currency,omitempty"`
	Categories        []string  `json:"categories,omitempty"`
	QuotationTemplate string    `json:"quotation_template,omitempty"`
	NextQuotationSeq  int       `json:"next_quotation_seq,omitempty"`
}
