// Package domain contains the core business entities for the Quoteline quotation server.
package domain

import "github.com/quotelineapp/quoteline-server/internal/normalize"

// Component is a purchasable part in a team's catalog.
//
// The pair (Manufacturer, PartNumber) acts as a soft business key within a
// team: duplicates are tolerated but flagged during import conflict
// detection. OriginalCurrency and OriginalCost record the currency the part
// was originally quoted in and must survive exchange-rate changes; the
// per-currency costs are derived values.
type Component struct {
	Syncable
	TeamID           string             `json:"team_id"`
	Manufacturer     string             `json:"manufacturer,omitempty"`
	PartNumber       string             `json:"part_number,omitempty"`
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	Category         string             `json:"category,omitempty"`
	Supplier         string             `json:"supplier,omitempty"`
	CostByCurrency   map[string]float64 `json:"cost_by_currency,omitempty"`
	OriginalCurrency string             `json:"original_currency,omitempty"`
	OriginalCost     float64            `json:"original_cost,omitempty"`
}

// HasBusinessKey reports whether both halves of the soft business key are set.
func (c *Component) HasBusinessKey() bool {
	return c.Manufacturer != "" && c.PartNumber != ""
}

// BusinessKey returns the canonical (manufacturer, partNumber) pair joined
// for index storage, so lookups ignore casing and formatting differences.
// Callers must check HasBusinessKey first.
func (c *Component) BusinessKey() string {
	return normalize.Canonical(c.Manufacturer) + "\x1f" + normalize.Canonical(c.PartNumber)
}

// Cost returns the component cost in the given currency, or the original
// cost when no derived value exists for it.
func (c *Component) Cost(currency string) float64 {
	if v, ok := c.CostByCurrency[currency]; ok {
		return v
	}
	if currency == c.OriginalCurrency {
		return c.OriginalCost
	}
	return 0
}

// Candidate is an unresolved component record produced by document
// extraction. It is transient: created per extraction event, consumed by the
// matcher, and discarded once the operator decides.
type Candidate struct {
	Name             string             `json:"name"`
	Manufacturer     string             `json:"manufacturer,omitempty"`
	PartNumber       string             `json:"part_number,omitempty"`
	Description      string             `json:"description,omitempty"`
	PriceByCurrency  map[string]float64 `json:"price_by_currency,omitempty"`
	SourceConfidence float64            `json:"source_confidence"`
}
