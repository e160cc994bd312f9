package domain

// QuotationStatus tracks a quotation through its lifecycle.
type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "draft"
	QuotationSent     QuotationStatus = "sent"
	QuotationAccepted QuotationStatus = "accepted"
	QuotationRejected QuotationStatus = "rejected"
)

// Quotation is a customer-facing offer. Line items hang off systems, which
// hang off the quotation; both child levels are owned collections that
// imports replace wholesale.
type Quotation struct {
	Syncable
	TeamID       string          `json:"team_id"`
	Number       string          `json:"number"`
	CustomerName string          `json:"customer_name,omitempty"`
	ProjectName  string          `json:"project_name,omitempty"`
	Status       QuotationStatus `json:"status"`
	Currency     string          `json:"currency"`
	ValidUntil   string          `json:"valid_until,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

// QuotationSystem is a named section of a quotation, typically one machine
// or cabinet within a larger project.
type QuotationSystem struct {
	Syncable
	TeamID      string `json:"team_id"`
	QuotationID string `json:"quotation_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position,omitempty"`
}

// QuotationItem is a priced line within a system. ComponentID and AssemblyID
// are optional references into the catalog; a free-text item has neither.
// UnitCost is a snapshot taken when the line was added, not a live lookup.
type QuotationItem struct {
	Syncable
	TeamID      string  `json:"team_id"`
	SystemID    string  `json:"system_id"`
	ComponentID string  `json:"component_id,omitempty"`
	AssemblyID  string  `json:"assembly_id,omitempty"`
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
	Markup      float64 `json:"markup,omitempty"`
	Position    int     `json:"position,omitempty"`
}

// Total returns the extended sell price for the line.
func (i *QuotationItem) Total() float64 {
	return i.Quantity * i.UnitCost * (1 + i.Markup)
}
