package domain

// Assembly is a reusable grouping of components with per-entry quantities.
type Assembly struct {
	Syncable
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// AssemblyComponent links a component into an assembly. Rows are owned by
// their assembly: imports replace the full set for a parent rather than
// merging individual rows.
type AssemblyComponent struct {
	Syncable
	TeamID      string  `json:"team_id"`
	AssemblyID  string  `json:"assembly_id"`
	ComponentID string  `json:"component_id"`
	Quantity    float64 `json:"quantity"`
	Position    int     `json:"position,omitempty"`
}
