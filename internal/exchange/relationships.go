package exchange

// Relationships are adjacency maps derived from the data arrays. They are
// redundant with the foreign keys on the rows and exist so a reader can
// answer "where is this component used" without walking every row.
type Relationships struct {
	AssemblyComponents  map[string][]string `json:"assembly_components"`  // assembly -> join rows
	QuotationSystems    map[string][]string `json:"quotation_systems"`    // quotation -> systems
	SystemItems         map[string][]string `json:"system_items"`         // system -> items
	ComponentItems      map[string][]string `json:"component_items"`      // component -> referencing items
	ComponentAssemblies map[string][]string `json:"component_assemblies"` // component -> containing assemblies
}

// BuildRelationships derives the adjacency maps from the data arrays. It is
// pure and order-independent: the maps depend only on the set of rows, not
// on the order they appear in.
func BuildRelationships(data *Data) Relationships {
	rel := Relationships{
		AssemblyComponents:  make(map[string][]string),
		QuotationSystems:    make(map[string][]string),
		SystemItems:         make(map[string][]string),
		ComponentItems:      make(map[string][]string),
		ComponentAssemblies: make(map[string][]string),
	}

	for _, ac := range data.AssemblyComponents {
		rel.AssemblyComponents[ac.AssemblyID] = append(rel.AssemblyComponents[ac.AssemblyID], ac.ID)
		rel.ComponentAssemblies[ac.ComponentID] = append(rel.ComponentAssemblies[ac.ComponentID], ac.AssemblyID)
	}
	for _, qs := range data.QuotationSystems {
		rel.QuotationSystems[qs.QuotationID] = append(rel.QuotationSystems[qs.QuotationID], qs.ID)
	}
	for _, qi := range data.QuotationItems {
		rel.SystemItems[qi.SystemID] = append(rel.SystemItems[qi.SystemID], qi.ID)
		if qi.ComponentID != "" {
			rel.ComponentItems[qi.ComponentID] = append(rel.ComponentItems[qi.ComponentID], qi.ID)
		}
	}

	return rel
}
