package exchangeimport

import (
	"fmt"

	"encoding/json/v2"

	"github.com/quotelineapp/quoteline-server/internal/exchange"
)

// Errors.
var (
	ErrInvalidBundle      = errInvalidBundle{}
	ErrPassphraseRequired = errPassphraseRequired{}
)

type errInvalidBundle struct{}

func (errInvalidBundle) Error() string { return "invalid exchange bundle" }

type errPassphraseRequired struct{}

func (errPassphraseRequired) Error() string { return "bundle is encrypted and no passphrase was given" }

// ValidationResult reports whether a bundle is safe to apply.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (v *ValidationResult) errorf(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *ValidationResult) warnf(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// ReadBundle parses a serialized bundle, decrypting it first when it is an
// encryption envelope.
func ReadBundle(raw []byte, passphrase string) (*exchange.Bundle, error) {
	if exchange.IsEncrypted(raw) {
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		plain, err := exchange.Decrypt(raw, passphrase)
		if err != nil {
			return nil, err
		}
		raw = plain
	}

	var bundle exchange.Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	return &bundle, nil
}

// Validate checks a bundle's structural integrity before anything is
// written. Count mismatches and version problems are errors; dangling
// references are warnings because a partial catalog export is still
// importable.
func Validate(bundle *exchange.Bundle) *ValidationResult {
	result := &ValidationResult{}

	if err := exchange.CheckVersion(bundle.Manifest.Version); err != nil {
		result.errorf("%v", err)
	}
	if bundle.Manifest.SourceTeamID == "" {
		result.errorf("manifest has no source team")
	}

	checkCounts(bundle, result)
	checkIncludes(bundle, result)
	checkReferences(bundle, result)

	result.Valid = len(result.Errors) == 0
	return result
}

// checkCounts verifies every manifest count equals the cardinality of its
// data array. A mismatch means the bundle was truncated or tampered with.
func checkCounts(bundle *exchange.Bundle, result *ValidationResult) {
	declared := bundle.Manifest.Counts
	actual := bundle.CountData()

	counts := []struct {
		name     string
		declared int
		actual   int
	}{
		{"components", declared.Components, actual.Components},
		{"assemblies", declared.Assemblies, actual.Assemblies},
		{"assembly_components", declared.AssemblyComponents, actual.AssemblyComponents},
		{"quotations", declared.Quotations, actual.Quotations},
		{"quotation_systems", declared.QuotationSystems, actual.QuotationSystems},
		{"quotation_items", declared.QuotationItems, actual.QuotationItems},
		{"attachments", declared.Attachments, actual.Attachments},
		{"activities", declared.Activities, actual.Activities},
	}
	for _, c := range counts {
		if c.declared != c.actual {
			result.errorf("manifest declares %d %s but bundle contains %d", c.declared, c.name, c.actual)
		}
	}
}

// checkIncludes flags sections present in the data without being declared
// in the manifest's include flags. The data still imports; the mismatch
// usually means the bundle was assembled by hand.
func checkIncludes(bundle *exchange.Bundle, result *ValidationResult) {
	inc := bundle.Manifest.Includes
	actual := bundle.CountData()

	sections := []struct {
		name     string
		declared bool
		count    int
	}{
		{"components", inc.Components, actual.Components},
		{"assemblies", inc.Assemblies, actual.Assemblies + actual.AssemblyComponents},
		{"quotations", inc.Quotations, actual.Quotations + actual.QuotationSystems + actual.QuotationItems},
		{"attachments", inc.Attachments, actual.Attachments},
		{"activity", inc.Activity, actual.Activities},
	}
	for _, s := range sections {
		if !s.declared && s.count > 0 {
			result.warnf("bundle carries %s the manifest does not declare", s.name)
		}
	}
	if inc.Settings != (bundle.Data.Settings != nil) {
		result.warnf("settings section does not match the manifest's include flag")
	}
}

// checkReferences walks child rows and flags parents that are not in the
// bundle. Catalog references from quotation items are only warned about:
// they may legitimately resolve against the destination catalog.
func checkReferences(bundle *exchange.Bundle, result *ValidationResult) {
	components := make(map[string]bool, len(bundle.Data.Components))
	for i := range bundle.Data.Components {
		components[bundle.Data.Components[i].ID] = true
	}
	assemblies := make(map[string]bool, len(bundle.Data.Assemblies))
	for i := range bundle.Data.Assemblies {
		assemblies[bundle.Data.Assemblies[i].ID] = true
	}
	quotations := make(map[string]bool, len(bundle.Data.Quotations))
	for i := range bundle.Data.Quotations {
		quotations[bundle.Data.Quotations[i].ID] = true
	}
	systems := make(map[string]bool, len(bundle.Data.QuotationSystems))
	for i := range bundle.Data.QuotationSystems {
		systems[bundle.Data.QuotationSystems[i].ID] = true
	}

	for i := range bundle.Data.AssemblyComponents {
		ac := &bundle.Data.AssemblyComponents[i]
		if !assemblies[ac.AssemblyID] {
			result.errorf("assembly component %s references assembly %s not in bundle", ac.ID, ac.AssemblyID)
		}
		if !components[ac.ComponentID] {
			result.warnf("assembly component %s references component %s not in bundle", ac.ID, ac.ComponentID)
		}
	}
	for i := range bundle.Data.QuotationSystems {
		qs := &bundle.Data.QuotationSystems[i]
		if !quotations[qs.QuotationID] {
			result.errorf("quotation system %s references quotation %s not in bundle", qs.ID, qs.QuotationID)
		}
	}
	for i := range bundle.Data.QuotationItems {
		qi := &bundle.Data.QuotationItems[i]
		if !systems[qi.SystemID] {
			result.errorf("quotation item %s references system %s not in bundle", qi.ID, qi.SystemID)
		}
		if qi.ComponentID != "" && !components[qi.ComponentID] {
			result.warnf("quotation item %s references component %s not in bundle", qi.ID, qi.ComponentID)
		}
		if qi.AssemblyID != "" && !assemblies[qi.AssemblyID] {
			result.warnf("quotation item %s references assembly %s not in bundle", qi.ID, qi.AssemblyID)
		}
	}
}
