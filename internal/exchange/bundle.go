// Package exchange implements cross-team catalog export and import. A
// bundle is a single JSON document carrying a manifest, the exported
// entities, their relationship maps, and optionally attachment payloads.
package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/quotelineapp/quoteline-server/internal/audit"
	"github.com/quotelineapp/quoteline-server/internal/domain"
)

// FormatVersion is the bundle format version. Readers accept any bundle
// sharing the same major version.
const FormatVersion = "1.0"

// Manifest describes bundle contents and provenance.
type Manifest struct {
	Version        string    `json:"version"`
	ExportedAt     time.Time `json:"exported_at"`
	SourceTeamID   string    `json:"source_team_id"`
	SourceTeamName string    `json:"source_team_name"`
	ExportedBy     string    `json:"exported_by,omitempty"`
	Description    string    `json:"description,omitempty"`
	AppVersion     string    `json:"app_version"`
	Counts         Counts    `json:"counts"`
	Includes       Includes  `json:"includes"`
}

// Includes records which categories the exporter was asked to pack.
type Includes struct {
	Components  bool `json:"components"`
	Assemblies  bool `json:"assemblies"`
	Quotations  bool `json:"quotations"`
	Settings    bool `json:"settings"`
	Attachments bool `json:"attachments"`
	Activity    bool `json:"activity"`
}

// Counts tracks entity counts for validation and progress reporting. Each
// field must equal the cardinality of the corresponding data array.
type Counts struct {
	Components         int `json:"components"`
	Assemblies         int `json:"assemblies"`
	AssemblyComponents int `json:"assembly_components"`
	Quotations         int `json:"quotations"`
	QuotationSystems   int `json:"quotation_systems"`
	QuotationItems     int `json:"quotation_items"`
	Attachments        int `json:"attachments,omitempty"`
	Activities         int `json:"activities,omitempty"`
}

// Data holds the exported entity arrays.
type Data struct {
	Components         []domain.Component         `json:"components"`
	Assemblies         []domain.Assembly          `json:"assemblies"`
	AssemblyComponents []domain.AssemblyComponent `json:"assembly_components"`
	Quotations         []domain.Quotation         `json:"quotations"`
	QuotationSystems   []domain.QuotationSystem   `json:"quotation_systems"`
	QuotationItems     []domain.QuotationItem     `json:"quotation_items"`
	Settings           *domain.TeamSettings       `json:"settings,omitempty"`
	// Activities is an archival copy of the source team's audit trail.
	// Imports never replay it into the destination.
	Activities []audit.Entry `json:"activities,omitempty"`
}

// Attachment carries one attachment's metadata and base64-encoded payload.
type Attachment struct {
	ID               string `json:"id"`
	EntityType       string `json:"entity_type"`
	EntityID         string `json:"entity_id"`
	OriginalFilename string `json:"original_filename,omitempty"`
	Filename         string `json:"filename"`
	ContentType      string `json:"content_type"`
	Data             string `json:"data"` // base64
}

// Bundle is the complete export document.
type Bundle struct {
	Manifest      Manifest      `json:"manifest"`
	Data          Data          `json:"data"`
	Relationships Relationships `json:"relationships"`
	Attachments   []Attachment  `json:"attachments,omitempty"`
}

// CountData returns the actual cardinalities of the data arrays.
func (b *Bundle) CountData() Counts {
	return Counts{
		Components:         len(b.Data.Components),
		Assemblies:         len(b.Data.Assemblies),
		AssemblyComponents: len(b.Data.AssemblyComponents),
		Quotations:         len(b.Data.Quotations),
		QuotationSystems:   len(b.Data.QuotationSystems),
		QuotationItems:     len(b.Data.QuotationItems),
		Attachments:        len(b.Attachments),
		Activities:         len(b.Data.Activities),
	}
}

// CheckVersion verifies the bundle's format version is readable. Any "1.x"
// version is accepted; the minor number only gates optional sections.
func CheckVersion(version string) error {
	if version == "" {
		return fmt.Errorf("bundle has no format version")
	}
	major, _, _ := strings.Cut(version, ".")
	wantMajor, _, _ := strings.Cut(FormatVersion, ".")
	if major != wantMajor {
		return fmt.Errorf("unsupported bundle version %q (reader supports %s.x)", version, wantMajor)
	}
	return nil
}
