package exchange

// Resolution is the closed set of answers to an import conflict.
type Resolution string

const (
	// ResolutionSkip leaves the destination row untouched and drops the
	// incoming row.
	ResolutionSkip Resolution = "skip"
	// ResolutionUpdate overwrites the destination row in place, keeping
	// its ID.
	ResolutionUpdate Resolution = "update"
	// ResolutionCreateNew imports the incoming row under a freshly minted
	// ID, leaving the destination row untouched.
	ResolutionCreateNew Resolution = "create_new"
)

// Valid reports whether r is one of the closed set.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionSkip, ResolutionUpdate, ResolutionCreateNew:
		return true
	}
	return false
}

// ExportOptions configures bundle creation.
type ExportOptions struct {
	// Include selects which categories to pack. A zero value exports
	// nothing; use DefaultIncludes for the usual catalog export.
	Include Includes
	// Description is a free-text note stored in the manifest.
	Description string
	// Passphrase, when non-empty, wraps the bundle in an encryption
	// envelope.
	Passphrase string
	// OutputPath overrides the generated file name under the export dir.
	OutputPath string
}

// DefaultIncludes covers the whole catalog with lightweight payloads.
// Attachment blobs and the activity archive stay out unless asked for.
func DefaultIncludes() Includes {
	return Includes{Components: true, Assemblies: true, Quotations: true, Settings: true}
}

// ImportOptions configures bundle application.
type ImportOptions struct {
	// Resolutions maps conflicting entity IDs to the caller's chosen
	// resolution. Entities without an entry fall back to Decide's
	// default.
	Resolutions map[string]Resolution
	// BatchSize overrides the configured rows-per-batch during bulk
	// upserts. Zero means use the configured default.
	BatchSize int
	// Passphrase decrypts an encrypted bundle.
	Passphrase string
	// DryRun validates and detects conflicts without writing anything.
	DryRun bool
}

// Decide resolves what happens to one incoming row. A valid caller
// resolution always wins. Without one, a cross-team import mints a new ID
// so two teams' catalogs can never silently overwrite each other, while a
// same-team re-import updates rows in place.
func Decide(sourceTeamID, destTeamID string, caller Resolution) Resolution {
	if caller.Valid() {
		return caller
	}
	if sourceTeamID != destTeamID {
		return ResolutionCreateNew
	}
	return ResolutionUpdate
}
