package domain

// Attachment is file metadata for a document stored alongside an entity,
// typically a supplier quote PDF attached to a component or quotation. The
// bytes themselves live in blob storage under the owning team's namespace;
// StoragePath is relative to that namespace.
type Attachment struct {
	Syncable
	TeamID     string `json:"team_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	// Filename is the sanitized name used on disk; OriginalFilename keeps
	// the name as it arrived, for display.
	OriginalFilename string `json:"original_filename,omitempty"`
	Filename         string `json:"filename"`
	ContentType      string `json:"content_type"`
	Size             int64  `json:"size"`
	StoragePath      string `json:"storage_path"`
}
