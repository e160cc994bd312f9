package api

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quotelineapp/quoteline-server/internal/exchange"
)

func (s *Server) registerExchangeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createExport",
		Method:      http.MethodPost,
		Path:        "/api/v1/exchange/exports",
		Summary:     "Create export",
		Description: "Builds a catalog bundle for the team (admin only)",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateExport)

	huma.Register(s.api, huma.Operation{
		OperationID: "listExports",
		Method:      http.MethodGet,
		Path:        "/api/v1/exchange/exports",
		Summary:     "List exports",
		Description: "Lists the team's export files",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListExports)

	huma.Register(s.api, huma.Operation{
		OperationID: "getExport",
		Method:      http.MethodGet,
		Path:        "/api/v1/exchange/exports/{id}",
		Summary:     "Get export details",
		Description: "Gets details of one export file",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetExport)

	huma.Register(s.api, huma.Operation{
		OperationID: "downloadExport",
		Method:      http.MethodGet,
		Path:        "/api/v1/exchange/exports/{id}/download",
		Summary:     "Download export",
		Description: "Downloads an export bundle file",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDownloadExport)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteExport",
		Method:      http.MethodDelete,
		Path:        "/api/v1/exchange/exports/{id}",
		Summary:     "Delete export",
		Description: "Deletes an export file (admin only)",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteExport)

	huma.Register(s.api, huma.Operation{
		OperationID: "validateExport",
		Method:      http.MethodPost,
		Path:        "/api/v1/exchange/exports/{id}/validate",
		Summary:     "Validate export",
		Description: "Runs structural validation on a bundle without importing it",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleValidateExport)

	huma.Register(s.api, huma.Operation{
		OperationID: "previewConflicts",
		Method:      http.MethodPost,
		Path:        "/api/v1/exchange/exports/{id}/conflicts",
		Summary:     "Preview import conflicts",
		Description: "Reports the conflicts an import of this bundle would encounter",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePreviewConflicts)

	huma.Register(s.api, huma.Operation{
		OperationID: "importExport",
		Method:      http.MethodPost,
		Path:        "/api/v1/exchange/exports/{id}/import",
		Summary:     "Import bundle",
		Description: "Applies an export bundle to the team (admin only)",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "uploadBundle",
		Method:      http.MethodPost,
		Path:        "/api/v1/exchange/uploads",
		Summary:     "Upload bundle",
		Description: "Stores a bundle from another team for later import (admin only)",
		Tags:        []string{"Exchange"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUploadBundle)
}

// === DTOs ===

// ExportIncludesRequest selects which data categories go into a bundle.
type ExportIncludesRequest struct {
	Components  bool `json:"components" default:"true" doc:"Include components"`
	Assemblies  bool `json:"assemblies" default:"true" doc:"Include assemblies and their entries"`
	Quotations  bool `json:"quotations" default:"true" doc:"Include quotations, systems, and items"`
	Settings    bool `json:"settings" default:"true" doc:"Include team settings"`
	Attachments bool `json:"attachments,omitempty" doc:"Include attachment files (increases bundle size)"`
	Activity    bool `json:"activity,omitempty" doc:"Include the activity log"`
}

// CreateExportRequest is the request body for creating an export.
type CreateExportRequest struct {
	Include     ExportIncludesRequest `json:"include" doc:"Data categories to include"`
	Description string                `json:"description,omitempty" validate:"max=500" doc:"Free-text description stored in the manifest"`
	Passphrase  string                `json:"passphrase,omitempty" doc:"Encrypt the bundle with this passphrase"`
}

// CreateExportInput wraps the create export request for Huma.
type CreateExportInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateExportRequest
}

// ExportResponse represents an export in API responses.
type ExportResponse struct {
	ID        string         `json:"id" doc:"Export identifier"`
	Size      int64          `json:"size" doc:"File size in bytes"`
	CreatedAt string         `json:"created_at,omitempty" doc:"When the export was created"`
	Counts    map[string]int `json:"counts,omitempty" doc:"Exported entity counts"`
	Checksum  string         `json:"checksum,omitempty" doc:"SHA-256 checksum"`
	Encrypted bool           `json:"encrypted,omitempty" doc:"Whether the bundle is encrypted"`
}

// CreateExportOutput wraps the created export for Huma.
type CreateExportOutput struct {
	Body ExportResponse
}

// ListExportsInput contains parameters for listing exports.
type ListExportsInput struct {
	Authorization string `header:"Authorization"`
}

// ListExportsOutput wraps the export list for Huma.
type ListExportsOutput struct {
	Body []ExportResponse
}

// GetExportInput contains parameters for getting an export.
type GetExportInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Export identifier"`
}

// GetExportOutput wraps one export for Huma.
type GetExportOutput struct {
	Body ExportResponse
}

// DownloadExportInput contains parameters for downloading an export.
type DownloadExportInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Export identifier"`
}

// DeleteExportInput contains parameters for deleting an export.
type DeleteExportInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Export identifier"`
}

// DeleteExportOutput wraps the delete confirmation for Huma.
type DeleteExportOutput struct {
	Body struct {
		Message string `json:"message" doc:"Success message"`
	}
}

// ValidateExportRequest is the request body for validating an export.
type ValidateExportRequest struct {
	Passphrase string `json:"passphrase,omitempty" doc:"Passphrase for encrypted bundles"`
}

// ValidateExportInput wraps the validate request for Huma.
type ValidateExportInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Export identifier"`
	Body          ValidateExportRequest
}

// ValidationResponse is the API response for bundle validation.
type ValidationResponse struct {
	Valid          bool           `json:"valid" doc:"Whether the bundle is structurally valid"`
	Version        string         `json:"version,omitempty" doc:"Bundle format version"`
	SourceTeamID   string         `json:"source_team_id,omitempty" doc:"Team the bundle was exported from"`
	SourceTeamName string         `json:"source_team_name,omitempty" doc:"Source team name"`
	ExportedBy     string         `json:"exported_by,omitempty" doc:"User who created the export"`
	Description    string         `json:"description,omitempty" doc:"Manifest description"`
	ExpectedCounts map[string]int `json:"expected_counts,omitempty" doc:"Declared entity counts"`
	Errors         []string       `json:"errors,omitempty" doc:"Validation errors"`
	Warnings       []string       `json:"warnings,omitempty" doc:"Validation warnings"`
}

// ValidateExportOutput wraps the validation response for Huma.
type ValidateExportOutput struct {
	Body ValidationResponse
}

// PreviewConflictsInput wraps the conflict preview request for Huma.
type PreviewConflictsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Export identifier"`
	Body          ValidateExportRequest
}

// ConflictResponse is one detected import conflict.
type ConflictResponse struct {
	Kind       string `json:"kind" doc:"Conflict kind: duplicate_id or duplicate_business_key"`
	EntityType string `json:"entity_type" doc:"Entity type the conflict is on"`
	EntityID   string `json:"entity_id" doc:"Incoming row ID"`
	ExistingID string `json:"existing_id,omitempty" doc:"Conflicting destination row ID"`
	Detail     string `json:"detail,omitempty" doc:"Human-readable explanation"`
}

// PreviewConflictsOutput wraps the conflict list for Huma.
type PreviewConflictsOutput struct {
	Body struct {
		Conflicts []ConflictResponse `json:"conflicts" doc:"Detected conflicts"`
	}
}

// ImportRequest is the request body for applying a bundle.
type ImportRequest struct {
	Resolutions map[string]string `json:"resolutions,omitempty" doc:"Per-entity-ID conflict resolutions: skip, update, or create_new"`
	Passphrase  string            `json:"passphrase,omitempty" doc:"Passphrase for encrypted bundles"`
	DryRun      bool              `json:"dry_run,omitempty" doc:"Validate and detect conflicts without writing"`
}

// ImportInput wraps the import request for Huma.
type ImportInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Export identifier"`
	Body          ImportRequest
}

// ImportErrorResponse is one non-fatal import error.
type ImportErrorResponse struct {
	EntityType string `json:"entity_type" doc:"Entity type the error occurred on"`
	EntityID   string `json:"entity_id,omitempty" doc:"Affected row ID"`
	Error      string `json:"error" doc:"Error message"`
}

// ImportResponse is the API response for import operations.
type ImportResponse struct {
	Imported    map[string]int        `json:"imported" doc:"Created rows by entity type"`
	Updated     map[string]int        `json:"updated,omitempty" doc:"Updated rows by entity type"`
	Skipped     map[string]int        `json:"skipped,omitempty" doc:"Skipped rows by entity type"`
	Errors      []ImportErrorResponse `json:"errors,omitempty" doc:"Non-fatal errors during import"`
	Warnings    []string              `json:"warnings,omitempty" doc:"Import warnings"`
	Conflicts   []ConflictResponse    `json:"conflicts,omitempty" doc:"Conflicts encountered"`
	DryRun      bool                  `json:"dry_run,omitempty" doc:"Whether this was a dry run"`
	Duration    string                `json:"duration" doc:"Total import duration"`
	CompletedAt string                `json:"completed_at" doc:"When the import finished"`
}

// ImportOutput wraps the import response for Huma.
type ImportOutput struct {
	Body ImportResponse
}

// UploadBundleRequest carries a base64-encoded bundle file.
type UploadBundleRequest struct {
	Data string `json:"data" validate:"required" doc:"Base64-encoded bundle file"`
}

// UploadBundleInput wraps the upload request for Huma.
type UploadBundleInput struct {
	Authorization string `header:"Authorization"`
	Body          UploadBundleRequest
}

// UploadBundleOutput wraps the stored upload for Huma.
type UploadBundleOutput struct {
	Body ExportResponse
}

// === Handlers ===

func conflictResponses(conflicts []exchange.Conflict) []ConflictResponse {
	resp := make([]ConflictResponse, len(conflicts))
	for i, c := range conflicts {
		resp[i] = ConflictResponse{
			Kind:       string(c.Kind),
			EntityType: c.EntityType,
			EntityID:   c.EntityID,
			ExistingID: c.ExistingID,
			Detail:     c.Detail,
		}
	}
	return resp
}

func countsMap(c exchange.Counts) map[string]int {
	return map[string]int{
		"components":          c.Components,
		"assemblies":          c.Assemblies,
		"assembly_components": c.AssemblyComponents,
		"quotations":          c.Quotations,
		"quotation_systems":   c.QuotationSystems,
		"quotation_items":     c.QuotationItems,
		"attachments":         c.Attachments,
		"activities":          c.Activities,
	}
}

func (s *Server) handleCreateExport(ctx context.Context, input *CreateExportInput) (*CreateExportOutput, error) {
	user, err := s.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	result, err := s.services.Exchange.CreateExport(ctx, user.TeamID, user.ID, exchange.ExportOptions{
		Include: exchange.Includes{
			Components:  input.Body.Include.Components,
			Assemblies:  input.Body.Include.Assemblies,
			Quotations:  input.Body.Include.Quotations,
			Settings:    input.Body.Include.Settings,
			Attachments: input.Body.Include.Attachments,
			Activity:    input.Body.Include.Activity,
		},
		Description: input.Body.Description,
		Passphrase:  input.Body.Passphrase,
	})
	if err != nil {
		return nil, err
	}

	return &CreateExportOutput{
		Body: ExportResponse{
			ID:        result.ID,
			Size:      result.Size,
			CreatedAt: time.Now().Format(time.RFC3339),
			Counts:    countsMap(result.Counts),
			Checksum:  result.Checksum,
			Encrypted: result.Encrypted,
		},
	}, nil
}

func (s *Server) handleListExports(ctx context.Context, _ *ListExportsInput) (*ListExportsOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	exports, err := s.services.Exchange.ListExports(ctx, user.TeamID)
	if err != nil {
		return nil, err
	}

	resp := make([]ExportResponse, len(exports))
	for i, e := range exports {
		resp[i] = ExportResponse{
			ID:        e.ID,
			Size:      e.Size,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	return &ListExportsOutput{Body: resp}, nil
}

func (s *Server) handleGetExport(ctx context.Context, input *GetExportInput) (*GetExportOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	info, err := s.services.Exchange.GetExport(ctx, user.TeamID, input.ID)
	if err != nil {
		return nil, err
	}

	return &GetExportOutput{
		Body: ExportResponse{
			ID:        info.ID,
			Size:      info.Size,
			CreatedAt: info.CreatedAt.Format(time.RFC3339),
		},
	}, nil
}

func (s *Server) handleDownloadExport(ctx context.Context, input *DownloadExportInput) (*huma.StreamResponse, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	info, err := s.services.Exchange.GetExport(ctx, user.TeamID, input.ID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to open export file", err)
	}

	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			ctx.SetHeader("Content-Type", "application/json")
			ctx.SetHeader("Content-Disposition", "attachment; filename=\""+info.ID+".quoteline.json\"")
			io.Copy(ctx.BodyWriter(), f)
			f.Close()
		},
	}, nil
}

func (s *Server) handleDeleteExport(ctx context.Context, input *DeleteExportInput) (*DeleteExportOutput, error) {
	user, err := s.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Exchange.DeleteExport(ctx, user.TeamID, user.ID, input.ID); err != nil {
		return nil, err
	}

	out := &DeleteExportOutput{}
	out.Body.Message = "Export deleted"
	return out, nil
}

func (s *Server) handleValidateExport(ctx context.Context, input *ValidateExportInput) (*ValidateExportOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	manifest, validation, err := s.services.Exchange.ValidateExport(ctx, user.TeamID, input.ID, input.Body.Passphrase)
	if err != nil {
		return nil, err
	}

	return &ValidateExportOutput{
		Body: ValidationResponse{
			Valid:          validation.Valid,
			Version:        manifest.Version,
			SourceTeamID:   manifest.SourceTeamID,
			SourceTeamName: manifest.SourceTeamName,
			ExportedBy:     manifest.ExportedBy,
			Description:    manifest.Description,
			ExpectedCounts: countsMap(manifest.Counts),
			Errors:         validation.Errors,
			Warnings:       validation.Warnings,
		},
	}, nil
}

func (s *Server) handlePreviewConflicts(ctx context.Context, input *PreviewConflictsInput) (*PreviewConflictsOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.services.Exchange.PreviewConflicts(ctx, user.TeamID, input.ID, input.Body.Passphrase)
	if err != nil {
		return nil, err
	}

	out := &PreviewConflictsOutput{}
	out.Body.Conflicts = conflictResponses(conflicts)
	return out, nil
}

func (s *Server) handleImport(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
	user, err := s.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	resolutions := make(map[string]exchange.Resolution, len(input.Body.Resolutions))
	for entityID, r := range input.Body.Resolutions {
		resolution := exchange.Resolution(r)
		if !resolution.Valid() {
			return nil, huma.Error422UnprocessableEntity("unknown resolution " + r + " for " + entityID)
		}
		resolutions[entityID] = resolution
	}

	result, err := s.services.Exchange.Import(ctx, user.TeamID, user.ID, input.ID, exchange.ImportOptions{
		Resolutions: resolutions,
		Passphrase:  input.Body.Passphrase,
		DryRun:      input.Body.DryRun,
	})
	if err != nil {
		return nil, err
	}

	importErrors := make([]ImportErrorResponse, len(result.Errors))
	for i, e := range result.Errors {
		importErrors[i] = ImportErrorResponse{
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Error:      e.Error,
		}
	}

	return &ImportOutput{
		Body: ImportResponse{
			Imported:    result.Imported,
			Updated:     result.Updated,
			Skipped:     result.Skipped,
			Errors:      importErrors,
			Warnings:    result.Warnings,
			Conflicts:   conflictResponses(result.Conflicts),
			DryRun:      result.DryRun,
			Duration:    result.Duration.String(),
			CompletedAt: result.CompletedAt.Format(time.RFC3339),
		},
	}, nil
}

func (s *Server) handleUploadBundle(ctx context.Context, input *UploadBundleInput) (*UploadBundleOutput, error) {
	user, err := s.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(input.Body.Data)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("data is not valid base64")
	}

	info, err := s.services.Exchange.SaveUpload(ctx, user.TeamID, user.ID, raw)
	if err != nil {
		return nil, err
	}

	return &UploadBundleOutput{
		Body: ExportResponse{
			ID:        info.ID,
			Size:      info.Size,
			CreatedAt: info.CreatedAt.Format(time.RFC3339),
		},
	}, nil
}
