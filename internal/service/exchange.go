package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quotelineapp/quoteline-server/internal/audit"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/exchange"
	"github.com/quotelineapp/quoteline-server/internal/exchange/export"
	exchangeimport "github.com/quotelineapp/quoteline-server/internal/exchange/import"
	"github.com/quotelineapp/quoteline-server/internal/storage"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

// exportFileSuffix names bundle files on disk. The UUID in front of it is
// the export's ID.
const exportFileSuffix = ".quoteline.json"

// ExchangeService manages export bundle files and applies imports. Exports
// live under {exportDir}/{teamID}/ so one tenant can never list or fetch
// another tenant's files. Both directions require the caller to be an admin
// of the team they operate on.
type ExchangeService struct {
	store     *store.Store
	audit     *audit.Log
	exportDir string
	version   string
	logger    *slog.Logger
	exporter  *export.Exporter
	importer  *exchangeimport.Importer
}

// NewExchangeService creates an ExchangeService.
func NewExchangeService(s *store.Store, st *storage.Storage, al *audit.Log, exportDir, version string, batchSize int, logger *slog.Logger) *ExchangeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExchangeService{
		store:     s,
		audit:     al,
		exportDir: exportDir,
		version:   version,
		logger:    logger,
		exporter:  export.New(s, st, al, exportDir, version, logger),
		importer:  exchangeimport.New(s, st, batchSize, logger),
	}
}

// ExportInfo describes one export file on disk.
type ExportInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportResult is returned from a freshly created export.
type ExportResult struct {
	ID        string          `json:"id"`
	Path      string          `json:"-"`
	Size      int64           `json:"size"`
	Counts    exchange.Counts `json:"counts"`
	Duration  time.Duration   `json:"duration"`
	Checksum  string          `json:"checksum"`
	Encrypted bool            `json:"encrypted"`
}

// CreateExport builds a bundle for the team and writes it into the team's
// export directory under a fresh UUID.
func (s *ExchangeService) CreateExport(ctx context.Context, teamID, actorID string, opts exchange.ExportOptions) (*ExportResult, error) {
	if err := s.requireAdmin(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	teamDir := s.teamDir(teamID)
	if err := os.MkdirAll(teamDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	exportID := uuid.NewString()
	opts.OutputPath = filepath.Join(teamDir, exportID+exportFileSuffix)

	s.logger.Info("creating export",
		"team_id", teamID,
		"export_id", exportID,
		"include_attachments", opts.Include.Attachments,
		"include_activity", opts.Include.Activity)

	result, err := s.exporter.Export(ctx, teamID, actorID, opts)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export complete",
		"export_id", exportID,
		"size", result.Size,
		"duration", result.Duration,
		"checksum", result.Checksum)

	if s.audit != nil {
		s.audit.RecordBestEffort(ctx, &audit.Entry{
			TeamID: teamID,
			UserID: actorID,
			Action: "exchange.export",
			Detail: exportID,
		})
	}

	return &ExportResult{
		ID:        exportID,
		Path:      result.Path,
		Size:      result.Size,
		Counts:    result.Counts,
		Duration:  result.Duration,
		Checksum:  result.Checksum,
		Encrypted: result.Encrypted,
	}, nil
}

// ListExports returns the team's export files, newest first.
func (s *ExchangeService) ListExports(ctx context.Context, teamID string) ([]ExportInfo, error) {
	entries, err := os.ReadDir(s.teamDir(teamID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var exports []ExportInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), exportFileSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		exports = append(exports, ExportInfo{
			ID:        strings.TrimSuffix(entry.Name(), exportFileSuffix),
			Path:      filepath.Join(s.teamDir(teamID), entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(exports, func(i, j int) bool {
		return exports[i].CreatedAt.After(exports[j].CreatedAt)
	})

	return exports, nil
}

// GetExport returns one export file by ID.
func (s *ExchangeService) GetExport(ctx context.Context, teamID, exportID string) (*ExportInfo, error) {
	path, err := s.exportPath(teamID, exportID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundf("export %s not found", exportID)
		}
		return nil, err
	}

	return &ExportInfo{
		ID:        exportID,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// DeleteExport removes an export file.
func (s *ExchangeService) DeleteExport(ctx context.Context, teamID, actorID, exportID string) error {
	if err := s.requireAdmin(ctx, teamID, actorID); err != nil {
		return err
	}

	path, err := s.exportPath(teamID, exportID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return apperrors.NotFoundf("export %s not found", exportID)
		}
		return err
	}
	return os.Remove(path)
}

// ValidateExport reads a bundle file and runs structural validation without
// touching any data.
func (s *ExchangeService) ValidateExport(ctx context.Context, teamID, exportID, passphrase string) (*exchange.Manifest, *exchangeimport.ValidationResult, error) {
	bundle, err := s.readBundle(teamID, exportID, passphrase)
	if err != nil {
		return nil, nil, err
	}
	return &bundle.Manifest, exchangeimport.Validate(bundle), nil
}

// PreviewConflicts reports the conflicts an import of the bundle into the
// team would encounter, so the caller can choose resolutions up front.
func (s *ExchangeService) PreviewConflicts(ctx context.Context, teamID, exportID, passphrase string) ([]exchange.Conflict, error) {
	bundle, err := s.readBundle(teamID, exportID, passphrase)
	if err != nil {
		return nil, err
	}
	return exchange.DetectConflicts(ctx, s.store, teamID, bundle)
}

// Import applies an export file to the team.
func (s *ExchangeService) Import(ctx context.Context, teamID, actorID, exportID string, opts exchange.ImportOptions) (*exchangeimport.Result, error) {
	if err := s.requireAdmin(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	bundle, err := s.readBundle(teamID, exportID, opts.Passphrase)
	if err != nil {
		return nil, err
	}

	s.logger.Info("importing bundle",
		"team_id", teamID,
		"export_id", exportID,
		"source_team", bundle.Manifest.SourceTeamID,
		"dry_run", opts.DryRun)

	result, err := s.importer.Apply(ctx, teamID, bundle, opts)
	if err != nil {
		return nil, err
	}

	if s.audit != nil && !opts.DryRun {
		s.audit.RecordBestEffort(ctx, &audit.Entry{
			TeamID: teamID,
			UserID: actorID,
			Action: "exchange.import",
			Detail: fmt.Sprintf("%s from team %s", exportID, bundle.Manifest.SourceTeamID),
		})
	}
	return result, nil
}

// SaveUpload stores an uploaded bundle file in the team's export directory
// and returns its info, so cross-team transfers go through the same listing
// and import path as local exports.
func (s *ExchangeService) SaveUpload(ctx context.Context, teamID, actorID string, raw []byte) (*ExportInfo, error) {
	if err := s.requireAdmin(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	teamDir := s.teamDir(teamID)
	if err := os.MkdirAll(teamDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	exportID := uuid.NewString()
	path := filepath.Join(teamDir, exportID+exportFileSuffix)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return s.GetExport(ctx, teamID, exportID)
}

// GetExportPath returns the on-disk path for an export ID.
func (s *ExchangeService) GetExportPath(teamID, exportID string) (string, error) {
	return s.exportPath(teamID, exportID)
}

func (s *ExchangeService) teamDir(teamID string) string {
	return filepath.Join(s.exportDir, teamID)
}

// exportPath rejects IDs that are not bare UUIDs so a crafted ID can never
// escape the team's directory.
func (s *ExchangeService) exportPath(teamID, exportID string) (string, error) {
	if _, err := uuid.Parse(exportID); err != nil {
		return "", apperrors.Validationf("invalid export id %q", exportID)
	}
	return filepath.Join(s.teamDir(teamID), exportID+exportFileSuffix), nil
}

func (s *ExchangeService) readBundle(teamID, exportID, passphrase string) (*exchange.Bundle, error) {
	path, err := s.exportPath(teamID, exportID)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundf("export %s not found", exportID)
		}
		return nil, fmt.Errorf("read export file: %w", err)
	}
	return exchangeimport.ReadBundle(raw, passphrase)
}

// requireAdmin verifies the actor is an admin of the team being operated on.
func (s *ExchangeService) requireAdmin(ctx context.Context, teamID, actorID string) error {
	user, err := s.store.Users.Get(ctx, actorID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if user.TeamID != teamID || !user.IsAdmin() {
		return apperrors.Forbidden("catalog exchange requires a team admin")
	}
	return nil
}
