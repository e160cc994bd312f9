// Package export builds exchange bundles from a team's catalog.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"encoding/json/v2"

	"github.com/quotelineapp/quoteline-server/internal/audit"
	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/exchange"
	"github.com/quotelineapp/quoteline-server/internal/storage"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

// Result contains the outcome of an export operation.
type Result struct {
	Path      string
	Size      int64
	Counts    exchange.Counts
	Duration  time.Duration
	Checksum  string
	Encrypted bool
}

// Exporter creates exchange bundles.
type Exporter struct {
	store     *store.Store
	storage   *storage.Storage
	audit     *audit.Log
	exportDir string
	version   string
	logger    *slog.Logger
}

// New creates an Exporter. The audit log may be nil; activity inclusion is
// then silently a no-op.
func New(s *store.Store, st *storage.Storage, al *audit.Log, exportDir, version string, logger *slog.Logger) *Exporter {
	return &Exporter{store: s, storage: st, audit: al, exportDir: exportDir, version: version, logger: logger}
}

// Export writes one team's catalog to a bundle file. Any extraction failure
// aborts the whole export; there are no partial bundles.
func (e *Exporter) Export(ctx context.Context, teamID, actorID string, opts exchange.ExportOptions) (*Result, error) {
	start := time.Now()

	team, err := e.store.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("load team: %w", err)
	}

	bundle := &exchange.Bundle{
		Manifest: exchange.Manifest{
			Version:        exchange.FormatVersion,
			ExportedAt:     time.Now().UTC(),
			SourceTeamID:   teamID,
			SourceTeamName: team.Name,
			ExportedBy:     actorID,
			Description:    opts.Description,
			AppVersion:     e.version,
			Includes:       opts.Include,
		},
	}

	if err := e.collectData(ctx, teamID, opts.Include, bundle); err != nil {
		return nil, err
	}

	bundle.Relationships = exchange.BuildRelationships(&bundle.Data)

	// Counts go in last so they always reflect what was actually collected.
	bundle.Manifest.Counts = bundle.CountData()

	payload, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}

	encrypted := opts.Passphrase != ""
	if encrypted {
		payload, err = exchange.Encrypt(payload, opts.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("encrypt bundle: %w", err)
		}
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(e.exportDir, fmt.Sprintf("quoteline-%s-%s.json", teamID, time.Now().UTC().Format("20060102-150405")))
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	checksum, size, err := writeAtomic(outputPath, payload)
	if err != nil {
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info("Export complete",
			"team_id", teamID,
			"path", outputPath,
			"size", size,
			"encrypted", encrypted,
			"duration", time.Since(start))
	}

	return &Result{
		Path:      outputPath,
		Size:      size,
		Counts:    bundle.Manifest.Counts,
		Duration:  time.Since(start),
		Checksum:  checksum,
		Encrypted: encrypted,
	}, nil
}

// collectData fills the bundle's arrays per the include flags, in
// dependency order.
func (e *Exporter) collectData(ctx context.Context, teamID string, include exchange.Includes, bundle *exchange.Bundle) error {
	data := &bundle.Data

	collectSteps := []struct {
		name    string
		enabled bool
		fn      func() error
	}{
		{"components", include.Components, func() error {
			if err := collect(ctx, e.store.Components, teamID, &data.Components); err != nil {
				return err
			}
			// Stable output: oldest first.
			slices.SortFunc(data.Components, func(a, b domain.Component) int {
				return a.CreatedAt.Compare(b.CreatedAt)
			})
			return nil
		}},
		{"assemblies", include.Assemblies, func() error {
			return collect(ctx, e.store.Assemblies, teamID, &data.Assemblies)
		}},
		{"assembly_components", include.Assemblies, func() error {
			return collect(ctx, e.store.AssemblyComponents, teamID, &data.AssemblyComponents)
		}},
		{"quotations", include.Quotations, func() error {
			return collect(ctx, e.store.Quotations, teamID, &data.Quotations)
		}},
		{"quotation_systems", include.Quotations, func() error {
			// Systems are scoped to the quotations actually exported, not
			// scanned team-wide, so orphaned rows never leak into a bundle.
			for idx := range data.Quotations {
				if err := collectByLookup(ctx, e.store.QuotationSystems, teamID, "quotation", data.Quotations[idx].ID, &data.QuotationSystems); err != nil {
					return err
				}
			}
			return nil
		}},
		{"quotation_items", include.Quotations, func() error {
			for idx := range data.QuotationSystems {
				if err := collectByLookup(ctx, e.store.QuotationItems, teamID, "system", data.QuotationSystems[idx].ID, &data.QuotationItems); err != nil {
					return err
				}
			}
			return nil
		}},
		{"settings", include.Settings, func() error {
			return e.collectSettings(ctx, teamID, data)
		}},
		{"attachments", include.Attachments, func() error {
			return e.collectAttachments(ctx, teamID, bundle)
		}},
		{"activity", include.Activity && e.audit != nil, func() error {
			return e.collectActivity(ctx, teamID, data)
		}},
	}

	for _, step := range collectSteps {
		if !step.enabled {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := step.fn(); err != nil {
			return fmt.Errorf("export %s: %w", step.name, err)
		}
	}
	return nil
}

// collect drains one entity type's team scan into a slice.
func collect[T any](ctx context.Context, e *store.ScopedEntity[T], teamID string, dest *[]T) error {
	for entity, err := range e.ListByTeam(ctx, teamID) {
		if err != nil {
			return err
		}
		*dest = append(*dest, *entity)
	}
	return nil
}

// collectByLookup drains one parent's child rows into a slice.
func collectByLookup[T any](ctx context.Context, e *store.ScopedEntity[T], teamID, lookup, value string, dest *[]T) error {
	for entity, err := range e.ListByLookup(ctx, teamID, lookup, value) {
		if err != nil {
			return err
		}
		*dest = append(*dest, *entity)
	}
	return nil
}

// collectSettings synthesizes the settings section rather than dumping the
// stored row: the category list is rebuilt from the components actually in
// the bundle so it never references categories the reader cannot see.
func (e *Exporter) collectSettings(ctx context.Context, teamID string, data *exchange.Data) error {
	settings := &domain.TeamSettings{TeamID: teamID}
	settings.ID = teamID

	for stored, err := range e.store.Settings.ListByTeam(ctx, teamID) {
		if err != nil {
			return err
		}
		settings = stored
		break
	}

	settings.Categories = distinctCategories(data.Components)
	data.Settings = settings
	return nil
}

func distinctCategories(components []domain.Component) []string {
	seen := make(map[string]bool)
	var categories []string
	for i := range components {
		cat := components[i].Category
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		categories = append(categories, cat)
	}
	slices.Sort(categories)
	return categories
}

// collectAttachments reads each attachment's bytes from blob storage and
// inlines them base64 encoded. Rows whose file is missing are skipped with a
// warning rather than failing the whole export.
func (e *Exporter) collectAttachments(ctx context.Context, teamID string, bundle *exchange.Bundle) error {
	for att, err := range e.store.Attachments.ListByTeam(ctx, teamID) {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		blob, err := e.storage.Get(teamID, att.StoragePath)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("Skipping attachment with missing file", "attachment_id", att.ID, "path", att.StoragePath)
			}
			continue
		}

		bundle.Attachments = append(bundle.Attachments, exchange.Attachment{
			ID:               att.ID,
			EntityType:       att.EntityType,
			EntityID:         att.EntityID,
			OriginalFilename: att.OriginalFilename,
			Filename:         att.Filename,
			ContentType:      att.ContentType,
			Data:             base64.StdEncoding.EncodeToString(blob),
		})
	}
	return nil
}

// activityExportLimit caps the archived audit trail. Bundles are catalog
// transfers, not log shipping.
const activityExportLimit = 10000

func (e *Exporter) collectActivity(ctx context.Context, teamID string, data *exchange.Data) error {
	entries, err := e.audit.ListByTeam(ctx, teamID, activityExportLimit, nil)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		data.Activities = append(data.Activities, *entry)
	}
	return nil
}

// writeAtomic writes payload to path via a temp file and rename, returning
// the SHA-256 checksum and size of the written file.
func writeAtomic(path string, payload []byte) (string, int64, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmpPath) // Clean up on failure
	defer f.Close()

	hash := sha256.New()
	mw := io.MultiWriter(f, hash)
	if _, err := mw.Write(payload); err != nil {
		return "", 0, fmt.Errorf("write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("close export file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return "", 0, fmt.Errorf("rename export file: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), int64(len(payload)), nil
}
