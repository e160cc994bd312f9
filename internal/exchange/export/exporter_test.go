package export_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"encoding/json/v2"

	"github.com/stretchr/testify/require"

	"github.com/quotelineapp/quoteline-server/internal/audit"
	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/exchange"
	"github.com/quotelineapp/quoteline-server/internal/exchange/export"
	"github.com/quotelineapp/quoteline-server/internal/storage"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

type exportFixture struct {
	exporter  *export.Exporter
	store     *store.Store
	storage   *storage.Storage
	audit     *audit.Log
	exportDir string
}

func setupExporter(t *testing.T) *exportFixture {
	t.Helper()

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	st, err := storage.NewStorage(filepath.Join(tmpDir, "blobs"))
	require.NoError(t, err)

	al, err := audit.Open(filepath.Join(tmpDir, "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = al.Close() })

	exportDir := filepath.Join(tmpDir, "exports")
	return &exportFixture{
		exporter:  export.New(s, st, al, exportDir, "0.3.0", nil),
		store:     s,
		storage:   st,
		audit:     al,
		exportDir: exportDir,
	}
}

func seedTeam(t *testing.T, s *store.Store, teamID string) {
	t.Helper()
	ctx := context.Background()

	team := &domain.Team{Name: "Acme Controls"}
	team.ID = teamID
	require.NoError(t, s.Teams.Create(ctx, teamID, team))

	cmp := &domain.Component{
		TeamID:           teamID,
		Name:             "CPU 1512SP-1 PN",
		Manufacturer:     "Siemens",
		PartNumber:       "6ES7 512-1DK01-0AB0",
		Category:         "PLC",
		OriginalCurrency: "EUR",
		OriginalCost:     1450,
	}
	cmp.ID = "cmp-1"
	require.NoError(t, s.Components.Create(ctx, teamID, cmp.ID, cmp))

	asm := &domain.Assembly{TeamID: teamID, Name: "PLC base rack"}
	asm.ID = "asm-1"
	require.NoError(t, s.Assemblies.Create(ctx, teamID, asm.ID, asm))

	link := &domain.AssemblyComponent{TeamID: teamID, AssemblyID: "asm-1", ComponentID: "cmp-1", Quantity: 1}
	link.ID = "asmc-1"
	require.NoError(t, s.AssemblyComponents.Create(ctx, teamID, link.ID, link))

	quo := &domain.Quotation{TeamID: teamID, Number: "Q-2026-001", Status: domain.QuotationDraft, Currency: "EUR"}
	quo.ID = "quo-1"
	require.NoError(t, s.Quotations.Create(ctx, teamID, quo.ID, quo))

	sys := &domain.QuotationSystem{TeamID: teamID, QuotationID: "quo-1", Name: "Main cabinet"}
	sys.ID = "sys-1"
	require.NoError(t, s.QuotationSystems.Create(ctx, teamID, sys.ID, sys))

	item := &domain.QuotationItem{TeamID: teamID, SystemID: "sys-1", ComponentID: "cmp-1", Name: "CPU", Quantity: 2, UnitCost: 1450}
	item.ID = "itm-1"
	require.NoError(t, s.QuotationItems.Create(ctx, teamID, item.ID, item))

	settings := &domain.TeamSettings{TeamID: teamID, BaseCurrency: "EUR", ExchangeRates: domain.RateTable{"EUR": 1, "USD": 1.08}}
	settings.ID = teamID
	require.NoError(t, s.Settings.Create(ctx, teamID, settings.ID, settings))
}

func TestExport(t *testing.T) {
	fx := setupExporter(t)
	seedTeam(t, fx.store, "team-1")

	result, err := fx.exporter.Export(context.Background(), "team-1", "user-admin", exchange.ExportOptions{
		Include:     exchange.DefaultIncludes(),
		Description: "August catalog handover",
	})
	require.NoError(t, err)
	require.False(t, result.Encrypted)
	require.NotEmpty(t, result.Checksum)
	require.Equal(t, fx.exportDir, filepath.Dir(result.Path))

	raw, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	require.Equal(t, int64(len(raw)), result.Size)
	require.False(t, exchange.IsEncrypted(raw))

	var bundle exchange.Bundle
	require.NoError(t, json.Unmarshal(raw, &bundle))

	require.Equal(t, exchange.FormatVersion, bundle.Manifest.Version)
	require.Equal(t, "team-1", bundle.Manifest.SourceTeamID)
	require.Equal(t, "Acme Controls", bundle.Manifest.SourceTeamName)
	require.Equal(t, "user-admin", bundle.Manifest.ExportedBy)
	require.Equal(t, "August catalog handover", bundle.Manifest.Description)
	require.Equal(t, "0.3.0", bundle.Manifest.AppVersion)
	require.True(t, bundle.Manifest.Includes.Settings)
	require.False(t, bundle.Manifest.Includes.Attachments)

	require.Equal(t, 1, bundle.Manifest.Counts.Components)
	require.Equal(t, 1, bundle.Manifest.Counts.Quotations)
	require.Equal(t, bundle.CountData(), bundle.Manifest.Counts)

	// Settings are synthesized: the category list reflects the exported
	// components, not whatever the stored row happened to carry.
	require.NotNil(t, bundle.Data.Settings)
	require.Equal(t, "EUR", bundle.Data.Settings.BaseCurrency)
	require.Equal(t, []string{"PLC"}, bundle.Data.Settings.Categories)

	require.Equal(t, []string{"asmc-1"}, bundle.Relationships.AssemblyComponents["asm-1"])
	require.Equal(t, []string{"itm-1"}, bundle.Relationships.ComponentItems["cmp-1"])
	require.Equal(t, []string{"asm-1"}, bundle.Relationships.ComponentAssemblies["cmp-1"])
}

func TestExport_IncludeFlagsLimitScope(t *testing.T) {
	fx := setupExporter(t)
	seedTeam(t, fx.store, "team-1")

	result, err := fx.exporter.Export(context.Background(), "team-1", "user-admin", exchange.ExportOptions{
		Include: exchange.Includes{Components: true},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Counts.Components)
	require.Zero(t, result.Counts.Assemblies)
	require.Zero(t, result.Counts.Quotations)

	raw, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	var bundle exchange.Bundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	require.Empty(t, bundle.Data.Quotations)
	require.Nil(t, bundle.Data.Settings)
}

func TestExport_WithAttachments(t *testing.T) {
	fx := setupExporter(t)
	seedTeam(t, fx.store, "team-1")
	ctx := context.Background()

	path, err := fx.storage.Save("team-1", "quote.pdf", []byte("%PDF-1.4 fake"))
	require.NoError(t, err)

	att := &domain.Attachment{
		TeamID:      "team-1",
		EntityType:  "component",
		EntityID:    "cmp-1",
		Filename:    "quote.pdf",
		ContentType: "application/pdf",
		Size:        13,
		StoragePath: path,
	}
	att.ID = "att-1"
	require.NoError(t, fx.store.Attachments.Create(ctx, "team-1", att.ID, att))

	// A metadata row without a file should be skipped, not fail the export.
	orphan := &domain.Attachment{TeamID: "team-1", EntityType: "component", EntityID: "cmp-1", Filename: "gone.pdf", StoragePath: "missing/gone.pdf"}
	orphan.ID = "att-2"
	require.NoError(t, fx.store.Attachments.Create(ctx, "team-1", orphan.ID, orphan))

	include := exchange.DefaultIncludes()
	include.Attachments = true
	result, err := fx.exporter.Export(ctx, "team-1", "user-admin", exchange.ExportOptions{Include: include})
	require.NoError(t, err)
	require.Equal(t, 1, result.Counts.Attachments)

	raw, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	var bundle exchange.Bundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	require.Len(t, bundle.Attachments, 1)
	require.Equal(t, "att-1", bundle.Attachments[0].ID)
	require.NotEmpty(t, bundle.Attachments[0].Data)
}

func TestExport_SkipsOrphanedQuotationChildren(t *testing.T) {
	fx := setupExporter(t)
	seedTeam(t, fx.store, "team-1")
	ctx := context.Background()

	// Children are gathered per exported parent, so rows pointing at a
	// quotation that no longer exists stay out of the bundle.
	stray := &domain.QuotationSystem{TeamID: "team-1", QuotationID: "quo-gone", Name: "Stray"}
	stray.ID = "sys-stray"
	require.NoError(t, fx.store.QuotationSystems.Create(ctx, "team-1", stray.ID, stray))

	strayItem := &domain.QuotationItem{TeamID: "team-1", SystemID: "sys-stray", Name: "Stray line", Quantity: 1}
	strayItem.ID = "itm-stray"
	require.NoError(t, fx.store.QuotationItems.Create(ctx, "team-1", strayItem.ID, strayItem))

	result, err := fx.exporter.Export(ctx, "team-1", "user-admin", exchange.ExportOptions{Include: exchange.DefaultIncludes()})
	require.NoError(t, err)
	require.Equal(t, 1, result.Counts.QuotationSystems)
	require.Equal(t, 1, result.Counts.QuotationItems)

	raw, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	var bundle exchange.Bundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	require.Len(t, bundle.Data.QuotationSystems, 1)
	require.Equal(t, "sys-1", bundle.Data.QuotationSystems[0].ID)
	require.Len(t, bundle.Data.QuotationItems, 1)
	require.Equal(t, "itm-1", bundle.Data.QuotationItems[0].ID)
}

func TestExport_WithActivity(t *testing.T) {
	fx := setupExporter(t)
	seedTeam(t, fx.store, "team-1")
	ctx := context.Background()

	require.NoError(t, fx.audit.Record(ctx, &audit.Entry{
		TeamID:     "team-1",
		UserID:     "user-admin",
		Action:     "component.create",
		EntityType: "component",
		EntityID:   "cmp-1",
	}))

	include := exchange.DefaultIncludes()
	include.Activity = true
	result, err := fx.exporter.Export(ctx, "team-1", "user-admin", exchange.ExportOptions{Include: include})
	require.NoError(t, err)
	require.Equal(t, 1, result.Counts.Activities)

	raw, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	var bundle exchange.Bundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	require.Len(t, bundle.Data.Activities, 1)
	require.Equal(t, "component.create", bundle.Data.Activities[0].Action)
}

func TestExport_Encrypted(t *testing.T) {
	fx := setupExporter(t)
	seedTeam(t, fx.store, "team-1")

	result, err := fx.exporter.Export(context.Background(), "team-1", "user-admin", exchange.ExportOptions{
		Include:    exchange.DefaultIncludes(),
		Passphrase: "hunter2 but longer",
	})
	require.NoError(t, err)
	require.True(t, result.Encrypted)

	raw, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	require.True(t, exchange.IsEncrypted(raw))
	require.NotContains(t, string(raw), "Siemens")

	plain, err := exchange.Decrypt(raw, "hunter2 but longer")
	require.NoError(t, err)
	var bundle exchange.Bundle
	require.NoError(t, json.Unmarshal(plain, &bundle))
	require.Equal(t, 1, bundle.Manifest.Counts.Components)
}

func TestExport_UnknownTeam(t *testing.T) {
	fx := setupExporter(t)

	_, err := fx.exporter.Export(context.Background(), "team-missing", "user-admin", exchange.ExportOptions{Include: exchange.DefaultIncludes()})
	require.Error(t, err)
}
