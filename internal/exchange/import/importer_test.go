package exchangeimport_test

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/exchange"
	"github.com/quotelineapp/quoteline-server/internal/exchange/export"
	exchangeimport "github.com/quotelineapp/quoteline-server/internal/exchange/import"
	"github.com/quotelineapp/quoteline-server/internal/id"
	"github.com/quotelineapp/quoteline-server/internal/storage"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

func setupImporter(t *testing.T) (*exchangeimport.Importer, *store.Store, *storage.Storage) {
	t.Helper()

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	st, err := storage.NewStorage(filepath.Join(tmpDir, "blobs"))
	require.NoError(t, err)

	return exchangeimport.New(s, st, 100, nil), s, st
}

func countByTeam[T any](t *testing.T, e *store.ScopedEntity[T], teamID string) int {
	t.Helper()
	n, err := e.CountByTeam(context.Background(), teamID)
	require.NoError(t, err)
	return n
}

func listByTeam[T any](t *testing.T, e *store.ScopedEntity[T], teamID string) []*T {
	t.Helper()
	var rows []*T
	for row, err := range e.ListByTeam(context.Background(), teamID) {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func TestApply_CrossTeamImportMintsFreshIDs(t *testing.T) {
	importer, s, _ := setupImporter(t)
	ctx := context.Background()

	result, err := importer.Apply(ctx, "team-dst", validBundle(), exchange.ImportOptions{})
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Empty(t, result.Conflicts)

	require.Equal(t, 1, result.Imported["components"])
	require.Equal(t, 1, result.Imported["assemblies"])
	require.Equal(t, 1, result.Imported["assembly_components"])
	require.Equal(t, 1, result.Imported["quotations"])
	require.Equal(t, 1, result.Imported["quotation_systems"])
	require.Equal(t, 1, result.Imported["quotation_items"])

	// Every row lands under a fresh ID; source IDs never cross the team
	// boundary, conflicting or not.
	components := listByTeam(t, s.Components, "team-dst")
	require.Len(t, components, 1)
	require.NotEqual(t, "cmp-1", components[0].ID)
	require.Equal(t, id.PrefixComponent, id.Prefix(components[0].ID))
	require.Equal(t, "team-dst", components[0].TeamID)
	_, err = s.Components.Get(ctx, "team-dst", "cmp-1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	assemblies := listByTeam(t, s.Assemblies, "team-dst")
	require.Len(t, assemblies, 1)
	require.NotEqual(t, "asm-1", assemblies[0].ID)

	quotations := listByTeam(t, s.Quotations, "team-dst")
	require.Len(t, quotations, 1)
	require.NotEqual(t, "quo-1", quotations[0].ID)

	// References stay intact through the remap.
	var links []*domain.AssemblyComponent
	for ac, err := range s.AssemblyComponents.ListByLookup(ctx, "team-dst", "assembly", assemblies[0].ID) {
		require.NoError(t, err)
		links = append(links, ac)
	}
	require.Len(t, links, 1)
	require.NotEqual(t, "asmc-1", links[0].ID)
	require.Equal(t, id.PrefixAssemblyEntry, id.Prefix(links[0].ID))
	require.Equal(t, components[0].ID, links[0].ComponentID)

	var systems []*domain.QuotationSystem
	for qs, err := range s.QuotationSystems.ListByLookup(ctx, "team-dst", "quotation", quotations[0].ID) {
		require.NoError(t, err)
		systems = append(systems, qs)
	}
	require.Len(t, systems, 1)
	require.NotEqual(t, "sys-1", systems[0].ID)

	var items []*domain.QuotationItem
	for qi, err := range s.QuotationItems.ListByLookup(ctx, "team-dst", "system", systems[0].ID) {
		require.NoError(t, err)
		items = append(items, qi)
	}
	require.Len(t, items, 1)
	require.NotEqual(t, "itm-1", items[0].ID)
	require.Equal(t, components[0].ID, items[0].ComponentID)
}

func TestApply_DryRunWritesNothing(t *testing.T) {
	importer, s, _ := setupImporter(t)
	ctx := context.Background()

	existing := &domain.Component{TeamID: "team-dst", Name: "Old contactor"}
	existing.ID = "cmp-1"
	require.NoError(t, s.Components.Create(ctx, "team-dst", "cmp-1", existing))

	result, err := importer.Apply(ctx, "team-dst", validBundle(), exchange.ImportOptions{DryRun: true})
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Len(t, result.Conflicts, 1)
	require.Empty(t, result.Imported)

	require.Equal(t, 1, countByTeam(t, s.Components, "team-dst"))
	require.Equal(t, 0, countByTeam(t, s.Assemblies, "team-dst"))
}

func TestApply_CrossTeamConflictDefaultsToCreateNew(t *testing.T) {
	importer, s, _ := setupImporter(t)
	ctx := context.Background()

	existing := &domain.Component{TeamID: "team-dst", Name: "Old contactor"}
	existing.ID = "cmp-1"
	require.NoError(t, s.Components.Create(ctx, "team-dst", "cmp-1", existing))

	result, err := importer.Apply(ctx, "team-dst", validBundle(), exchange.ImportOptions{})
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	// Both rows survive: the destination's original and the incoming one
	// under a fresh ID.
	require.Equal(t, 2, countByTeam(t, s.Components, "team-dst"))
	kept, err := s.Components.Get(ctx, "team-dst", "cmp-1")
	require.NoError(t, err)
	require.Equal(t, "Old contactor", kept.Name)

	// References follow the remapped ID.
	assemblies := listByTeam(t, s.Assemblies, "team-dst")
	require.Len(t, assemblies, 1)

	var links []*domain.AssemblyComponent
	for ac, err := range s.AssemblyComponents.ListByLookup(ctx, "team-dst", "assembly", assemblies[0].ID) {
		require.NoError(t, err)
		links = append(links, ac)
	}
	require.Len(t, links, 1)
	require.NotEqual(t, "cmp-1", links[0].ComponentID)
	require.Equal(t, id.PrefixComponent, id.Prefix(links[0].ComponentID))

	imported, err := s.Components.Get(ctx, "team-dst", links[0].ComponentID)
	require.NoError(t, err)
	require.Equal(t, "Contactor", imported.Name)
}

func TestApply_SkipResolution(t *testing.T) {
	importer, s, _ := setupImporter(t)
	ctx := context.Background()

	existing := &domain.Component{TeamID: "team-dst", Name: "Old contactor"}
	existing.ID = "cmp-1"
	require.NoError(t, s.Components.Create(ctx, "team-dst", "cmp-1", existing))

	result, err := importer.Apply(ctx, "team-dst", validBundle(), exchange.ImportOptions{
		Resolutions: map[string]exchange.Resolution{"cmp-1": exchange.ResolutionSkip},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Skipped["components"])
	require.Equal(t, 0, result.Imported["components"])

	// The destination row is untouched and references resolve to it.
	require.Equal(t, 1, countByTeam(t, s.Components, "team-dst"))
	kept, err := s.Components.Get(ctx, "team-dst", "cmp-1")
	require.NoError(t, err)
	require.Equal(t, "Old contactor", kept.Name)

	assemblies := listByTeam(t, s.Assemblies, "team-dst")
	require.Len(t, assemblies, 1)

	var links []*domain.AssemblyComponent
	for ac, err := range s.AssemblyComponents.ListByLookup(ctx, "team-dst", "assembly", assemblies[0].ID) {
		require.NoError(t, err)
		links = append(links, ac)
	}
	require.Len(t, links, 1)
	require.Equal(t, "cmp-1", links[0].ComponentID)
}

func TestApply_SameTeamReimportReplacesChildren(t *testing.T) {
	importer, s, _ := setupImporter(t)
	ctx := context.Background()
	const teamID = "team-src" // same team the bundle came from

	quo := &domain.Quotation{TeamID: teamID, Number: "Q-1", Status: domain.QuotationSent, Currency: "EUR"}
	quo.ID = "quo-1"
	require.NoError(t, s.Quotations.Create(ctx, teamID, "quo-1", quo))

	for _, sysID := range []string{"sys-old-1", "sys-old-2"} {
		sys := &domain.QuotationSystem{TeamID: teamID, QuotationID: "quo-1", Name: "Stale"}
		sys.ID = sysID
		require.NoError(t, s.QuotationSystems.Create(ctx, teamID, sysID, sys))

		item := &domain.QuotationItem{TeamID: teamID, SystemID: sysID, Name: "Stale line", Quantity: 1}
		item.ID = "itm-" + sysID
		require.NoError(t, s.QuotationItems.Create(ctx, teamID, item.ID, item))
	}

	result, err := importer.Apply(ctx, teamID, validBundle(), exchange.ImportOptions{})
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Equal(t, 1, result.Updated["quotations"])

	// The stale child rows are gone; only the bundle's set remains, under
	// its original IDs.
	var systems []*domain.QuotationSystem
	for qs, err := range s.QuotationSystems.ListByLookup(ctx, teamID, "quotation", "quo-1") {
		require.NoError(t, err)
		systems = append(systems, qs)
	}
	require.Len(t, systems, 1)
	require.Equal(t, "sys-1", systems[0].ID)
	require.Equal(t, "Line 1", systems[0].Name)

	require.Equal(t, 1, countByTeam(t, s.QuotationItems, teamID))

	updated, err := s.Quotations.Get(ctx, teamID, "quo-1")
	require.NoError(t, err)
	require.Equal(t, domain.QuotationDraft, updated.Status)
}

func TestApply_SettingsMerge(t *testing.T) {
	importer, s, _ := setupImporter(t)
	ctx := context.Background()

	existing := &domain.TeamSettings{TeamID: "team-dst", BaseCurrency: "USD", NextQuotationSeq: 10}
	existing.ID = "team-dst"
	require.NoError(t, s.Settings.Create(ctx, "team-dst", "team-dst", existing))

	bundle := validBundle()
	incoming := &domain.TeamSettings{
		TeamID:           "team-src",
		BaseCurrency:     "EUR",
		ExchangeRates:    domain.RateTable{"EUR": 1, "USD": 1.08},
		Categories:       []string{"PLC", "Drives"},
		NextQuotationSeq: 5,
	}
	incoming.ID = "team-src"
	bundle.Data.Settings = incoming
	bundle.Manifest.Includes.Settings = true

	result, err := importer.Apply(ctx, "team-dst", bundle, exchange.ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, result.Imported["settings"])

	merged, err := s.Settings.Get(ctx, "team-dst", "team-dst")
	require.NoError(t, err)
	require.Equal(t, "EUR", merged.BaseCurrency)
	require.Equal(t, []string{"PLC", "Drives"}, merged.Categories)
	// The sequence never moves backwards.
	require.Equal(t, 10, merged.NextQuotationSeq)
}

func TestApply_Attachments(t *testing.T) {
	importer, s, st := setupImporter(t)
	ctx := context.Background()

	bundle := validBundle()
	bundle.Manifest.Includes.Attachments = true
	bundle.Attachments = []exchange.Attachment{
		{
			ID:         "att-1",
			EntityType: "component",
			EntityID:   "cmp-1",
			Filename:   "../sneaky quote.pdf",
			// Deliberately wrong: the importer must not trust it.
			ContentType: "image/png",
			Data:        base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake")),
		},
		{
			ID:         "att-2",
			EntityType: "component",
			EntityID:   "cmp-1",
			Data:       "!!! not base64 !!!",
		},
	}
	bundle.Manifest.Counts = bundle.CountData()

	result, err := importer.Apply(ctx, "team-dst", bundle, exchange.ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported["attachments"])
	require.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "att-2")

	components := listByTeam(t, s.Components, "team-dst")
	require.Len(t, components, 1)

	var rows []*domain.Attachment
	for a, err := range s.Attachments.ListByLookup(ctx, "team-dst", "entity", components[0].ID) {
		require.NoError(t, err)
		rows = append(rows, a)
	}
	require.Len(t, rows, 1)
	require.False(t, strings.Contains(rows[0].Filename, ".."))
	// The name as it arrived survives for display; the content type comes
	// from the extension, not the bundle's claim.
	require.Equal(t, "../sneaky quote.pdf", rows[0].OriginalFilename)
	require.Equal(t, "application/pdf", rows[0].ContentType)

	blob, err := st.Get("team-dst", rows[0].StoragePath)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4 fake"), blob)
}

func TestApply_RejectsBrokenBundle(t *testing.T) {
	importer, _, _ := setupImporter(t)

	bundle := validBundle()
	bundle.Manifest.Counts.Quotations = 9

	_, err := importer.Apply(context.Background(), "team-dst", bundle, exchange.ImportOptions{})
	require.ErrorIs(t, err, exchangeimport.ErrInvalidBundle)
}

func TestRoundTrip(t *testing.T) {
	// Export one team's catalog and apply it to a different team on a
	// separate store.
	srcDir := t.TempDir()
	src, err := store.New(filepath.Join(srcDir, "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	srcBlobs, err := storage.NewStorage(filepath.Join(srcDir, "blobs"))
	require.NoError(t, err)

	ctx := context.Background()
	team := &domain.Team{Name: "Source Controls"}
	team.ID = "team-src"
	require.NoError(t, src.Teams.Create(ctx, "team-src", team))

	bundleSrc := validBundle()
	for idx := range bundleSrc.Data.Components {
		c := bundleSrc.Data.Components[idx]
		require.NoError(t, src.Components.Create(ctx, "team-src", c.ID, &c))
	}
	for idx := range bundleSrc.Data.Assemblies {
		a := bundleSrc.Data.Assemblies[idx]
		require.NoError(t, src.Assemblies.Create(ctx, "team-src", a.ID, &a))
	}
	for idx := range bundleSrc.Data.AssemblyComponents {
		ac := bundleSrc.Data.AssemblyComponents[idx]
		require.NoError(t, src.AssemblyComponents.Create(ctx, "team-src", ac.ID, &ac))
	}
	for idx := range bundleSrc.Data.Quotations {
		q := bundleSrc.Data.Quotations[idx]
		require.NoError(t, src.Quotations.Create(ctx, "team-src", q.ID, &q))
	}
	for idx := range bundleSrc.Data.QuotationSystems {
		qs := bundleSrc.Data.QuotationSystems[idx]
		require.NoError(t, src.QuotationSystems.Create(ctx, "team-src", qs.ID, &qs))
	}
	for idx := range bundleSrc.Data.QuotationItems {
		qi := bundleSrc.Data.QuotationItems[idx]
		require.NoError(t, src.QuotationItems.Create(ctx, "team-src", qi.ID, &qi))
	}

	exporter := export.New(src, srcBlobs, nil, filepath.Join(srcDir, "exports"), "0.3.0", nil)
	exported, err := exporter.Export(ctx, "team-src", "user-admin", exchange.ExportOptions{
		Include:    exchange.DefaultIncludes(),
		Passphrase: "between twin teams",
	})
	require.NoError(t, err)

	importer, dst, _ := setupImporter(t)

	raw, err := os.ReadFile(exported.Path)
	require.NoError(t, err)
	bundle, err := exchangeimport.ReadBundle(raw, "between twin teams")
	require.NoError(t, err)

	result, err := importer.Apply(ctx, "team-dst", bundle, exchange.ImportOptions{})
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Equal(t, 1, result.Imported["components"])
	require.Equal(t, 1, result.Imported["quotations"])

	require.Equal(t, 1, countByTeam(t, dst.Components, "team-dst"))
	require.Equal(t, 1, countByTeam(t, dst.QuotationItems, "team-dst"))
	// Nothing leaked into other tenants.
	require.Equal(t, 0, countByTeam(t, dst.Components, "team-src"))
}
