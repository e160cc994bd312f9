package exchangeimport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/exchange"
	"github.com/quotelineapp/quoteline-server/internal/id"
	"github.com/quotelineapp/quoteline-server/internal/storage"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

// Importer applies exchange bundles to a destination team.
type Importer struct {
	store     *store.Store
	storage   *storage.Storage
	batchSize int
	logger    *slog.Logger
}

// New creates an Importer. batchSize is the default rows-per-chunk for bulk
// writes; callers can override it per run.
func New(s *store.Store, st *storage.Storage, batchSize int, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Importer{store: s, storage: st, batchSize: batchSize, logger: logger}
}

// Apply imports a bundle into the destination team. Entities land in
// dependency order so child rows never precede their parents. Row-level and
// chunk-level failures are recorded on the result and do not abort the run;
// only structural problems (bad bundle, failed conflict scan) return an
// error.
func (i *Importer) Apply(ctx context.Context, destTeamID string, bundle *exchange.Bundle, opts exchange.ImportOptions) (*Result, error) {
	start := time.Now()

	validation := Validate(bundle)
	if !validation.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBundle, strings.Join(validation.Errors, "; "))
	}

	conflicts, err := exchange.DetectConflicts(ctx, i.store, destTeamID, bundle)
	if err != nil {
		return nil, fmt.Errorf("detect conflicts: %w", err)
	}

	result := newResult()
	result.Warnings = validation.Warnings
	result.Conflicts = conflicts

	if opts.DryRun {
		result.DryRun = true
		result.Duration = time.Since(start)
		result.CompletedAt = time.Now().UTC()
		return result, nil
	}

	p := newPlan(bundle.Manifest.SourceTeamID, destTeamID, conflicts, opts.Resolutions)

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = i.batchSize
	}

	cmpMap := i.importComponents(ctx, bundle, p, batchSize, result)
	asmMap := i.importAssemblies(ctx, bundle, p, batchSize, result)
	i.importAssemblyComponents(ctx, bundle, p, asmMap, cmpMap, batchSize, result)
	quoMap := i.importQuotations(ctx, bundle, p, batchSize, result)
	sysMap := i.importQuotationSystems(ctx, bundle, p, quoMap, batchSize, result)
	i.importQuotationItems(ctx, bundle, p, sysMap, cmpMap, asmMap, batchSize, result)
	i.importAttachments(ctx, bundle, p, cmpMap, asmMap, quoMap, result)
	if bundle.Data.Settings != nil {
		i.importSettings(ctx, destTeamID, bundle.Data.Settings, result)
	}

	result.Duration = time.Since(start)
	result.CompletedAt = time.Now().UTC()
	i.logger.Info("Import complete",
		"team_id", destTeamID,
		"source_team_id", bundle.Manifest.SourceTeamID,
		"imported", result.Imported,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
		"duration", result.Duration)

	return result, nil
}

// plan carries the resolved answer for every incoming entity.
type plan struct {
	sourceTeamID string
	destTeamID   string
	caller       map[string]exchange.Resolution
	resolutions  map[string]exchange.Resolution
	existing     map[string]string // conflicting incoming id -> destination row id
}

func newPlan(sourceTeamID, destTeamID string, conflicts []exchange.Conflict, caller map[string]exchange.Resolution) *plan {
	p := &plan{
		sourceTeamID: sourceTeamID,
		destTeamID:   destTeamID,
		caller:       caller,
		resolutions:  make(map[string]exchange.Resolution, len(conflicts)),
		existing:     make(map[string]string, len(conflicts)),
	}
	for _, c := range conflicts {
		p.resolutions[c.EntityID] = exchange.Decide(sourceTeamID, destTeamID, caller[c.EntityID])
		p.existing[c.EntityID] = c.ExistingID
	}
	return p
}

func (p *plan) sameTeam() bool {
	return p.sourceTeamID == p.destTeamID
}

// decide returns the resolution for an incoming entity and whether it
// conflicts with an existing destination row. Non-conflicting rows still
// go through Decide, so a cross-team import mints fresh IDs for every row
// it creates, not just the contested ones.
func (p *plan) decide(entityID string) (exchange.Resolution, bool) {
	if res, ok := p.resolutions[entityID]; ok {
		return res, true
	}
	return exchange.Decide(p.sourceTeamID, p.destTeamID, p.caller[entityID]), false
}

// importComponents places incoming components and returns the map from
// incoming IDs to the IDs they landed under. Components skipped in favor
// of a surviving destination row still map to it, so references stay
// resolvable.
func (i *Importer) importComponents(ctx context.Context, bundle *exchange.Bundle, p *plan, batchSize int, result *Result) map[string]string {
	idMap := make(map[string]string, len(bundle.Data.Components))
	var fresh []pending[domain.Component]

	for idx := range bundle.Data.Components {
		c := bundle.Data.Components[idx]
		c.TeamID = p.destTeamID

		res, conflicting := p.decide(c.ID)
		switch res {
		case exchange.ResolutionSkip:
			if conflicting {
				idMap[c.ID] = p.existing[c.ID]
			}
			result.Skipped["components"]++
		case exchange.ResolutionUpdate:
			if !conflicting {
				// Nothing to update: the row lands under its own ID.
				idMap[c.ID] = c.ID
				fresh = append(fresh, pending[domain.Component]{id: c.ID, entity: &c})
				continue
			}
			destID := p.existing[c.ID]
			idMap[c.ID] = destID
			c.ID = destID
			c.Touch()
			if err := i.store.Components.Upsert(ctx, p.destTeamID, destID, &c); err != nil {
				result.Errors = append(result.Errors, ImportError{EntityType: "component", EntityID: c.ID, Error: err.Error()})
				continue
			}
			result.Updated["components"]++
		case exchange.ResolutionCreateNew:
			newID := id.MustGenerate(id.PrefixComponent)
			idMap[c.ID] = newID
			c.ID = newID
			fresh = append(fresh, pending[domain.Component]{id: newID, entity: &c})
		}
	}

	result.Imported["components"] += flushBatches(ctx, i.store, i.store.Components, "components", p.destTeamID, fresh, batchSize, result)
	return idMap
}

func (i *Importer) importAssemblies(ctx context.Context, bundle *exchange.Bundle, p *plan, batchSize int, result *Result) map[string]string {
	idMap := make(map[string]string, len(bundle.Data.Assemblies))
	var fresh []pending[domain.Assembly]

	for idx := range bundle.Data.Assemblies {
		a := bundle.Data.Assemblies[idx]
		a.TeamID = p.destTeamID

		res, conflicting := p.decide(a.ID)
		switch res {
		case exchange.ResolutionSkip:
			result.Skipped["assemblies"]++
		case exchange.ResolutionUpdate:
			if !conflicting {
				idMap[a.ID] = a.ID
				fresh = append(fresh, pending[domain.Assembly]{id: a.ID, entity: &a})
				continue
			}
			idMap[a.ID] = a.ID
			a.Touch()
			if err := i.store.Assemblies.Upsert(ctx, p.destTeamID, a.ID, &a); err != nil {
				result.Errors = append(result.Errors, ImportError{EntityType: "assembly", EntityID: a.ID, Error: err.Error()})
				continue
			}
			// Children are owned rows: drop the destination's set so the
			// bundle's set replaces it wholesale.
			if err := i.deleteAssemblyChildren(ctx, p.destTeamID, a.ID); err != nil {
				result.Errors = append(result.Errors, ImportError{EntityType: "assembly", EntityID: a.ID, Error: fmt.Sprintf("clear children: %v", err)})
			}
			result.Updated["assemblies"]++
		case exchange.ResolutionCreateNew:
			newID := id.MustGenerate(id.PrefixAssembly)
			idMap[a.ID] = newID
			a.ID = newID
			fresh = append(fresh, pending[domain.Assembly]{id: newID, entity: &a})
		}
	}

	result.Imported["assemblies"] += flushBatches(ctx, i.store, i.store.Assemblies, "assemblies", p.destTeamID, fresh, batchSize, result)
	return idMap
}

func (i *Importer) importAssemblyComponents(ctx context.Context, bundle *exchange.Bundle, p *plan, asmMap, cmpMap map[string]string, batchSize int, result *Result) {
	var fresh []pending[domain.AssemblyComponent]

	for idx := range bundle.Data.AssemblyComponents {
		ac := bundle.Data.AssemblyComponents[idx]

		parentID, ok := asmMap[ac.AssemblyID]
		if !ok {
			// Parent was skipped; the destination keeps its own rows.
			result.Skipped["assembly_components"]++
			continue
		}

		remapped := parentID != ac.AssemblyID
		ac.TeamID = p.destTeamID
		ac.AssemblyID = parentID
		if mapped, ok := cmpMap[ac.ComponentID]; ok {
			ac.ComponentID = mapped
		}
		if !p.keepChildID(!remapped) {
			ac.ID = id.MustGenerate(id.PrefixAssemblyEntry)
		}
		fresh = append(fresh, pending[domain.AssemblyComponent]{id: ac.ID, entity: &ac})
	}

	result.Imported["assembly_components"] += flushBatches(ctx, i.store, i.store.AssemblyComponents, "assembly_components", p.destTeamID, fresh, batchSize, result)
}

func (i *Importer) importQuotations(ctx context.Context, bundle *exchange.Bundle, p *plan, batchSize int, result *Result) map[string]string {
	idMap := make(map[string]string, len(bundle.Data.Quotations))
	var fresh []pending[domain.Quotation]

	for idx := range bundle.Data.Quotations {
		q := bundle.Data.Quotations[idx]
		q.TeamID = p.destTeamID

		res, conflicting := p.decide(q.ID)
		switch res {
		case exchange.ResolutionSkip:
			result.Skipped["quotations"]++
		case exchange.ResolutionUpdate:
			if !conflicting {
				idMap[q.ID] = q.ID
				fresh = append(fresh, pending[domain.Quotation]{id: q.ID, entity: &q})
				continue
			}
			idMap[q.ID] = q.ID
			q.Touch()
			if err := i.store.Quotations.Upsert(ctx, p.destTeamID, q.ID, &q); err != nil {
				result.Errors = append(result.Errors, ImportError{EntityType: "quotation", EntityID: q.ID, Error: err.Error()})
				continue
			}
			if err := i.deleteQuotationChildren(ctx, p.destTeamID, q.ID); err != nil {
				result.Errors = append(result.Errors, ImportError{EntityType: "quotation", EntityID: q.ID, Error: fmt.Sprintf("clear children: %v", err)})
			}
			result.Updated["quotations"]++
		case exchange.ResolutionCreateNew:
			newID := id.MustGenerate(id.PrefixQuotation)
			idMap[q.ID] = newID
			q.ID = newID
			fresh = append(fresh, pending[domain.Quotation]{id: newID, entity: &q})
		}
	}

	result.Imported["quotations"] += flushBatches(ctx, i.store, i.store.Quotations, "quotations", p.destTeamID, fresh, batchSize, result)
	return idMap
}

func (i *Importer) importQuotationSystems(ctx context.Context, bundle *exchange.Bundle, p *plan, quoMap map[string]string, batchSize int, result *Result) map[string]string {
	idMap := make(map[string]string, len(bundle.Data.QuotationSystems))
	var fresh []pending[domain.QuotationSystem]

	for idx := range bundle.Data.QuotationSystems {
		qs := bundle.Data.QuotationSystems[idx]

		parentID, ok := quoMap[qs.QuotationID]
		if !ok {
			result.Skipped["quotation_systems"]++
			continue
		}

		remapped := parentID != qs.QuotationID
		qs.TeamID = p.destTeamID
		qs.QuotationID = parentID
		if !p.keepChildID(!remapped) {
			newID := id.MustGenerate(id.PrefixSystem)
			idMap[qs.ID] = newID
			qs.ID = newID
		} else {
			idMap[qs.ID] = qs.ID
		}
		fresh = append(fresh, pending[domain.QuotationSystem]{id: qs.ID, entity: &qs})
	}

	result.Imported["quotation_systems"] += flushBatches(ctx, i.store, i.store.QuotationSystems, "quotation_systems", p.destTeamID, fresh, batchSize, result)
	return idMap
}

func (i *Importer) importQuotationItems(ctx context.Context, bundle *exchange.Bundle, p *plan, sysMap, cmpMap, asmMap map[string]string, batchSize int, result *Result) {
	var fresh []pending[domain.QuotationItem]

	for idx := range bundle.Data.QuotationItems {
		qi := bundle.Data.QuotationItems[idx]

		parentID, ok := sysMap[qi.SystemID]
		if !ok {
			result.Skipped["quotation_items"]++
			continue
		}

		remapped := parentID != qi.SystemID
		qi.TeamID = p.destTeamID
		qi.SystemID = parentID
		if mapped, ok := cmpMap[qi.ComponentID]; ok {
			qi.ComponentID = mapped
		}
		if mapped, ok := asmMap[qi.AssemblyID]; ok {
			qi.AssemblyID = mapped
		}
		if !p.keepChildID(!remapped) {
			qi.ID = id.MustGenerate(id.PrefixItem)
		}
		fresh = append(fresh, pending[domain.QuotationItem]{id: qi.ID, entity: &qi})
	}

	result.Imported["quotation_items"] += flushBatches(ctx, i.store, i.store.QuotationItems, "quotation_items", p.destTeamID, fresh, batchSize, result)
}

// keepChildID reports whether an owned child row may keep its incoming ID.
// Same-team re-imports under an unremapped parent overwrite the rows they
// came from; everything else gets a fresh ID to rule out collisions.
func (p *plan) keepChildID(parentKeptID bool) bool {
	return p.sameTeam() && parentKeptID
}

func (i *Importer) deleteAssemblyChildren(ctx context.Context, teamID, assemblyID string) error {
	var ids []string
	for ac, err := range i.store.AssemblyComponents.ListByLookup(ctx, teamID, "assembly", assemblyID) {
		if err != nil {
			return err
		}
		ids = append(ids, ac.ID)
	}
	for _, childID := range ids {
		if err := i.store.AssemblyComponents.Delete(ctx, teamID, childID); err != nil {
			return err
		}
	}
	return nil
}

// deleteQuotationChildren removes a quotation's systems and their items.
func (i *Importer) deleteQuotationChildren(ctx context.Context, teamID, quotationID string) error {
	var systemIDs []string
	for qs, err := range i.store.QuotationSystems.ListByLookup(ctx, teamID, "quotation", quotationID) {
		if err != nil {
			return err
		}
		systemIDs = append(systemIDs, qs.ID)
	}

	for _, sysID := range systemIDs {
		var itemIDs []string
		for qi, err := range i.store.QuotationItems.ListByLookup(ctx, teamID, "system", sysID) {
			if err != nil {
				return err
			}
			itemIDs = append(itemIDs, qi.ID)
		}
		for _, itemID := range itemIDs {
			if err := i.store.QuotationItems.Delete(ctx, teamID, itemID); err != nil {
				return err
			}
		}
		if err := i.store.QuotationSystems.Delete(ctx, teamID, sysID); err != nil {
			return err
		}
	}
	return nil
}

// pending is a row staged for a bulk write.
type pending[T any] struct {
	id     string
	entity *T
}

// flushBatches writes staged rows in chunks. Each failed chunk becomes one
// recorded error; later chunks still run. Returns the number of rows that
// landed.
func flushBatches[T any](ctx context.Context, s *store.Store, e *store.ScopedEntity[T], entityType, teamID string, rows []pending[T], batchSize int, result *Result) int {
	applied, errs := applyBatches(len(rows), batchSize, func(start, end int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeChunk(s, e, teamID, rows[start:end])
	})
	for _, err := range errs {
		result.Errors = append(result.Errors, ImportError{EntityType: entityType, Error: err.Error()})
	}
	return applied
}

// applyBatches runs apply over [0, n) in chunks of batchSize. A failing
// chunk contributes one error and does not stop later chunks.
func applyBatches(n, batchSize int, apply func(start, end int) error) (int, []error) {
	applied := 0
	var errs []error
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		if err := apply(start, end); err != nil {
			errs = append(errs, fmt.Errorf("rows %d-%d: %w", start, end, err))
			continue
		}
		applied += end - start
	}
	return applied, errs
}

func writeChunk[T any](s *store.Store, e *store.ScopedEntity[T], teamID string, chunk []pending[T]) error {
	// Manual flush: the chunk is the commit unit.
	b := s.NewBatchWriter(len(chunk) + 1)
	for _, row := range chunk {
		if err := store.BatchUpsert(b, e, teamID, row.id, row.entity); err != nil {
			b.Cancel()
			return err
		}
	}
	return b.Flush()
}
