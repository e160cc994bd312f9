// Package service contains the application services that sit between the
// HTTP layer and the stores. Services own identifier generation, audit
// recording, and the little orchestration glue; the interesting logic lives
// in the engine packages they call.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quotelineapp/quoteline-server/internal/audit"
	"github.com/quotelineapp/quoteline-server/internal/domain"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/id"
	"github.com/quotelineapp/quoteline-server/internal/match"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

// CatalogService manages components and assemblies and resolves extracted
// candidates against the catalog.
type CatalogService struct {
	store   *store.Store
	matcher *match.Matcher
	audit   *audit.Log
	logger  *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(s *store.Store, matcher *match.Matcher, al *audit.Log, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{store: s, matcher: matcher, audit: al, logger: logger}
}

// CreateComponent adds a component to the team's catalog. Costs in other
// currencies are derived from the original cost using the team's rates.
func (s *CatalogService) CreateComponent(ctx context.Context, teamID, userID string, c *domain.Component) (*domain.Component, error) {
	if c.Name == "" {
		return nil, apperrors.Validation("component name is required")
	}

	c.ID = id.MustGenerate(id.PrefixComponent)
	c.TeamID = teamID
	c.InitTimestamps()
	s.deriveCosts(ctx, teamID, c)

	if err := s.store.Components.Create(ctx, teamID, c.ID, c); err != nil {
		return nil, fmt.Errorf("create component: %w", err)
	}

	s.record(ctx, teamID, userID, "component.create", "component", c.ID, c.Name)
	return c, nil
}

// GetComponent returns one component.
func (s *CatalogService) GetComponent(ctx context.Context, teamID, componentID string) (*domain.Component, error) {
	return s.store.Components.Get(ctx, teamID, componentID)
}

// ListComponents returns the team's full catalog.
func (s *CatalogService) ListComponents(ctx context.Context, teamID string) ([]*domain.Component, error) {
	var components []*domain.Component
	for c, err := range s.store.Components.ListByTeam(ctx, teamID) {
		if err != nil {
			return nil, fmt.Errorf("list components: %w", err)
		}
		components = append(components, c)
	}
	return components, nil
}

// UpdateComponent replaces a component's editable fields. The original
// currency and cost are part of the record's provenance and only change
// when the caller supplies new ones; derived costs are rebuilt either way.
func (s *CatalogService) UpdateComponent(ctx context.Context, teamID, userID, componentID string, c *domain.Component) (*domain.Component, error) {
	existing, err := s.store.Components.Get(ctx, teamID, componentID)
	if err != nil {
		return nil, err
	}

	c.Syncable = existing.Syncable
	c.TeamID = teamID
	if c.OriginalCurrency == "" {
		c.OriginalCurrency = existing.OriginalCurrency
		c.OriginalCost = existing.OriginalCost
	}
	c.Touch()
	s.deriveCosts(ctx, teamID, c)

	if err := s.store.Components.Update(ctx, teamID, componentID, c); err != nil {
		return nil, fmt.Errorf("update component: %w", err)
	}

	s.record(ctx, teamID, userID, "component.update", "component", componentID, c.Name)
	return c, nil
}

// DeleteComponent removes a component from the catalog.
func (s *CatalogService) DeleteComponent(ctx context.Context, teamID, userID, componentID string) error {
	if err := s.store.Components.Delete(ctx, teamID, componentID); err != nil {
		return err
	}
	s.record(ctx, teamID, userID, "component.delete", "component", componentID, "")
	return nil
}

// ResolveCandidate matches an extracted candidate against the team's
// catalog. A result with no matches is a valid outcome, not an error.
func (s *CatalogService) ResolveCandidate(ctx context.Context, teamID string, candidate *domain.Candidate) (*match.Result, error) {
	components, err := s.ListComponents(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.matcher.Match(ctx, candidate, components)
}

// AdoptCandidate creates a catalog component from an unmatched candidate.
func (s *CatalogService) AdoptCandidate(ctx context.Context, teamID, userID string, candidate *domain.Candidate, currency string) (*domain.Component, error) {
	c := &domain.Component{
		Name:         candidate.Name,
		Manufacturer: candidate.Manufacturer,
		PartNumber:   candidate.PartNumber,
		Description:  candidate.Description,
	}
	if cost, ok := candidate.PriceByCurrency[currency]; ok {
		c.OriginalCurrency = currency
		c.OriginalCost = cost
	}
	return s.CreateComponent(ctx, teamID, userID, c)
}

// CreateAssembly adds an assembly together with its component entries.
func (s *CatalogService) CreateAssembly(ctx context.Context, teamID, userID string, a *domain.Assembly, entries []domain.AssemblyComponent) (*domain.Assembly, error) {
	if a.Name == "" {
		return nil, apperrors.Validation("assembly name is required")
	}

	a.ID = id.MustGenerate(id.PrefixAssembly)
	a.TeamID = teamID
	a.InitTimestamps()
	if err := s.store.Assemblies.Create(ctx, teamID, a.ID, a); err != nil {
		return nil, fmt.Errorf("create assembly: %w", err)
	}

	for idx := range entries {
		entry := entries[idx]
		entry.ID = id.MustGenerate(id.PrefixAssemblyEntry)
		entry.TeamID = teamID
		entry.AssemblyID = a.ID
		entry.InitTimestamps()
		if err := s.store.AssemblyComponents.Create(ctx, teamID, entry.ID, &entry); err != nil {
			return nil, fmt.Errorf("create assembly entry: %w", err)
		}
	}

	s.record(ctx, teamID, userID, "assembly.create", "assembly", a.ID, a.Name)
	return a, nil
}

// GetAssembly returns an assembly with its component entries.
func (s *CatalogService) GetAssembly(ctx context.Context, teamID, assemblyID string) (*domain.Assembly, []*domain.AssemblyComponent, error) {
	a, err := s.store.Assemblies.Get(ctx, teamID, assemblyID)
	if err != nil {
		return nil, nil, err
	}

	var entries []*domain.AssemblyComponent
	for entry, err := range s.store.AssemblyComponents.ListByLookup(ctx, teamID, "assembly", assemblyID) {
		if err != nil {
			return nil, nil, fmt.Errorf("list assembly entries: %w", err)
		}
		entries = append(entries, entry)
	}
	return a, entries, nil
}

// AssemblyCost sums the assembly's component costs in the given currency,
// weighted by quantity. Entries whose component is gone are skipped.
func (s *CatalogService) AssemblyCost(ctx context.Context, teamID, assemblyID, currency string) (float64, error) {
	_, entries, err := s.GetAssembly(ctx, teamID, assemblyID)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, entry := range entries {
		c, err := s.store.Components.Get(ctx, teamID, entry.ComponentID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return 0, err
		}
		total += c.Cost(currency) * entry.Quantity
	}
	return total, nil
}

// RecalculateCosts rebuilds every component's derived costs from the
// current rate table. Original costs never change.
func (s *CatalogService) RecalculateCosts(ctx context.Context, teamID, userID string) (int, error) {
	settings, err := s.teamSettings(ctx, teamID)
	if err != nil {
		return 0, err
	}
	currencies := settingsCurrencies(settings)

	components, err := s.ListComponents(ctx, teamID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, c := range components {
		domain.DeriveCosts(c, currencies, settings.ExchangeRates)
		c.Touch()
		if err := s.store.Components.Update(ctx, teamID, c.ID, c); err != nil {
			return updated, fmt.Errorf("update component %s: %w", c.ID, err)
		}
		updated++
	}

	s.record(ctx, teamID, userID, "catalog.recalculate", "", "", fmt.Sprintf("%d components", updated))
	return updated, nil
}

func (s *CatalogService) deriveCosts(ctx context.Context, teamID string, c *domain.Component) {
	settings, err := s.teamSettings(ctx, teamID)
	if err != nil {
		// No settings yet: the component keeps only its original cost.
		return
	}
	domain.DeriveCosts(c, settingsCurrencies(settings), settings.ExchangeRates)
}

func (s *CatalogService) teamSettings(ctx context.Context, teamID string) (*domain.TeamSettings, error) {
	return s.store.Settings.Get(ctx, teamID, teamID)
}

func settingsCurrencies(settings *domain.TeamSettings) []string {
	currencies := make([]string, 0, len(settings.ExchangeRates))
	for code := range settings.ExchangeRates {
		currencies = append(currencies, code)
	}
	return currencies
}

func (s *CatalogService) record(ctx context.Context, teamID, userID, action, entityType, entityID, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.RecordBestEffort(ctx, &audit.Entry{
		TeamID:     teamID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	})
}
