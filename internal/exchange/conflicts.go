package exchange

import (
	"context"
	"fmt"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

// ConflictKind classifies how an incoming row collides with the
// destination catalog.
type ConflictKind string

const (
	// ConflictDuplicateID means a destination row already uses the
	// incoming row's ID.
	ConflictDuplicateID ConflictKind = "duplicate_id"
	// ConflictDuplicateBusinessKey means a destination component already
	// carries the incoming component's (manufacturer, partNumber) pair.
	ConflictDuplicateBusinessKey ConflictKind = "duplicate_business_key"
)

// Conflict describes one collision found during import planning.
type Conflict struct {
	Kind       ConflictKind `json:"kind"`
	EntityType string       `json:"entity_type"`
	EntityID   string       `json:"entity_id"`
	// ExistingID is the destination row that collides. For duplicate_id
	// it equals EntityID.
	ExistingID string `json:"existing_id"`
	Detail     string `json:"detail,omitempty"`
}

// DetectConflicts scans the destination team for collisions with the
// bundle. Business-key conflicts are only reported for components whose ID
// doesn't already collide, so each incoming row surfaces at most once.
func DetectConflicts(ctx context.Context, s *store.Store, destTeamID string, bundle *Bundle) ([]Conflict, error) {
	var conflicts []Conflict

	for i := range bundle.Data.Components {
		c := &bundle.Data.Components[i]

		if _, err := s.Components.Get(ctx, destTeamID, c.ID); err == nil {
			conflicts = append(conflicts, Conflict{
				Kind:       ConflictDuplicateID,
				EntityType: "component",
				EntityID:   c.ID,
				ExistingID: c.ID,
			})
			continue
		} else if !apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("check component %s: %w", c.ID, err)
		}

		if !c.HasBusinessKey() {
			continue
		}
		existing, err := firstByBusinessKey(ctx, s, destTeamID, c)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			conflicts = append(conflicts, Conflict{
				Kind:       ConflictDuplicateBusinessKey,
				EntityType: "component",
				EntityID:   c.ID,
				ExistingID: existing.ID,
				Detail:     fmt.Sprintf("manufacturer %q part number %q", c.Manufacturer, c.PartNumber),
			})
		}
	}

	checks := []struct {
		entityType string
		ids        []string
		exists     func(context.Context, string) bool
	}{
		{"assembly", assemblyIDs(bundle), func(ctx context.Context, id string) bool {
			_, err := s.Assemblies.Get(ctx, destTeamID, id)
			return err == nil
		}},
		{"quotation", quotationIDs(bundle), func(ctx context.Context, id string) bool {
			_, err := s.Quotations.Get(ctx, destTeamID, id)
			return err == nil
		}},
	}
	for _, check := range checks {
		for _, id := range check.ids {
			if check.exists(ctx, id) {
				conflicts = append(conflicts, Conflict{
					Kind:       ConflictDuplicateID,
					EntityType: check.entityType,
					EntityID:   id,
					ExistingID: id,
				})
			}
		}
	}

	return conflicts, nil
}

// firstByBusinessKey returns any destination component sharing the business
// key, or nil. Local duplicates are tolerated; any representative will do.
func firstByBusinessKey(ctx context.Context, s *store.Store, teamID string, c *domain.Component) (*domain.Component, error) {
	for existing, err := range s.Components.ListByLookup(ctx, teamID, "bizkey", c.BusinessKey()) {
		if err != nil {
			return nil, fmt.Errorf("business key lookup: %w", err)
		}
		return existing, nil
	}
	return nil, nil
}

func assemblyIDs(bundle *Bundle) []string {
	ids := make([]string, len(bundle.Data.Assemblies))
	for i := range bundle.Data.Assemblies {
		ids[i] = bundle.Data.Assemblies[i].ID
	}
	return ids
}

func quotationIDs(bundle *Bundle) []string {
	ids := make([]string, len(bundle.Data.Quotations))
	for i := range bundle.Data.Quotations {
		ids[i] = bundle.Data.Quotations[i].ID
	}
	return ids
}
