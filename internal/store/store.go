// Package store provides persistence for Quoteline entities on top of BadgerDB.
//
// Catalog data is partitioned by team: every key carries the owning team's
// ID, so reads and scans never cross a tenant boundary. Teams and users are
// the only globally keyed records.
package store

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/quotelineapp/quoteline-server/internal/domain"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Global entities
	Teams *Entity[domain.Team]
	Users *Entity[domain.User]

	// Team-scoped entities
	Components         *ScopedEntity[domain.Component]
	Assemblies         *ScopedEntity[domain.Assembly]
	AssemblyComponents *ScopedEntity[domain.AssemblyComponent]
	Quotations         *ScopedEntity[domain.Quotation]
	QuotationSystems   *ScopedEntity[domain.QuotationSystem]
	QuotationItems     *ScopedEntity[domain.QuotationItem]
	Attachments        *ScopedEntity[domain.Attachment]
	Settings           *ScopedEntity[domain.TeamSettings]
}

// New creates a new Store instance with the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}
	store.initEntities()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

func (s *Store) initEntities() {
	s.Teams = NewEntity[domain.Team](s, "team:")

	// Email lookups are case-insensitive. The API key index resolves opaque
	// bearer tokens to user records; users without a key are not indexed.
	s.Users = NewEntity[domain.User](s, "user:").
		WithIndexTransform("email",
			func(u *domain.User) []string {
				return []string{normalizeEmail(u.Email)}
			},
			normalizeEmail,
		).
		WithIndex("apikey", func(u *domain.User) []string {
			if u.APIKey == "" {
				return nil
			}
			return []string{u.APIKey}
		})

	// The (manufacturer, partNumber) pair is a soft business key: it is a
	// lookup hint for conflict detection, not a uniqueness constraint, so
	// it uses a non-unique lookup index.
	s.Components = NewScopedEntity[domain.Component](s, "cmp:").
		WithLookup("bizkey", func(c *domain.Component) []string {
			if !c.HasBusinessKey() {
				return nil
			}
			return []string{c.BusinessKey()}
		})

	s.Assemblies = NewScopedEntity[domain.Assembly](s, "asm:")

	s.AssemblyComponents = NewScopedEntity[domain.AssemblyComponent](s, "asmc:").
		WithLookup("assembly", func(ac *domain.AssemblyComponent) []string {
			return []string{ac.AssemblyID}
		})

	s.Quotations = NewScopedEntity[domain.Quotation](s, "quo:")

	s.QuotationSystems = NewScopedEntity[domain.QuotationSystem](s, "sys:").
		WithLookup("quotation", func(qs *domain.QuotationSystem) []string {
			return []string{qs.QuotationID}
		})

	s.QuotationItems = NewScopedEntity[domain.QuotationItem](s, "itm:").
		WithLookup("system", func(qi *domain.QuotationItem) []string {
			return []string{qi.SystemID}
		})

	s.Attachments = NewScopedEntity[domain.Attachment](s, "att:").
		WithLookup("entity", func(a *domain.Attachment) []string {
			return []string{a.EntityID}
		})

	s.Settings = NewScopedEntity[domain.TeamSettings](s, "set:")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
