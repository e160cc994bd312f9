package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/quotelineapp/quoteline-server/internal/audit"
	"github.com/quotelineapp/quoteline-server/internal/config"
	"github.com/quotelineapp/quoteline-server/internal/logger"
	"github.com/quotelineapp/quoteline-server/internal/storage"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// AuditLogHandle wraps the audit log with shutdown capability.
type AuditLogHandle struct {
	*audit.Log
}

// Shutdown implements do.Shutdownable.
func (h *AuditLogHandle) Shutdown() error {
	return h.Close()
}

// ProvideAuditLog provides the SQLite-backed audit trail.
func ProvideAuditLog(i do.Injector) (*AuditLogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	auditPath := filepath.Join(cfg.Data.BasePath, "audit.db")
	al, err := audit.Open(auditPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Audit log initialized", "path", auditPath)

	return &AuditLogHandle{Log: al}, nil
}

// ProvideStorage provides the attachment file storage.
func ProvideStorage(i do.Injector) (*storage.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return storage.NewStorage(filepath.Join(cfg.Data.BasePath, "attachments"))
}
