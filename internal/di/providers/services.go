package providers

import (
	"github.com/samber/do/v2"

	"github.com/quotelineapp/quoteline-server/internal/config"
	"github.com/quotelineapp/quoteline-server/internal/logger"
	"github.com/quotelineapp/quoteline-server/internal/match"
	"github.com/quotelineapp/quoteline-server/internal/service"
	"github.com/quotelineapp/quoteline-server/internal/storage"
)

// ProvideTeamService provides the team and user management service.
func ProvideTeamService(i do.Injector) (*service.TeamService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	auditHandle := do.MustInvoke[*AuditLogHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTeamService(storeHandle.Store, auditHandle.Log, log.Logger), nil
}

// ProvideCatalogService provides the component catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	auditHandle := do.MustInvoke[*AuditLogHandle](i)
	matcher := do.MustInvoke[*match.Matcher](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, matcher, auditHandle.Log, log.Logger), nil
}

// ProvideSettingsService provides the team settings service.
func ProvideSettingsService(i do.Injector) (*service.SettingsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	auditHandle := do.MustInvoke[*AuditLogHandle](i)
	catalogService := do.MustInvoke[*service.CatalogService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSettingsService(storeHandle.Store, catalogService, auditHandle.Log, log.Logger), nil
}

// ProvideExchangeService provides the catalog export/import service.
func ProvideExchangeService(i do.Injector) (*service.ExchangeService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	auditHandle := do.MustInvoke[*AuditLogHandle](i)
	fileStorage := do.MustInvoke[*storage.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewExchangeService(
		storeHandle.Store,
		fileStorage,
		auditHandle.Log,
		cfg.Exchange.ExportDir,
		appVersion,
		cfg.Exchange.BatchSize,
		log.Logger,
	), nil
}
