// Package di provides dependency injection configuration for the Quoteline server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/quotelineapp/quoteline-server/internal/ai"
	"github.com/quotelineapp/quoteline-server/internal/config"
	"github.com/quotelineapp/quoteline-server/internal/di/providers"
	"github.com/quotelineapp/quoteline-server/internal/logger"
	"github.com/quotelineapp/quoteline-server/internal/match"
	"github.com/quotelineapp/quoteline-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideAuditLog)
	do.Provide(injector, providers.ProvideStorage)

	// Matching layer
	do.Provide(injector, providers.ProvideAIClient)
	do.Provide(injector, providers.ProvideMatcher)

	// Business services
	do.Provide(injector, providers.ProvideTeamService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideSettingsService)
	do.Provide(injector, providers.ProvideExchangeService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.AuditLogHandle](injector)
	_ = do.MustInvoke[*ai.Client](injector)
	_ = do.MustInvoke[*match.Matcher](injector)

	// Business services
	_ = do.MustInvoke[*service.TeamService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.SettingsService](injector)
	_ = do.MustInvoke[*service.ExchangeService](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
