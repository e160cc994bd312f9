package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/quotelineapp/quoteline-server/internal/api"
	"github.com/quotelineapp/quoteline-server/internal/config"
	"github.com/quotelineapp/quoteline-server/internal/logger"
	"github.com/quotelineapp/quoteline-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	teamService := do.MustInvoke[*service.TeamService](i)
	catalogService := do.MustInvoke[*service.CatalogService](i)
	settingsService := do.MustInvoke[*service.SettingsService](i)
	exchangeService := do.MustInvoke[*service.ExchangeService](i)

	services := &api.Services{
		Team:     teamService,
		Catalog:  catalogService,
		Settings: settingsService,
		Exchange: exchangeService,
	}

	verifier := api.NewAPIKeyVerifier(teamService)
	handler := api.NewServer(storeHandle.Store, services, verifier, api.Options{
		Version: appVersion,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
