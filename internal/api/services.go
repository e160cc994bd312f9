package api

import (
	"context"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Team     *service.TeamService
	Catalog  *service.CatalogService
	Settings *service.SettingsService
	Exchange *service.ExchangeService
}

// TokenVerifier resolves an opaque bearer token to a user. Token issuance
// and verification happen upstream; the server only needs the mapping.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}

// apiKeyVerifier is the default TokenVerifier: the bearer token is looked up
// as an API key on the user record.
type apiKeyVerifier struct {
	teams *service.TeamService
}

// NewAPIKeyVerifier creates the default API-key backed verifier.
func NewAPIKeyVerifier(teams *service.TeamService) TokenVerifier {
	return &apiKeyVerifier{teams: teams}
}

func (v *apiKeyVerifier) Verify(ctx context.Context, token string) (*domain.User, error) {
	return v.teams.ResolveAPIKey(ctx, token)
}
