package providers

import (
	"github.com/samber/do/v2"

	"github.com/quotelineapp/quoteline-server/internal/ai"
	"github.com/quotelineapp/quoteline-server/internal/config"
	"github.com/quotelineapp/quoteline-server/internal/logger"
	"github.com/quotelineapp/quoteline-server/internal/match"
)

// ProvideAIClient provides the AI judge client. With no base URL configured
// the client reports itself disabled and the matcher skips its tier.
func ProvideAIClient(i do.Injector) (*ai.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := ai.New(cfg.AI, log.Logger)
	if client.Enabled() {
		log.Info("AI matching enabled", "model", cfg.AI.Model)
	} else {
		log.Info("AI matching disabled - no base URL configured")
	}
	return client, nil
}

// ProvideMatcher provides the candidate matcher.
func ProvideMatcher(i do.Injector) (*match.Matcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*ai.Client](i)

	return match.NewMatcher(cfg.Match, client, log.Logger), nil
}
