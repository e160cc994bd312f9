package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/quotelineapp/quoteline-server/internal/audit"
	"github.com/quotelineapp/quoteline-server/internal/domain"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

// SettingsService manages per-team configuration. Rate changes ripple into
// the catalog: derived component costs are rebuilt from the new table while
// each component's original currency and cost stay untouched.
type SettingsService struct {
	store   *store.Store
	catalog *CatalogService
	audit   *audit.Log
	logger  *slog.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(s *store.Store, catalog *CatalogService, al *audit.Log, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{store: s, catalog: catalog, audit: al, logger: logger}
}

// SettingsUpdate carries the fields a caller wants to change. Nil fields are
// left alone.
type SettingsUpdate struct {
	BaseCurrency      *string
	ExchangeRates     *domain.RateTable
	DefaultMarkup     *float64
	DefaultCurrency   *string
	Categories        *[]string
	QuotationTemplate *string
}

// Get returns the team's settings, creating a default row on first access.
func (s *SettingsService) Get(ctx context.Context, teamID string) (*domain.TeamSettings, error) {
	settings, err := s.store.Settings.Get(ctx, teamID, teamID)
	if err == nil {
		return settings, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	settings = defaultSettings(teamID)
	if err := s.store.Settings.Upsert(ctx, teamID, teamID, settings); err != nil {
		return nil, fmt.Errorf("initialize settings: %w", err)
	}
	return settings, nil
}

// Update applies the non-nil fields of the update. When the base currency or
// rate table changes, every component's derived cost map is recalculated.
func (s *SettingsService) Update(ctx context.Context, teamID, userID string, update SettingsUpdate) (*domain.TeamSettings, error) {
	settings, err := s.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}

	ratesChanged := false
	if update.BaseCurrency != nil && *update.BaseCurrency != settings.BaseCurrency {
		if *update.BaseCurrency == "" {
			return nil, apperrors.Validation("base currency cannot be empty")
		}
		settings.BaseCurrency = *update.BaseCurrency
		ratesChanged = true
	}
	if update.ExchangeRates != nil {
		settings.ExchangeRates = *update.ExchangeRates
		ratesChanged = true
	}
	if settings.ExchangeRates == nil {
		settings.ExchangeRates = domain.RateTable{}
	}
	// The base currency is its own unit.
	settings.ExchangeRates[settings.BaseCurrency] = 1

	if update.DefaultMarkup != nil {
		if *update.DefaultMarkup < 0 {
			return nil, apperrors.Validation("default markup cannot be negative")
		}
		settings.DefaultMarkup = *update.DefaultMarkup
	}
	if update.DefaultCurrency != nil {
		settings.DefaultCurrency = *update.DefaultCurrency
	}
	if update.Categories != nil {
		categories := slices.Clone(*update.Categories)
		slices.Sort(categories)
		settings.Categories = slices.Compact(categories)
	}
	if update.QuotationTemplate != nil {
		settings.QuotationTemplate = *update.QuotationTemplate
	}

	settings.Touch()
	if err := s.store.Settings.Upsert(ctx, teamID, teamID, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	if ratesChanged && s.catalog != nil {
		updated, err := s.catalog.RecalculateCosts(ctx, teamID, userID)
		if err != nil {
			return nil, fmt.Errorf("recalculate costs: %w", err)
		}
		s.logger.Info("Recalculated component costs after rate change",
			"team_id", teamID, "components", updated)
	}

	if s.audit != nil {
		s.audit.RecordBestEffort(ctx, &audit.Entry{
			TeamID: teamID,
			UserID: userID,
			Action: "settings.update",
		})
	}
	return settings, nil
}

// NextQuotationNumber reserves and returns the next quotation number,
// formatted with the team's template when one is set.
func (s *SettingsService) NextQuotationNumber(ctx context.Context, teamID string) (string, error) {
	settings, err := s.Get(ctx, teamID)
	if err != nil {
		return "", err
	}

	seq := settings.NextQuotationSeq
	if seq == 0 {
		seq = 1
	}
	settings.NextQuotationSeq = seq + 1
	settings.Touch()
	if err := s.store.Settings.Upsert(ctx, teamID, teamID, settings); err != nil {
		return "", fmt.Errorf("advance quotation sequence: %w", err)
	}

	template := settings.QuotationTemplate
	if template == "" {
		template = "Q-%04d"
	}
	return fmt.Sprintf(template, seq), nil
}

func defaultSettings(teamID string) *domain.TeamSettings {
	settings := &domain.TeamSettings{
		TeamID:           teamID,
		BaseCurrency:     "EUR",
		ExchangeRates:    domain.RateTable{"EUR": 1},
		DefaultCurrency:  "EUR",
		NextQuotationSeq: 1,
	}
	settings.ID = teamID
	settings.InitTimestamps()
	return settings
}
