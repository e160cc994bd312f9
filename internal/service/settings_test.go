package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/match"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

func setupSettings(t *testing.T) (*SettingsService, *CatalogService, *store.Store) {
	t.Helper()

	s := setupStore(t)
	catalog := NewCatalogService(s, match.NewMatcher(testMatchConfig(), nil, nil), nil, nil)
	return NewSettingsService(s, catalog, nil, nil), catalog, s
}

func strptr(s string) *string { return &s }

func f64ptr(f float64) *float64 { return &f }

func ratesptr(r domain.RateTable) *domain.RateTable { return &r }

func TestSettings_GetCreatesDefaults(t *testing.T) {
	svc, _, _ := setupSettings(t)

	settings, err := svc.Get(context.Background(), "team-1")
	require.NoError(t, err)
	require.Equal(t, "EUR", settings.BaseCurrency)
	require.Equal(t, float64(1), settings.ExchangeRates["EUR"])
	require.Equal(t, 1, settings.NextQuotationSeq)
}

func TestSettings_UpdateRatesRecalculatesCatalog(t *testing.T) {
	svc, catalog, _ := setupSettings(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "team-1", "user-1", SettingsUpdate{
		ExchangeRates: ratesptr(domain.RateTable{"EUR": 1, "SEK": 11.0}),
	})
	require.NoError(t, err)

	c, err := catalog.CreateComponent(ctx, "team-1", "user-1", &domain.Component{
		Name:             "Enclosure",
		OriginalCurrency: "EUR",
		OriginalCost:     200,
	})
	require.NoError(t, err)
	require.InDelta(t, 2200, c.CostByCurrency["SEK"], 0.001)

	_, err = svc.Update(ctx, "team-1", "user-1", SettingsUpdate{
		ExchangeRates: ratesptr(domain.RateTable{"EUR": 1, "SEK": 11.5}),
	})
	require.NoError(t, err)

	got, err := catalog.GetComponent(ctx, "team-1", c.ID)
	require.NoError(t, err)
	require.InDelta(t, 2300, got.CostByCurrency["SEK"], 0.001)
	require.Equal(t, float64(200), got.OriginalCost)
}

func TestSettings_UpdateValidation(t *testing.T) {
	svc, _, _ := setupSettings(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "team-1", "user-1", SettingsUpdate{BaseCurrency: strptr("")})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Update(ctx, "team-1", "user-1", SettingsUpdate{DefaultMarkup: f64ptr(-0.1)})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSettings_UpdateCategoriesDeduplicates(t *testing.T) {
	svc, _, _ := setupSettings(t)

	categories := []string{"PLC", "Drive", "PLC", "Cable"}
	settings, err := svc.Update(context.Background(), "team-1", "user-1", SettingsUpdate{
		Categories: &categories,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Cable", "Drive", "PLC"}, settings.Categories)
}

func TestSettings_NextQuotationNumber(t *testing.T) {
	svc, _, _ := setupSettings(t)
	ctx := context.Background()

	first, err := svc.NextQuotationNumber(ctx, "team-1")
	require.NoError(t, err)
	require.Equal(t, "Q-0001", first)

	second, err := svc.NextQuotationNumber(ctx, "team-1")
	require.NoError(t, err)
	require.Equal(t, "Q-0002", second)
}

func TestSettings_NextQuotationNumberUsesTemplate(t *testing.T) {
	svc, _, _ := setupSettings(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "team-1", "user-1", SettingsUpdate{
		QuotationTemplate: strptr("ACME-%d"),
	})
	require.NoError(t, err)

	number, err := svc.NextQuotationNumber(ctx, "team-1")
	require.NoError(t, err)
	require.Equal(t, "ACME-1", number)
}
