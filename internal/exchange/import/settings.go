package exchangeimport

import (
	"context"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
)

// importSettings merges the bundle's team settings into the destination.
// Each field group is upserted independently so a write failure in one
// group is a warning that never blocks the others. The destination's quotation sequence is
// only ever raised, never lowered, so already issued numbers stay unique.
func (i *Importer) importSettings(ctx context.Context, destTeamID string, incoming *domain.TeamSettings, result *Result) {
	existing, err := i.store.Settings.Get(ctx, destTeamID, destTeamID)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		existing = &domain.TeamSettings{TeamID: destTeamID}
		existing.ID = destTeamID
		existing.InitTimestamps()
	case err != nil:
		result.warnf("settings: %v", err)
		return
	}

	groups := []struct {
		name  string
		apply func(dst, src *domain.TeamSettings)
	}{
		{"currency", func(dst, src *domain.TeamSettings) {
			dst.BaseCurrency = src.BaseCurrency
			dst.ExchangeRates = src.ExchangeRates
		}},
		{"defaults", func(dst, src *domain.TeamSettings) {
			dst.DefaultMarkup = src.DefaultMarkup
			dst.DefaultCurrency = src.DefaultCurrency
			if src.NextQuotationSeq > dst.NextQuotationSeq {
				dst.NextQuotationSeq = src.NextQuotationSeq
			}
		}},
		{"categories", func(dst, src *domain.TeamSettings) {
			dst.Categories = src.Categories
		}},
		{"template", func(dst, src *domain.TeamSettings) {
			dst.QuotationTemplate = src.QuotationTemplate
		}},
	}

	for _, g := range groups {
		g.apply(existing, incoming)
		existing.Touch()
		if err := i.store.Settings.Upsert(ctx, destTeamID, existing.ID, existing); err != nil {
			result.warnf("settings group %s: %v", g.name, err)
			continue
		}
		result.Imported["settings"]++
	}
}
