package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/service"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSettings",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings",
		Summary:     "Get team settings",
		Description: "Returns the team's settings",
		Tags:        []string{"Settings"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSettings)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateSettings",
		Method:      http.MethodPatch,
		Path:        "/api/v1/settings",
		Summary:     "Update team settings",
		Description: "Updates team settings; rate changes recalculate derived component costs",
		Tags:        []string{"Settings"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateSettings)
}

// === DTOs ===

// SettingsResponse contains team settings in API responses.
type SettingsResponse struct {
	BaseCurrency      string             `json:"base_currency" doc:"Currency the rate table is expressed against"`
	ExchangeRates     map[string]float64 `json:"exchange_rates,omitempty" doc:"Rates per currency against the base"`
	DefaultMarkup     float64            `json:"default_markup,omitempty" doc:"Default line item markup"`
	DefaultCurrency   string             `json:"default_currency,omitempty" doc:"Default quotation currency"`
	Categories        []string           `json:"categories,omitempty" doc:"Catalog categories"`
	QuotationTemplate string             `json:"quotation_template,omitempty" doc:"Quotation number format"`
	NextQuotationSeq  int                `json:"next_quotation_seq,omitempty" doc:"Next quotation sequence number"`
}

// GetSettingsInput contains parameters for getting settings.
type GetSettingsInput struct {
	Authorization string `header:"Authorization"`
}

// SettingsOutput wraps the settings response for Huma.
type SettingsOutput struct {
	Body SettingsResponse
}

// UpdateSettingsRequest is the request body for updating settings.
// Absent fields are left alone.
type UpdateSettingsRequest struct {
	BaseCurrency      *string             `json:"base_currency,omitempty" validate:"omitempty,currency_code" doc:"Currency the rate table is expressed against"`
	ExchangeRates     *map[string]float64 `json:"exchange_rates,omitempty" doc:"Rates per currency against the base"`
	DefaultMarkup     *float64            `json:"default_markup,omitempty" validate:"omitempty,gte=0" doc:"Default line item markup"`
	DefaultCurrency   *string             `json:"default_currency,omitempty" validate:"omitempty,currency_code" doc:"Default quotation currency"`
	Categories        *[]string           `json:"categories,omitempty" doc:"Catalog categories"`
	QuotationTemplate *string             `json:"quotation_template,omitempty" validate:"omitempty,max=100" doc:"Quotation number format"`
}

// UpdateSettingsInput wraps the update settings request for Huma.
type UpdateSettingsInput struct {
	Authorization string `header:"Authorization"`
	Body          UpdateSettingsRequest
}

// === Handlers ===

func settingsResponse(settings *domain.TeamSettings) SettingsResponse {
	return SettingsResponse{
		BaseCurrency:      settings.BaseCurrency,
		ExchangeRates:     settings.ExchangeRates,
		DefaultMarkup:     settings.DefaultMarkup,
		DefaultCurrency:   settings.DefaultCurrency,
		Categories:        settings.Categories,
		QuotationTemplate: settings.QuotationTemplate,
		NextQuotationSeq:  settings.NextQuotationSeq,
	}
}

func (s *Server) handleGetSettings(ctx context.Context, _ *GetSettingsInput) (*SettingsOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := s.services.Settings.Get(ctx, user.TeamID)
	if err != nil {
		return nil, err
	}
	return &SettingsOutput{Body: settingsResponse(settings)}, nil
}

func (s *Server) handleUpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*SettingsOutput, error) {
	user, err := s.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	update := service.SettingsUpdate{
		BaseCurrency:      input.Body.BaseCurrency,
		DefaultMarkup:     input.Body.DefaultMarkup,
		DefaultCurrency:   input.Body.DefaultCurrency,
		Categories:        input.Body.Categories,
		QuotationTemplate: input.Body.QuotationTemplate,
	}
	if input.Body.ExchangeRates != nil {
		rates := domain.RateTable(*input.Body.ExchangeRates)
		update.ExchangeRates = &rates
	}

	settings, err := s.services.Settings.Update(ctx, user.TeamID, user.ID, update)
	if err != nil {
		return nil, err
	}
	return &SettingsOutput{Body: settingsResponse(settings)}, nil
}
