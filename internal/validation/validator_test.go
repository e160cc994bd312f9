package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/validation"
)

type componentRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Currency string  `json:"currency" validate:"omitempty,currency_code"`
	Cost     float64 `json:"cost" validate:"gte=0"`
}

type importRequest struct {
	Resolution string `json:"resolution" validate:"omitempty,resolution"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(componentRequest{
		Name:     "PLC CPU",
		Currency: "EUR",
		Cost:     1200,
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name       string
		req        any
		wantErrMsg string
	}{
		{
			name:       "missing required field",
			req:        componentRequest{Currency: "EUR"},
			wantErrMsg: "is required",
		},
		{
			name:       "lowercase currency code",
			req:        componentRequest{Name: "PLC", Currency: "eur"},
			wantErrMsg: "three-letter currency code",
		},
		{
			name:       "currency code too long",
			req:        componentRequest{Name: "PLC", Currency: "EURO"},
			wantErrMsg: "three-letter currency code",
		},
		{
			name:       "negative cost",
			req:        componentRequest{Name: "PLC", Cost: -1},
			wantErrMsg: "greater than or equal to",
		},
		{
			name:       "unknown resolution",
			req:        importRequest{Resolution: "merge"},
			wantErrMsg: "skip, update, create_new",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			assert.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)

			var domainErr *apperrors.Error
			if assert.ErrorAs(t, err, &domainErr) {
				details, ok := domainErr.Details.(map[string]string)
				if assert.True(t, ok) {
					found := false
					for _, msg := range details {
						if strings.Contains(msg, tt.wantErrMsg) {
							found = true
						}
					}
					assert.True(t, found, "expected a field message containing %q, got %v", tt.wantErrMsg, details)
				}
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(componentRequest{Currency: "EUR"})
	assert.Error(t, err)

	var domainErr *apperrors.Error
	assert.ErrorAs(t, err, &domainErr)
	details, ok := domainErr.Details.(map[string]string)
	assert.True(t, ok)

	// Uses the JSON tag name "name", not the struct field name "Name".
	_, hasJSONName := details["name"]
	_, hasGoName := details["Name"]
	assert.True(t, hasJSONName)
	assert.False(t, hasGoName)
}
