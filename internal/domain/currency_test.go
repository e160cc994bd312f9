package domain

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestConvert(t *testing.T) {
	rates := RateTable{"EUR": 1, "USD": 1.1, "GBP": 0.85}

	tests := []struct {
		name    string
		amount  float64
		from    string
		to      string
		want    float64
		wantErr bool
	}{
		{"identity", 42, "EUR", "EUR", 42, false},
		{"identity unknown currency", 42, "XXX", "XXX", 42, false},
		{"base to foreign", 100, "EUR", "USD", 110, false},
		{"foreign to base", 110, "USD", "EUR", 100, false},
		{"cross via base", 110, "USD", "GBP", 85, false},
		{"unknown source", 10, "JPY", "EUR", 0, true},
		{"unknown target", 10, "EUR", "JPY", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.amount, tt.from, tt.to, rates)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Convert(%v, %q, %q) expected error, got %v", tt.amount, tt.from, tt.to, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert(%v, %q, %q) unexpected error: %v", tt.amount, tt.from, tt.to, err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("Convert(%v, %q, %q) = %v, want %v", tt.amount, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestDeriveCostsPreservesOriginal(t *testing.T) {
	rates := RateTable{"EUR": 1, "USD": 1.1}
	c := &Component{
		Name:             "contactor",
		OriginalCurrency: "USD",
		OriginalCost:     55,
	}

	DeriveCosts(c, []string{"EUR", "USD"}, rates)

	if c.OriginalCurrency != "USD" || !almostEqual(c.OriginalCost, 55) {
		t.Fatalf("original price mutated: %q %v", c.OriginalCurrency, c.OriginalCost)
	}
	if !almostEqual(c.CostByCurrency["USD"], 55) {
		t.Errorf("USD cost = %v, want 55", c.CostByCurrency["USD"])
	}
	if !almostEqual(c.CostByCurrency["EUR"], 50) {
		t.Errorf("EUR cost = %v, want 50", c.CostByCurrency["EUR"])
	}

	// Rate change: rederive and the original stays fixed while the derived
	// values move.
	rates["USD"] = 1.25
	DeriveCosts(c, []string{"EUR", "USD"}, rates)
	if !almostEqual(c.CostByCurrency["EUR"], 44) {
		t.Errorf("EUR cost after rate change = %v, want 44", c.CostByCurrency["EUR"])
	}
	if !almostEqual(c.OriginalCost, 55) {
		t.Errorf("original cost changed to %v", c.OriginalCost)
	}
}

func TestDeriveCostsSkipsUnconvertible(t *testing.T) {
	rates := RateTable{"EUR": 1}
	c := &Component{OriginalCurrency: "USD", OriginalCost: 10}

	DeriveCosts(c, []string{"EUR"}, rates)

	if _, ok := c.CostByCurrency["EUR"]; ok {
		t.Error("expected EUR to be omitted when USD has no rate")
	}
	if !almostEqual(c.CostByCurrency["USD"], 10) {
		t.Errorf("USD cost = %v, want 10", c.CostByCurrency["USD"])
	}
}
