package exchangeimport_test

import (
	"testing"

	"encoding/json/v2"

	"github.com/stretchr/testify/require"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/exchange"
	exchangeimport "github.com/quotelineapp/quoteline-server/internal/exchange/import"
)

func validBundle() *exchange.Bundle {
	cmp := domain.Component{TeamID: "team-src", Name: "Contactor", Manufacturer: "ABB", PartNumber: "AF09-30-10"}
	cmp.ID = "cmp-1"
	asm := domain.Assembly{TeamID: "team-src", Name: "Starter"}
	asm.ID = "asm-1"
	link := domain.AssemblyComponent{TeamID: "team-src", AssemblyID: "asm-1", ComponentID: "cmp-1", Quantity: 1}
	link.ID = "asmc-1"
	quo := domain.Quotation{TeamID: "team-src", Number: "Q-1", Status: domain.QuotationDraft, Currency: "EUR"}
	quo.ID = "quo-1"
	sys := domain.QuotationSystem{TeamID: "team-src", QuotationID: "quo-1", Name: "Line 1"}
	sys.ID = "sys-1"
	item := domain.QuotationItem{TeamID: "team-src", SystemID: "sys-1", ComponentID: "cmp-1", Name: "Contactor", Quantity: 3, UnitCost: 12.5}
	item.ID = "itm-1"

	bundle := &exchange.Bundle{
		Manifest: exchange.Manifest{
			Version:      exchange.FormatVersion,
			SourceTeamID: "team-src",
			Includes:     exchange.Includes{Components: true, Assemblies: true, Quotations: true},
		},
		Data: exchange.Data{
			Components:         []domain.Component{cmp},
			Assemblies:         []domain.Assembly{asm},
			AssemblyComponents: []domain.AssemblyComponent{link},
			Quotations:         []domain.Quotation{quo},
			QuotationSystems:   []domain.QuotationSystem{sys},
			QuotationItems:     []domain.QuotationItem{item},
		},
	}
	bundle.Relationships = exchange.BuildRelationships(&bundle.Data)
	bundle.Manifest.Counts = bundle.CountData()
	return bundle
}

func TestValidate_OK(t *testing.T) {
	result := exchangeimport.Validate(validBundle())
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
	require.Empty(t, result.Warnings)
}

func TestValidate_CountMismatch(t *testing.T) {
	bundle := validBundle()
	bundle.Manifest.Counts.Components = 7

	result := exchangeimport.Validate(bundle)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "components")
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	bundle := validBundle()
	bundle.Manifest.Version = "2.0"

	result := exchangeimport.Validate(bundle)
	require.False(t, result.Valid)
}

func TestValidate_MinorVersionAccepted(t *testing.T) {
	bundle := validBundle()
	bundle.Manifest.Version = "1.3"

	require.True(t, exchangeimport.Validate(bundle).Valid)
}

func TestValidate_DanglingReferences(t *testing.T) {
	bundle := validBundle()
	// A system pointing at a missing quotation is an error.
	orphanSys := domain.QuotationSystem{TeamID: "team-src", QuotationID: "quo-missing", Name: "Orphan"}
	orphanSys.ID = "sys-2"
	bundle.Data.QuotationSystems = append(bundle.Data.QuotationSystems, orphanSys)
	// An item pointing at a missing component is only a warning.
	bundle.Data.QuotationItems[0].ComponentID = "cmp-missing"
	bundle.Manifest.Counts = bundle.CountData()

	result := exchangeimport.Validate(bundle)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "quo-missing")
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "cmp-missing")
}

func TestValidate_UndeclaredSection(t *testing.T) {
	bundle := validBundle()
	bundle.Manifest.Includes.Quotations = false

	result := exchangeimport.Validate(bundle)
	require.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "quotations")
}

func TestReadBundle_Plaintext(t *testing.T) {
	raw, err := json.Marshal(validBundle())
	require.NoError(t, err)

	bundle, err := exchangeimport.ReadBundle(raw, "")
	require.NoError(t, err)
	require.Equal(t, "team-src", bundle.Manifest.SourceTeamID)
}

func TestReadBundle_Encrypted(t *testing.T) {
	raw, err := json.Marshal(validBundle())
	require.NoError(t, err)
	sealed, err := exchange.Encrypt(raw, "open sesame")
	require.NoError(t, err)

	_, err = exchangeimport.ReadBundle(sealed, "")
	require.ErrorIs(t, err, exchangeimport.ErrPassphraseRequired)

	bundle, err := exchangeimport.ReadBundle(sealed, "open sesame")
	require.NoError(t, err)
	require.Equal(t, 1, bundle.Manifest.Counts.Components)
}

func TestReadBundle_Garbage(t *testing.T) {
	_, err := exchangeimport.ReadBundle([]byte("not a bundle"), "")
	require.ErrorIs(t, err, exchangeimport.ErrInvalidBundle)
}
