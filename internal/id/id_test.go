package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id, err := Generate(PrefixComponent)
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"team", PrefixTeam},
		{"component", PrefixComponent},
		{"assembly", PrefixAssembly},
		{"quotation", PrefixQuotation},
		{"system", PrefixSystem},
		{"item", PrefixItem},
		{"attachment", PrefixAttachment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Generate(tt.prefix)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(id, tt.prefix+"-"))
			assert.NotEmpty(t, id)

			// NanoID default is 21 characters.
			expectedLen := len(tt.prefix) + 1 + 21
			assert.Equal(t, expectedLen, len(id), "ID: %s", id)
		})
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		id := MustGenerate(PrefixTeam)
		assert.True(t, strings.HasPrefix(id, "team-"))
	})
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		id       string
		expected string
	}{
		{"cmp-V1StGXR8_Z5jdHi6B-myT", "cmp"},
		{"team-abc", "team"},
		{"noprefix", ""},
		{"", ""},
		{"-leading", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, Prefix(tc.id), "id %q", tc.id)
	}
}
