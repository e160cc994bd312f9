package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotelineapp/quoteline-server/internal/config"
	"github.com/quotelineapp/quoteline-server/internal/domain"
)

func TestParseVerdicts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		size    int
		want    int
		wantErr bool
	}{
		{
			name:    "plain array",
			content: `[{"index": 0, "is_match": true, "confidence": 0.95}]`,
			size:    3,
			want:    1,
		},
		{
			name:    "fenced array",
			content: "```json\n[{\"index\": 1, \"is_match\": false, \"confidence\": 0.4}]\n```",
			size:    3,
			want:    1,
		},
		{
			name:    "out of range index dropped",
			content: `[{"index": 5, "is_match": true, "confidence": 0.9}, {"index": 0, "is_match": true, "confidence": 0.9}]`,
			size:    2,
			want:    1,
		},
		{
			name:    "confidence out of bounds dropped",
			content: `[{"index": 0, "is_match": true, "confidence": 1.5}]`,
			size:    1,
			want:    0,
		},
		{
			name:    "prose instead of json",
			content: `The first component looks like a match.`,
			size:    1,
			wantErr: true,
		},
		{
			name:    "empty array",
			content: `[]`,
			size:    1,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts, err := ParseVerdicts(tt.content, tt.size)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadResponse)
				return
			}
			require.NoError(t, err)
			assert.Len(t, verdicts, tt.want)
		})
	}
}

func TestClient_Disabled(t *testing.T) {
	c := New(config.AIConfig{}, nil)
	defer c.Close()

	assert.False(t, c.Enabled())

	_, err := c.Evaluate(context.Background(), &domain.Candidate{Name: "relay"}, []*domain.Component{{Name: "relay"}})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClient_Evaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[{\"index\":0,\"is_match\":true,\"confidence\":0.92}]"}}]}`))
	}))
	defer srv.Close()

	c := New(config.AIConfig{
		BaseURL:           srv.URL,
		APIKey:            "test-key",
		Model:             "test-model",
		RequestsPerSecond: 100,
		Timeout:           5 * time.Second,
	}, nil)
	defer c.Close()

	verdicts, err := c.Evaluate(context.Background(),
		&domain.Candidate{Name: "PLC CPU", Manufacturer: "Siemens", PartNumber: "6ES7 512-1DK01-0AB0"},
		[]*domain.Component{{Name: "SIMATIC S7-1500 CPU", Manufacturer: "Siemens AG", PartNumber: "6ES75121DK010AB0"}},
	)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.True(t, verdicts[0].IsMatch)
	assert.InDelta(t, 0.92, verdicts[0].Confidence, 1e-9)
}

func TestClient_Evaluate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(config.AIConfig{BaseURL: srv.URL, Model: "test-model", RequestsPerSecond: 100}, nil)
	defer c.Close()

	_, err := c.Evaluate(context.Background(), &domain.Candidate{Name: "x"}, []*domain.Component{{Name: "x"}})
	assert.ErrorIs(t, err, ErrServer)
}

func TestClient_Evaluate_EmptyShortlist(t *testing.T) {
	c := New(config.AIConfig{BaseURL: "http://localhost:1", Model: "m", RequestsPerSecond: 100}, nil)
	defer c.Close()

	verdicts, err := c.Evaluate(context.Background(), &domain.Candidate{Name: "x"}, nil)
	require.NoError(t, err)
	assert.Empty(t, verdicts)
}
