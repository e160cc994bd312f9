// Package ai provides a rate-limited client for an OpenAI-compatible chat
// completions endpoint, used as the semantic tier of candidate matching.
package ai

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quotelineapp/quoteline-server/internal/config"
	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/ratelimit"
)

const (
	defaultBurst = 3

	// Cap on shortlist size per request. Larger shortlists dilute the
	// judgment and blow the prompt budget.
	maxShortlist = 10
)

// Verdict is the model's judgment for one shortlisted component.
type Verdict struct {
	Index      int     `json:"index"`
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Client is a rate-limited chat completions client. A Client built from an
// empty base URL is disabled: Evaluate returns ErrDisabled and Enabled
// reports false, which callers use to skip the semantic tier.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	baseURL string
	apiKey  string
	model   string
}

// New creates a new AI client from configuration.
func New(cfg config.AIConfig, logger *slog.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
		limiter: ratelimit.New(rps, defaultBurst),
		logger:  logger,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Enabled reports whether the client has a provider to talk to.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Evaluate asks the model whether the candidate matches any of the
// shortlisted components. The returned verdicts are index-aligned with the
// shortlist; entries the model omitted are absent.
func (c *Client) Evaluate(ctx context.Context, candidate *domain.Candidate, shortlist []*domain.Component) ([]Verdict, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if len(shortlist) == 0 {
		return nil, nil
	}
	if len(shortlist) > maxShortlist {
		shortlist = shortlist[:maxShortlist]
	}

	// Wait for rate limit
	if err := c.limiter.Wait(ctx, c.model); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	prompt, err := buildPrompt(candidate, shortlist)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if c.logger != nil {
		c.logger.Debug("ai match request",
			"model", c.model,
			"shortlist_size", len(shortlist),
		)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// Parsed below
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrBadResponse)
	}

	return ParseVerdicts(parsed.Choices[0].Message.Content, len(shortlist))
}

// ParseVerdicts extracts the strict JSON verdict array from model output.
// Code fences are tolerated; anything else around the array is not.
// Verdicts with out-of-range indexes are dropped.
func ParseVerdicts(content string, shortlistSize int) ([]Verdict, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var verdicts []Verdict
	if err := json.Unmarshal([]byte(trimmed), &verdicts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	valid := verdicts[:0]
	for _, v := range verdicts {
		if v.Index < 0 || v.Index >= shortlistSize {
			continue
		}
		if v.Confidence < 0 || v.Confidence > 1 {
			continue
		}
		valid = append(valid, v)
	}
	return valid, nil
}

const systemPrompt = `You compare an extracted part record against a shortlist of catalog components.
Reply with ONLY a JSON array, one object per shortlist entry you have a judgment for:
[{"index": 0, "is_match": true, "confidence": 0.95, "reason": "same part number with different formatting"}]
index refers to the shortlist position. confidence is between 0 and 1. Do not add any other text.`

// buildPrompt renders the candidate and shortlist as a JSON document the
// model can reason over.
func buildPrompt(candidate *domain.Candidate, shortlist []*domain.Component) (string, error) {
	type promptComponent struct {
		Index        int    `json:"index"`
		Name         string `json:"name"`
		Manufacturer string `json:"manufacturer,omitempty"`
		PartNumber   string `json:"part_number,omitempty"`
		Description  string `json:"description,omitempty"`
	}

	components := make([]promptComponent, len(shortlist))
	for i, c := range shortlist {
		components[i] = promptComponent{
			Index:        i,
			Name:         c.Name,
			Manufacturer: c.Manufacturer,
			PartNumber:   c.PartNumber,
			Description:  c.Description,
		}
	}

	payload, err := json.Marshal(map[string]any{
		"candidate": map[string]string{
			"name":         candidate.Name,
			"manufacturer": candidate.Manufacturer,
			"part_number":  candidate.PartNumber,
			"description":  candidate.Description,
		},
		"shortlist": components,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Chat completions wire types (internal)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
