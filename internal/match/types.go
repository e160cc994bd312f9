// Package match resolves extracted part candidates against a team's
// component catalog using tiered matching: exact identity, weighted fuzzy
// similarity, and an optional AI judgment over near misses.
package match

import (
	"github.com/quotelineapp/quoteline-server/internal/domain"
)

// Type identifies which tier produced a match.
type Type string

const (
	TypeExact Type = "exact"
	TypeFuzzy Type = "fuzzy"
	TypeAI    Type = "ai"
)

// Confidence buckets a score for display.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Match is one catalog component judged against a candidate.
type Match struct {
	Component  *domain.Component `json:"component"`
	Score      float64           `json:"score"`
	Type       Type              `json:"type"`
	Confidence Confidence        `json:"confidence"`
	Reason     string            `json:"reason"`
}

// Result is the outcome of matching one candidate. Matches are sorted by
// score descending. An exact match is always alone at score 1.0; an empty
// slice means nothing in the catalog cleared the minimum threshold.
type Result struct {
	Matches  []Match  `json:"matches"`
	Warnings []string `json:"warnings,omitempty"`
}

// Best returns the top match, or nil when there is none.
func (r *Result) Best() *Match {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}
