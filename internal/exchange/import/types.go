// Package exchangeimport applies exchange bundles to a destination team.
package exchangeimport

import (
	"fmt"
	"time"

	"github.com/quotelineapp/quoteline-server/internal/exchange"
)

// Result reports what an import run did. Imported counts freshly placed
// rows; Updated counts destination rows overwritten in place.
type Result struct {
	Imported map[string]int `json:"imported"`
	Updated  map[string]int `json:"updated"`
	Skipped  map[string]int `json:"skipped"`
	Errors   []ImportError  `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	// Conflicts holds what conflict detection found. On a dry run this is
	// the whole point of the result; on a real run it shows what the
	// resolutions were applied to.
	Conflicts   []exchange.Conflict `json:"conflicts,omitempty"`
	DryRun      bool                `json:"dry_run,omitempty"`
	Duration    time.Duration       `json:"duration"`
	CompletedAt time.Time           `json:"completed_at"`
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ImportError represents a non-fatal import error. The run continues past
// these; they are reported so the caller knows which rows did not land.
type ImportError struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	Error      string `json:"error"`
}

func newResult() *Result {
	return &Result{
		Imported: make(map[string]int),
		Updated:  make(map[string]int),
		Skipped:  make(map[string]int),
	}
}
