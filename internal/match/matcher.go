package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/quotelineapp/quoteline-server/internal/ai"
	"github.com/quotelineapp/quoteline-server/internal/config"
	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/normalize"
)

// Cap on returned matches and on the shortlist escalated to the AI tier.
const maxMatches = 3

// AIJudge is the semantic tier provider. *ai.Client satisfies it; a nil
// judge disables the tier entirely.
type AIJudge interface {
	Enabled() bool
	Evaluate(ctx context.Context, candidate *domain.Candidate, shortlist []*domain.Component) ([]ai.Verdict, error)
}

// Matcher scores candidates against catalog components.
type Matcher struct {
	cfg    config.MatchConfig
	judge  AIJudge
	logger *slog.Logger
}

// NewMatcher creates a matcher with the given tunables. judge may be nil.
func NewMatcher(cfg config.MatchConfig, judge AIJudge, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		cfg:    cfg,
		judge:  judge,
		logger: logger,
	}
}

// UpdateClient swaps the semantic tier provider, for when the team's AI
// settings change at runtime. Passing nil disables the tier.
func (m *Matcher) UpdateClient(judge AIJudge) {
	m.judge = judge
}

// Match resolves a candidate against the given components.
//
// Tier 1 compares raw manufacturer and part number for identity and runs
// only when the candidate carries both fields; formatting or case
// differences fall through to the fuzzy tier. Tier 2 scores every
// component on weighted similarity over canonical forms. A best score at
// or above the high threshold settles the match as fuzzy; a best score in
// the medium band escalates the top candidates to the AI judge; anything
// weaker resolves as no match without consulting the judge. A judge
// failure degrades to the fuzzy result with a warning rather than failing
// the match.
func (m *Matcher) Match(ctx context.Context, candidate *domain.Candidate, components []*domain.Component) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Tier 1: exact identity on raw fields.
	if exact := m.matchExact(candidate, components); exact != nil {
		return &Result{Matches: []Match{*exact}}, nil
	}

	// Tier 2: weighted fuzzy similarity. Scores below the minimum
	// threshold are out of the running entirely.
	scored := m.scoreAll(candidate, components)
	kept := scored[:0:0]
	for _, s := range scored {
		if s.score < m.cfg.MinThreshold {
			break
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return &Result{}, nil
	}
	if len(kept) > maxMatches {
		kept = kept[:maxMatches]
	}

	best := kept[0].score
	if best >= m.cfg.HighThreshold {
		result := &Result{}
		for _, s := range kept {
			result.Matches = append(result.Matches, m.fuzzyMatch(s))
		}
		return result, nil
	}
	if best < m.cfg.MediumThreshold {
		// Considered and rejected as too uncertain. The judge is not
		// consulted for candidates this weak.
		return &Result{}, nil
	}

	// Tier 3: the medium-confidence shortlist goes to the AI judge. With
	// no judge available the fuzzy result stands as-is.
	shortlist := kept[:0:0]
	result := &Result{}
	for _, s := range kept {
		if s.score < m.cfg.MediumThreshold {
			break
		}
		shortlist = append(shortlist, s)
		result.Matches = append(result.Matches, m.fuzzyMatch(s))
	}
	if m.judge == nil || !m.judge.Enabled() {
		return result, nil
	}

	m.judgeShortlist(ctx, candidate, shortlist, result)
	return result, nil
}

func (m *Matcher) fuzzyMatch(s scoredComponent) Match {
	return Match{
		Component:  s.component,
		Score:      s.score,
		Type:       TypeFuzzy,
		Confidence: m.confidence(s.score),
		Reason:     s.reason,
	}
}

type scoredComponent struct {
	component *domain.Component
	score     float64
	reason    string
}

// matchExact returns the exact-tier match, or nil. Fields are compared
// raw and case-sensitive; this tier is a fast path for already-clean data
// and anything sloppier belongs to the fuzzy tier. When several
// components carry the same fields, the one whose name is closest to the
// candidate's wins.
func (m *Matcher) matchExact(candidate *domain.Candidate, components []*domain.Component) *Match {
	if candidate.Manufacturer == "" || candidate.PartNumber == "" {
		return nil
	}

	candName := normalize.Canonical(candidate.Name)
	var best *domain.Component
	bestNameSim := -1.0

	for _, c := range components {
		if c.Manufacturer != candidate.Manufacturer || c.PartNumber != candidate.PartNumber {
			continue
		}
		nameSim := stringSimilarity(candName, normalize.Canonical(c.Name))
		if nameSim > bestNameSim {
			best = c
			bestNameSim = nameSim
		}
	}

	if best == nil {
		return nil
	}
	return &Match{
		Component:  best,
		Score:      1.0,
		Type:       TypeExact,
		Confidence: ConfidenceHigh,
		Reason:     "exact manufacturer and part number match",
	}
}

// scoreAll computes fuzzy scores for every component, sorted descending.
// Ties sort by component ID for determinism.
func (m *Matcher) scoreAll(candidate *domain.Candidate, components []*domain.Component) []scoredComponent {
	scored := make([]scoredComponent, 0, len(components))
	for _, c := range components {
		score, reason, ok := m.fuzzyScore(candidate, c)
		if !ok {
			continue
		}
		scored = append(scored, scoredComponent{component: c, score: score, reason: reason})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].component.ID < scored[j].component.ID
	})

	return scored
}

// fuzzyScore computes the weighted per-field similarity of a candidate and a
// component. A field empty on both sides is excluded and the remaining
// weights renormalized; a field empty on one side only scores zero. Returns
// ok=false when no field is comparable.
func (m *Matcher) fuzzyScore(candidate *domain.Candidate, c *domain.Component) (float64, string, bool) {
	fields := []struct {
		name   string
		weight float64
		cand   string
		comp   string
	}{
		{"part number", m.cfg.WeightPartNumber, normalize.Canonical(candidate.PartNumber), normalize.Canonical(c.PartNumber)},
		{"manufacturer", m.cfg.WeightManufacturer, normalize.Canonical(candidate.Manufacturer), normalize.Canonical(c.Manufacturer)},
		{"name", m.cfg.WeightName, normalize.Canonical(candidate.Name), normalize.Canonical(c.Name)},
	}

	var weightSum, total float64
	var bestField string
	var bestFieldSim float64
	for _, f := range fields {
		if f.cand == "" && f.comp == "" {
			continue
		}
		sim := stringSimilarity(f.cand, f.comp)
		total += sim * f.weight
		weightSum += f.weight
		if sim >= bestFieldSim {
			bestField = f.name
			bestFieldSim = sim
		}
	}

	if weightSum == 0 {
		return 0, "", false
	}

	score := total / weightSum
	reason := fmt.Sprintf("fuzzy match: %s %.0f%% similar", bestField, bestFieldSim*100)
	return score, reason, true
}

// judgeShortlist sends the medium-confidence shortlist to the AI judge
// and folds an accepted verdict into the result. Failures and rejections
// degrade to the fuzzy result.
func (m *Matcher) judgeShortlist(ctx context.Context, candidate *domain.Candidate, scored []scoredComponent, result *Result) {
	shortlist := make([]*domain.Component, len(scored))
	for i, s := range scored {
		shortlist[i] = s.component
	}

	verdicts, err := m.judge.Evaluate(ctx, candidate, shortlist)
	if err != nil {
		m.logger.Warn("ai match tier failed, keeping fuzzy result", "error", err)
		result.Warnings = append(result.Warnings, "AI matching unavailable: "+err.Error())
		return
	}

	var accepted *ai.Verdict
	for i, v := range verdicts {
		if !v.IsMatch || v.Confidence < m.cfg.AIAcceptFloor {
			continue
		}
		if accepted == nil || v.Confidence > accepted.Confidence {
			accepted = &verdicts[i]
		}
	}
	if accepted == nil {
		return
	}

	component := shortlist[accepted.Index]
	reason := "accepted by model"
	if accepted.Reason != "" {
		reason = "accepted by model: " + accepted.Reason
	}
	aiMatch := Match{
		Component:  component,
		Score:      accepted.Confidence,
		Type:       TypeAI,
		Confidence: m.confidence(accepted.Confidence),
		Reason:     reason,
	}

	// Replace any fuzzy entry for the same component and put the AI match
	// first.
	matches := []Match{aiMatch}
	for _, existing := range result.Matches {
		if existing.Component.ID == component.ID {
			continue
		}
		matches = append(matches, existing)
	}
	result.Matches = matches
}

// confidence buckets a score against the configured thresholds.
func (m *Matcher) confidence(score float64) Confidence {
	switch {
	case score >= m.cfg.HighThreshold:
		return ConfidenceHigh
	case score >= m.cfg.MediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
