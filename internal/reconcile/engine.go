package reconcile

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

var (
	preExistingPattern = regexp.MustCompile(`pre[\s-]?existing`)
	waitingPattern     = regexp.MustCompile(`waiting|\bfirst\s+\d+`)
	amountPattern      = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// financialKeyWords is how many leading keywords identify a limit's subject
const financialKeyWords = 3

// resolver is one auto-resolution heuristic. The first that matches wins.
type resolver struct {
	match func(coverage, exclusion string, cfg *model.ReconcileConfig) bool
	res   model.AutoResolution
}

var resolvers = []resolver{
	{
		match: func(c, e string, _ *model.ReconcileConfig) bool {
			return preExistingPattern.MatchString(strings.ToLower(c + " " + e))
		},
		res: model.AutoResolution{
			Resolvable:        true,
			Explanation:       "Exclusion is a specific refinement of the coverage for pre-existing conditions",
			RecommendedAction: model.ActionKeepBothAddNote,
		},
	},
	{
		match: func(c, e string, _ *model.ReconcileConfig) bool {
			return waitingPattern.MatchString(strings.ToLower(c + " " + e))
		},
		res: model.AutoResolution{
			Resolvable:        true,
			Explanation:       "Exclusion is a temporary exclusion that lapses after a waiting period",
			RecommendedAction: model.ActionKeepBothAddNote,
		},
	},
	{
		match: func(c, e string, cfg *model.ReconcileConfig) bool {
			return float64(len(e)) >= cfg.LengthRatio*float64(len(c))
		},
		res: model.AutoResolution{
			Resolvable:        true,
			Explanation:       "Exclusion is more specific than the general coverage",
			RecommendedAction: model.ActionKeepBoth,
		},
	},
}

var unresolved = model.AutoResolution{
	Resolvable:        false,
	Explanation:       "Coverage and exclusion overlap with no recognised qualifier",
	RecommendedAction: model.ActionFlagForHumanReview,
}

// Engine detects conflicts across a normalized rule set
type Engine struct {
	config *model.ReconcileConfig
}

// NewEngine creates a reconciliation engine. Zero thresholds use the defaults.
func NewEngine(config *model.ReconcileConfig) *Engine {
	def := model.DefaultConfig().Reconcile
	cfg := def
	if config != nil {
		cfg = *config
		if cfg.OverlapThreshold <= 0 {
			cfg.OverlapThreshold = def.OverlapThreshold
		}
		if cfg.HighSeverityAt <= 0 {
			cfg.HighSeverityAt = def.HighSeverityAt
		}
		if cfg.CriticalSeverityAt <= 0 {
			cfg.CriticalSeverityAt = def.CriticalSeverityAt
		}
		if cfg.LengthRatio <= 0 {
			cfg.LengthRatio = def.LengthRatio
		}
	}
	return &Engine{config: &cfg}
}

// Reconcile runs the three detectors over rule texts by category. The input
// is only read.
func (e *Engine) Reconcile(rules map[model.Category][]string) model.Reconciliation {
	var conflicts []model.Conflict
	conflicts = append(conflicts, e.coverageVsExclusion(rules[model.CategoryCoverage], rules[model.CategoryExclusion])...)
	conflicts = append(conflicts, duplicateWaitingPeriods(rules[model.CategoryWaitingPeriod])...)
	conflicts = append(conflicts, conflictingLimits(rules[model.CategoryFinancialLimit])...)

	return summarize(conflicts)
}

// coverageVsExclusion compares every coverage item with every exclusion item
func (e *Engine) coverageVsExclusion(coverage, exclusions []string) []model.Conflict {
	var out []model.Conflict

	excKeywords := make([][]string, len(exclusions))
	for i, exc := range exclusions {
		excKeywords[i] = Keywords(exc)
	}

	for _, cov := range coverage {
		covKeywords := Keywords(cov)
		if len(covKeywords) == 0 {
			continue
		}
		for i, exc := range exclusions {
			if len(excKeywords[i]) == 0 {
				continue
			}
			overlap := Jaccard(covKeywords, excKeywords[i])
			if overlap < e.config.OverlapThreshold {
				continue
			}
			score := round2(overlap)
			res := e.resolve(cov, exc)
			out = append(out, model.Conflict{
				Type:         model.ConflictCoverageVsExclusion,
				Items:        []string{cov, exc},
				OverlapScore: &score,
				Severity:     e.severity(overlap),
				Resolution:   &res,
			})
		}
	}
	return out
}

func (e *Engine) severity(overlap float64) model.Severity {
	switch {
	case overlap >= e.config.CriticalSeverityAt:
		return model.SeverityCritical
	case overlap >= e.config.HighSeverityAt:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

func (e *Engine) resolve(coverage, exclusion string) model.AutoResolution {
	for _, r := range resolvers {
		if r.match(coverage, exclusion, e.config) {
			return r.res
		}
	}
	return unresolved
}

// duplicateWaitingPeriods flags every later waiting period whose keyword
// signature repeats an earlier one
func duplicateWaitingPeriods(items []string) []model.Conflict {
	var out []model.Conflict
	first := make(map[string]string)
	for _, text := range items {
		kw := Keywords(text)
		if len(kw) == 0 {
			continue
		}
		sig := Signature(kw)
		if prev, ok := first[sig]; ok {
			out = append(out, model.Conflict{
				Type:     model.ConflictDuplicateWaitingPeriod,
				Items:    []string{prev, text},
				Severity: model.SeverityMedium,
			})
			continue
		}
		first[sig] = text
	}
	return out
}

// conflictingLimits flags limits on the same subject with different amounts.
// The subject is the first three keywords; the amount is the first number.
func conflictingLimits(items []string) []model.Conflict {
	type limit struct {
		text   string
		amount float64
	}

	var out []model.Conflict
	first := make(map[string]limit)
	for _, text := range items {
		kw := Keywords(text)
		if len(kw) == 0 {
			continue
		}
		if len(kw) > financialKeyWords {
			kw = kw[:financialKeyWords]
		}
		amount, ok := firstAmount(text)
		if !ok {
			continue
		}
		key := strings.Join(kw, " ")
		prev, seen := first[key]
		if !seen {
			first[key] = limit{text: text, amount: amount}
			continue
		}
		if prev.amount != amount {
			out = append(out, model.Conflict{
				Type:     model.ConflictConflictingFinancialLimit,
				Items:    []string{prev.text, text},
				Severity: model.SeverityCritical,
			})
		}
	}
	return out
}

func firstAmount(text string) (float64, bool) {
	m := amountPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func summarize(conflicts []model.Conflict) model.Reconciliation {
	rec := model.Reconciliation{
		Conflicts: conflicts,
		Summary: model.ConflictSummary{
			Total:      len(conflicts),
			ByType:     make(map[model.ConflictType]int),
			BySeverity: make(map[model.Severity]int),
		},
	}
	if rec.Conflicts == nil {
		rec.Conflicts = []model.Conflict{}
	}

	for _, c := range conflicts {
		rec.Summary.ByType[c.Type]++
		rec.Summary.BySeverity[c.Severity]++
		if c.Severity == model.SeverityCritical {
			rec.HasCritical = true
		}
		if c.Resolution != nil && c.Resolution.Resolvable {
			rec.Summary.Resolvable++
		} else {
			rec.RequiresHumanReview = true
		}
	}
	return rec
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
