package score

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/rules"
)

// Signal types
const (
	SignalStructured = "structured_format"
	SignalNumbers    = "specific_numbers"
	SignalSentence   = "complete_sentence"
	SignalFormal     = "formal_language"
	SignalRuleHint   = "rule_hint"
	SignalVague      = "vague_language"
	SignalQuestion   = "question_form"
	SignalShort      = "very_short"
	SignalUncertain  = "extractor_uncertain"
)

// Confidence bands per source
const (
	aiBase = 0.70
	aiMin  = 0.50
	aiMax  = 0.95

	engineBase = 0.99
	engineMax  = 0.99
)

// DefaultReviewThreshold is the confidence below which items are flagged for review
const DefaultReviewThreshold = 0.85

var (
	structuredPattern = regexp.MustCompile(`(?m)^\s*(?:[-–•*·▪]|\(?\d{1,3}(?:\.\d{1,3})*[.)]|\(?[a-z][.)]|\(?[ivx]{1,4}[.)])\s+|\||\t`)
	numberPattern     = regexp.MustCompile(`(?i)(?:\brs\.?|\binr|₹|\$|\busd)\s*\d|\d+(?:\.\d+)?\s*%|\b\d+\s*(?:days?|months?|years?|hours?)\b`)
	formalPattern     = regexp.MustCompile(`(?i)\b(?:shall|excluded|hereinafter|pursuant|insured|policyholder|indemnify|payable|liable|herein|thereof)\b`)
	vaguePattern      = regexp.MustCompile(`(?i)\b(?:may|might|typically|possibly|usually|generally)\b`)
)

// Scorer assigns a confidence to accepted items from transparent text signals
type Scorer struct {
	reviewThreshold float64
}

// NewScorer creates a scorer. A non-positive threshold uses the default.
func NewScorer(reviewThreshold float64) *Scorer {
	if reviewThreshold <= 0 {
		reviewThreshold = DefaultReviewThreshold
	}
	return &Scorer{reviewThreshold: reviewThreshold}
}

// Calculate scores one text and returns the confidence with every signal that fired
func (s *Scorer) Calculate(text string, source model.Source, hint model.Hint, uncertain bool) (float64, []model.Signal) {
	var signals []model.Signal
	add := func(typ string, delta float64, desc string) {
		signals = append(signals, model.Signal{Type: typ, Delta: delta, Description: desc})
	}

	trimmed := strings.TrimSpace(text)

	if structuredPattern.MatchString(text) {
		add(SignalStructured, 0.10, "Bulleted, numbered or tabular text")
	}
	if numberPattern.MatchString(trimmed) {
		add(SignalNumbers, 0.08, "Contains an amount, percentage or duration")
	}
	if isSentence(trimmed) {
		add(SignalSentence, 0.05, "Complete sentence")
	}
	if formalPattern.MatchString(trimmed) {
		add(SignalFormal, 0.07, "Formal legal wording")
	}
	if hint == model.HintRules {
		add(SignalRuleHint, 0.05, "Originating chunk was rule-hinted")
	}
	if vaguePattern.MatchString(trimmed) {
		add(SignalVague, -0.15, "Vague modal language")
	}
	if strings.Contains(trimmed, "?") {
		add(SignalQuestion, -0.20, "Question form")
	}
	if utf8.RuneCountInString(trimmed) < 10 {
		add(SignalShort, -0.10, "Under 10 characters")
	}
	if uncertain {
		add(SignalUncertain, -0.25, "Extractor signalled uncertainty")
	}

	base, lo, hi := aiBase, aiMin, aiMax
	if source == model.SourceRuleEngine {
		base, lo, hi = engineBase, rules.Confidence, engineMax
	}

	total := base
	for _, sig := range signals {
		total += sig.Delta
	}

	return round2(clamp(total, lo, hi)), signals
}

// Accept turns a gated entry into an AcceptedItem
func (s *Scorer) Accept(kind model.ItemKind, cat model.Category, e model.Entry) model.AcceptedItem {
	conf, signals := s.Calculate(e.Text, e.Source, e.Hint, e.Uncertain)
	return model.AcceptedItem{
		Kind:        kind,
		Category:    cat,
		Term:        e.Term,
		Text:        e.Text,
		Source:      e.Source,
		ChunkID:     e.ChunkID,
		Confidence:  conf,
		NeedsReview: conf < s.reviewThreshold,
		Signals:     signals,
	}
}

// ScoreAll scores a gated snapshot. Definitions keep their order; rules are
// emitted category by category.
func (s *Scorer) ScoreAll(snap model.Snapshot) (defs, ruleItems []model.AcceptedItem) {
	for _, e := range snap.Definitions {
		defs = append(defs, s.Accept(model.KindDefinition, "", e))
	}
	for _, cat := range model.AllCategories() {
		for _, e := range snap.Rules[cat] {
			ruleItems = append(ruleItems, s.Accept(model.KindRule, cat, e))
		}
	}
	return defs, ruleItems
}

// isSentence reports an uppercase start and a terminating period
func isSentence(s string) bool {
	if s == "" || !strings.HasSuffix(s, ".") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
