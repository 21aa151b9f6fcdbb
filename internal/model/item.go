package model

import "fmt"

// Category is one of the five rule categories
type Category string

const (
	CategoryCoverage       Category = "coverage"
	CategoryExclusion      Category = "exclusion"
	CategoryWaitingPeriod  Category = "waiting_period"
	CategoryFinancialLimit Category = "financial_limit"
	CategoryClaimRejection Category = "claim_rejection"
)

// AllCategories returns the rule categories in output order
func AllCategories() []Category {
	return []Category{
		CategoryCoverage,
		CategoryExclusion,
		CategoryWaitingPeriod,
		CategoryFinancialLimit,
		CategoryClaimRejection,
	}
}

// ParseCategory converts a wire string into a Category
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown rule category: %q", s)
}

// Source tags which extraction path produced an item
type Source string

const (
	SourceAI         Source = "ai_extraction"
	SourceRuleEngine Source = "rule_engine"
)

// Item is a structured item returned by an extraction path.
// The set of variants is closed: Definition, Rule, DefinitionBatch, RuleBatch, None.
type Item interface {
	isItem()
}

// Definition is a defined term
type Definition struct {
	Term       string
	Definition string
	Uncertain  bool
}

// Rule is a single policy rule
type Rule struct {
	Category  Category
	Text      string
	Uncertain bool
}

// DefinitionBatch carries several definitions from one call
type DefinitionBatch struct {
	Definitions []Definition
}

// RuleBatch carries several rules from one call
type RuleBatch struct {
	Rules []Rule
}

// None means the extractor found nothing extractable
type None struct{}

func (Definition) isItem()      {}
func (Rule) isItem()            {}
func (DefinitionBatch) isItem() {}
func (RuleBatch) isItem()       {}
func (None) isItem()            {}

// ItemKind distinguishes definitions from rules after acceptance
type ItemKind string

const (
	KindDefinition ItemKind = "definition"
	KindRule       ItemKind = "rule"
)

// Signal records one confidence adjustment so the final score is explainable
type Signal struct {
	Type        string  `json:"type"`
	Delta       float64 `json:"delta"`
	Description string  `json:"description,omitempty"`
}

// AcceptedItem is an item that passed the quality gate, enriched with a score
type AcceptedItem struct {
	Kind        ItemKind `json:"kind"`
	Category    Category `json:"category,omitempty"`
	Term        string   `json:"term,omitempty"`
	Text        string   `json:"text"`
	Source      Source   `json:"source"`
	ChunkID     int      `json:"chunk_id"`
	Confidence  float64  `json:"confidence"`
	NeedsReview bool     `json:"needs_review"`
	Signals     []Signal `json:"signals,omitempty"`
}
