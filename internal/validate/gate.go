package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

// Rejection reasons
const (
	ReasonTooShort      = "too_short"
	ReasonNoWords       = "numeric_or_symbolic"
	ReasonUILeakage     = "ui_leakage"
	ReasonShortTerm     = "term_too_short"
	ReasonShortDef      = "definition_too_short"
	ReasonCorruptText   = "corrupt_text"
	ReasonRepeatedChars = "repeated_chars"
)

// repeatRun is the length of an identical-character run treated as corruption
const repeatRun = 5

// Decision is the gate's verdict on one item
type Decision struct {
	Accepted bool
	Reason   string
}

func accept() Decision              { return Decision{Accepted: true} }
func reject(reason string) Decision { return Decision{Reason: reason} }

// Rejection records an item dropped by the gate
type Rejection struct {
	Kind     model.ItemKind `json:"kind"`
	Category model.Category `json:"category,omitempty"`
	Term     string         `json:"term,omitempty"`
	Text     string         `json:"text"`
	Reason   string         `json:"reason"`
}

// Gate drops candidates that are too short, non-textual, UI leakage or corrupt OCR
type Gate struct {
	config    *model.QualityConfig
	uiPhrases []string
	corrupt   []*regexp.Regexp
}

// NewGate creates a quality gate. Patterns that fail to compile are skipped.
func NewGate(config *model.QualityConfig) *Gate {
	if config == nil {
		config = &model.DefaultConfig().Quality
	}

	g := &Gate{
		config:  config,
		corrupt: make([]*regexp.Regexp, 0, len(config.CorruptPatterns)),
	}

	for _, phrase := range config.UILeakagePhrases {
		if p := strings.ToLower(strings.TrimSpace(phrase)); p != "" {
			g.uiPhrases = append(g.uiPhrases, p)
		}
	}

	for _, pattern := range config.CorruptPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			g.corrupt = append(g.corrupt, re)
		}
	}

	return g
}

// CheckRule judges rule text
func (g *Gate) CheckRule(text string) Decision {
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) < g.config.MinRuleChars {
		return reject(ReasonTooShort)
	}
	if !hasLetter(text) {
		return reject(ReasonNoWords)
	}

	lower := strings.ToLower(text)
	for _, phrase := range g.uiPhrases {
		if strings.Contains(lower, phrase) {
			return reject(ReasonUILeakage)
		}
	}

	return accept()
}

// CheckDefinition judges a term/definition pair
func (g *Gate) CheckDefinition(term, definition string) Decision {
	term = strings.TrimSpace(term)
	definition = strings.TrimSpace(definition)

	if utf8.RuneCountInString(term) < g.config.MinTermChars {
		return reject(ReasonShortTerm)
	}
	if utf8.RuneCountInString(definition) < g.config.MinDefinitionChars {
		return reject(ReasonShortDef)
	}

	for _, s := range []string{term, definition} {
		for _, re := range g.corrupt {
			if re.MatchString(s) {
				return reject(ReasonCorruptText)
			}
		}
		if hasRun(s, repeatRun) {
			return reject(ReasonRepeatedChars)
		}
	}

	return accept()
}

// Filter applies the gate to a snapshot and returns the survivors together
// with every rejection. Order is preserved.
func (g *Gate) Filter(snap model.Snapshot) (model.Snapshot, []Rejection) {
	out := model.Snapshot{Rules: make(map[model.Category][]model.Entry, len(snap.Rules))}
	var rejected []Rejection

	for _, e := range snap.Definitions {
		if d := g.CheckDefinition(e.Term, e.Text); !d.Accepted {
			rejected = append(rejected, Rejection{Kind: model.KindDefinition, Term: e.Term, Text: e.Text, Reason: d.Reason})
			continue
		}
		out.Definitions = append(out.Definitions, e)
	}

	for _, cat := range model.AllCategories() {
		for _, e := range snap.Rules[cat] {
			if d := g.CheckRule(e.Text); !d.Accepted {
				rejected = append(rejected, Rejection{Kind: model.KindRule, Category: cat, Text: e.Text, Reason: d.Reason})
				continue
			}
			out.Rules[cat] = append(out.Rules[cat], e)
		}
	}

	return out, rejected
}

// hasLetter reports whether s contains a letter in any script
func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// hasRun reports whether s contains n or more consecutive identical non-space runes
func hasRun(s string, n int) bool {
	var prev rune
	count := 0
	for _, r := range s {
		if r == prev && r != ' ' {
			count++
			if count >= n {
				return true
			}
			continue
		}
		prev = r
		count = 1
	}
	return false
}
