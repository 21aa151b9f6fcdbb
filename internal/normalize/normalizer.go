package normalize

import (
	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/util"
)

// Normalized is the deduplicated accepted set of one job
type Normalized struct {
	Definitions []model.AcceptedItem                    `json:"definitions"`
	Rules       map[model.Category][]model.AcceptedItem `json:"rules"`
}

// Dedupe keeps the first literal occurrence per normalized key. Rules are
// keyed by text within their category, definitions by term. The inputs are
// not modified and running Dedupe on its own output is a no-op.
func Dedupe(defs, rules []model.AcceptedItem) Normalized {
	out := Normalized{Rules: make(map[model.Category][]model.AcceptedItem)}

	seenTerms := make(map[string]bool, len(defs))
	for _, d := range defs {
		key := util.NormalizeKey(d.Term)
		if key == "" || seenTerms[key] {
			continue
		}
		seenTerms[key] = true
		out.Definitions = append(out.Definitions, d)
	}

	seen := make(map[model.Category]map[string]bool)
	for _, r := range rules {
		if _, err := model.ParseCategory(string(r.Category)); err != nil {
			continue
		}
		key := util.NormalizeKey(r.Text)
		if key == "" {
			continue
		}
		if seen[r.Category] == nil {
			seen[r.Category] = make(map[string]bool)
		}
		if seen[r.Category][key] {
			continue
		}
		seen[r.Category][key] = true
		out.Rules[r.Category] = append(out.Rules[r.Category], r)
	}

	return out
}

// Flatten returns the rules in category order. Feeding Definitions and
// Flatten back into Dedupe reproduces n.
func (n Normalized) Flatten() []model.AcceptedItem {
	var out []model.AcceptedItem
	for _, cat := range model.AllCategories() {
		out = append(out, n.Rules[cat]...)
	}
	return out
}

// RuleTexts returns the rule texts per category
func (n Normalized) RuleTexts() map[model.Category][]string {
	out := make(map[model.Category][]string, len(n.Rules))
	for cat, items := range n.Rules {
		texts := make([]string, len(items))
		for i, it := range items {
			texts[i] = it.Text
		}
		out[cat] = texts
	}
	return out
}

// Len returns the number of items kept
func (n Normalized) Len() int {
	total := len(n.Definitions)
	for _, items := range n.Rules {
		total += len(items)
	}
	return total
}
