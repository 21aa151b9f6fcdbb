package reconcile

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/util"
)

// stopWords carry no topic: function words plus the verbs of coverage and
// exclusion themselves, which would otherwise make every pair overlap
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "any": true, "all": true,
	"not": true, "nor": true, "but": true, "under": true, "policy": true, "shall": true,
	"will": true, "with": true, "from": true, "this": true, "that": true, "such": true,
	"which": true, "been": true, "has": true, "have": true, "was": true, "were": true,
	"per": true, "upto": true, "its": true, "their": true, "our": true, "your": true,
	"you": true, "into": true, "also": true, "only": true, "other": true, "than": true,
	"then": true, "there": true, "these": true, "those": true, "who": true, "what": true,
	"when": true, "where": true, "upon": true, "within": true, "without": true,
	"each": true, "every": true, "including": true, "include": true, "includes": true,
	"cover": true, "covered": true, "covers": true, "coverage": true,
	"exclude": true, "excluded": true, "excludes": true, "exclusion": true, "exclusions": true,
	"limit": true, "limited": true, "limits": true, "capped": true, "maximum": true,
	"payable": true, "paid": true, "insured": true, "insurer": true, "company": true,
	"applicable": true, "applies": true, "apply": true,
}

// Keywords returns the distinct topic words of text in order of appearance:
// normalized tokens of at least three characters that are neither numeric
// nor stop words
func Keywords(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(util.NormalizeKey(text)) {
		if utf8.RuneCountInString(tok) < 3 || stopWords[tok] || isNumeric(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Signature is the order-independent form of a keyword set
func Signature(keywords []string) string {
	sorted := append([]string(nil), keywords...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// Jaccard is |a ∩ b| / |a ∪ b| over two keyword sets. Two empty sets score 0.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	inter := 0
	union := len(set)
	counted := make(map[string]bool, len(b))
	for _, w := range b {
		if counted[w] {
			continue
		}
		counted[w] = true
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
