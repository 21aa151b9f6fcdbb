package segment

import (
	"regexp"
	"strings"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

var (
	definitionSignal = regexp.MustCompile(`(?i)\bmeans\b`)
	ruleSignal       = regexp.MustCompile(`(?i)\b(?:cover|exclu|limit)\w*`)

	// A quoted or capitalised term followed by a defining verb phrase
	definitionPattern = regexp.MustCompile(
		`(?:["“'‘][A-Za-z][^"”'’\n]{0,60}["”'’]|\b[A-Z][A-Za-z\-]*(?:\s+[A-Z][A-Za-z\-]*){0,4})\s*(?:,\s*)?` +
			`(?:means|shall mean|refers to|is defined as)\b`)

	strongRulePhrases = []string{
		"not covered",
		"shall not be",
		"excluded",
		"waiting period",
		"sub-limit",
		"co-payment",
		"we will pay",
		"we will not pay",
		"is payable",
		"maximum of",
		"up to",
	}
)

// Classify guesses a chunk's dominant content type from keyword counts.
// It only picks a prompt mode, so false positives are acceptable.
func Classify(text string) model.Hint {
	defs := len(definitionSignal.FindAllStringIndex(text, -1))
	rules := len(ruleSignal.FindAllStringIndex(text, -1))

	switch {
	case defs >= 2 && defs >= rules:
		return model.HintDefinitions
	case rules >= 2:
		return model.HintRules
	default:
		return model.HintMixed
	}
}

// DetectDefinitions counts "Term means ..." style defining sentences
func DetectDefinitions(text string) int {
	return len(definitionPattern.FindAllStringIndex(text, -1))
}

// LooksLikeDefinitions is the finer per-text detector that overrides a chunk hint.
// Two defining sentences are enough on their own; one suffices when the hint was undecided.
func LooksLikeDefinitions(text string, hint model.Hint) bool {
	n := DetectDefinitions(text)
	return n >= 2 || (n == 1 && hint == model.HintMixed)
}

// RuleSignal counts strong rule phrases such as "not covered" or "waiting period"
func RuleSignal(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, phrase := range strongRulePhrases {
		n += strings.Count(lower, phrase)
	}
	return n
}
