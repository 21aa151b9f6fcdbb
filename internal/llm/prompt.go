package llm

import (
	"fmt"
	"strings"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

// BatchLimit is the most items a batch prompt asks for
const BatchLimit = 4

const systemPreamble = `You extract structured items from insurance policy text.
Reply with exactly one JSON object and nothing else. No prose, no markdown.
Use only wording present in the text. Never invent terms, amounts or periods.
If nothing in the text matches the request, reply {"type":"none"}.
If you are unsure an item is correct, add "uncertain": true to it.`

const categoryGuide = `Rule categories:
- coverage: what the policy pays for
- exclusion: what the policy does not pay for
- waiting_period: time that must pass before a benefit applies
- financial_limit: caps, sub-limits, co-payments, deductibles
- claim_rejection: conditions under which a claim is refused`

// BuildPrompt returns the system and user turns for one extraction call
func BuildPrompt(mode model.PromptMode, text string) (system, user string) {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")

	switch mode {
	case model.ModeDefinitionSingle:
		b.WriteString("Extract the single most important defined term.\n")
		b.WriteString(`Schema: {"type":"definition","term":"...","definition":"..."}`)
	case model.ModeDefinitionBatch:
		fmt.Fprintf(&b, "Extract up to %d defined terms.\n", BatchLimit)
		b.WriteString(`Schema: {"type":"definition_batch","definitions":[{"term":"...","definition":"..."}]}`)
	case model.ModeRuleSingle:
		b.WriteString("Extract the single most important policy rule.\n")
		b.WriteString(categoryGuide)
		b.WriteString("\n")
		b.WriteString(`Schema: {"type":"<category>","rule":"..."}`)
	case model.ModeRuleBatch:
		fmt.Fprintf(&b, "Extract up to %d distinct policy rules.\n", BatchLimit)
		b.WriteString(categoryGuide)
		b.WriteString("\n")
		b.WriteString(`Schema: {"type":"rule_batch","rules":[{"type":"<category>","text":"..."}]}`)
	}

	return b.String(), "Text:\n" + text
}
