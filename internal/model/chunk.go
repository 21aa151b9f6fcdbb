package model

// Hint is a cheap guess of a chunk's dominant content type
type Hint string

const (
	HintDefinitions Hint = "definitions"
	HintRules       Hint = "rules"
	HintMixed       Hint = "mixed"
)

// SectionKind identifies which header vocabulary entry opened a section
type SectionKind string

const (
	SectionPreamble    SectionKind = "preamble"
	SectionDefinitions SectionKind = "definitions"
	SectionCoverage    SectionKind = "coverage"
	SectionExclusions  SectionKind = "exclusions"
	SectionWaiting     SectionKind = "waiting_period"
	SectionLimits      SectionKind = "limits"
	SectionClaims      SectionKind = "claims"
	SectionConditions  SectionKind = "conditions"
)

// Chunk is an overlapping window of document text scheduled for extraction.
// Chunks are immutable once produced by the segmenter.
type Chunk struct {
	ID          int         `json:"id"`
	Hint        Hint        `json:"hint"`
	Section     SectionKind `json:"section"`
	RawText     string      `json:"raw_text"`
	CleanedText string      `json:"cleaned_text"`
}

// PromptMode selects the instruction and response shape for an extractor call
type PromptMode string

const (
	ModeDefinitionSingle PromptMode = "definition_single"
	ModeDefinitionBatch  PromptMode = "definition_batch"
	ModeRuleSingle       PromptMode = "rule_single"
	ModeRuleBatch        PromptMode = "rule_batch"
)

// IsDefinition reports whether the mode asks for definitions
func (m PromptMode) IsDefinition() bool {
	return m == ModeDefinitionSingle || m == ModeDefinitionBatch
}

// IsBatch reports whether the mode asks for several items at once
func (m PromptMode) IsBatch() bool {
	return m == ModeDefinitionBatch || m == ModeRuleBatch
}

// Batch returns the batch-capable counterpart of the mode
func (m PromptMode) Batch() PromptMode {
	if m.IsDefinition() {
		return ModeDefinitionBatch
	}
	return ModeRuleBatch
}

// ExtractionTask is one extractor call. Not persisted.
type ExtractionTask struct {
	Chunk       Chunk
	Mode        PromptMode
	TokenBudget int
	Pass        int
}
