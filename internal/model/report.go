package model

import "time"

// JobResult is the complete output of one extraction job, returned to the caller
type JobResult struct {
	Meta           Meta                  `json:"meta"`
	Definitions    []DefinitionOutput    `json:"definitions"`
	Rules          []RuleOutput          `json:"rules"`
	Metrics        JobMetrics            `json:"metrics"`
	Reconciliation *Reconciliation       `json:"reconciliation,omitempty"`
	Canonical      []CanonicalDefinition `json:"canonical_definitions,omitempty"`
}

// Meta describes the job and the document it ran over
type Meta struct {
	JobID        string    `json:"job_id"`
	LocalJob     bool      `json:"local_job"` // true when the store was unavailable
	Document     string    `json:"document"`
	BlobURL      string    `json:"blob_url,omitempty"`
	Bytes        int       `json:"bytes"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMS   int64     `json:"duration_ms"`
	ResultDigest string    `json:"result_digest,omitempty"` // sha256 of the canonical JSON of definitions+rules
	Warnings     []string  `json:"warnings,omitempty"`
}

// DefinitionOutput is one definition in the job output contract
type DefinitionOutput struct {
	Term        string  `json:"term"`
	Definition  string  `json:"definition"`
	Key         string  `json:"key,omitempty"`
	Source      Source  `json:"source"`
	Confidence  float64 `json:"confidence"`
	NeedsReview bool    `json:"needs_review"`
}

// RuleOutput is one rule in the job output contract
type RuleOutput struct {
	Category    Category `json:"category"`
	Text        string   `json:"text"`
	Source      Source   `json:"source"`
	Confidence  float64  `json:"confidence"`
	NeedsReview bool     `json:"needs_review"`
}

// JobMetrics makes partial success observable
type JobMetrics struct {
	TotalChunks     int `json:"totalChunks"`
	ParsedChunks    int `json:"parsedChunks"`
	FailedChunks    int `json:"failedChunks"`
	Pass2Candidates int `json:"pass2Candidates"`
	TimedOut        int `json:"timedOut"`
	RuleEngineItems int `json:"ruleEngineItems"`
	Rejected        int `json:"rejected"`
	NeedsReview     int `json:"needsReview"`
}

// CanonicalSource tells whether a canonical key came from the curated registry
type CanonicalSource string

const (
	CanonicalRegistry CanonicalSource = "registry"
	CanonicalAutoSlug CanonicalSource = "auto_slug"
)

// CanonicalDefinition is a definition mapped onto a stable, alias-resistant key
type CanonicalDefinition struct {
	Key           string          `json:"key"`
	CanonicalTerm string          `json:"canonical_term"`
	RawTerms      []string        `json:"raw_terms"`
	Definition    string          `json:"definition"`
	Source        CanonicalSource `json:"source"`
	Confidence    float64         `json:"confidence"`
	NeedsReview   bool            `json:"needs_review"`
}

// ConflictType classifies a detected contradiction
type ConflictType string

const (
	ConflictCoverageVsExclusion       ConflictType = "coverageVsExclusion"
	ConflictDuplicateWaitingPeriod    ConflictType = "duplicateWaitingPeriod"
	ConflictConflictingFinancialLimit ConflictType = "conflictingFinancialLimit"
)

// Severity of a conflict
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RecommendedAction is the suggested handling of a conflict
type RecommendedAction string

const (
	ActionKeepBoth           RecommendedAction = "keepBoth"
	ActionKeepBothAddNote    RecommendedAction = "keepBothAddNote"
	ActionFlagForHumanReview RecommendedAction = "flagForHumanReview"
)

// AutoResolution is a heuristic judgement on whether a conflict is genuine
type AutoResolution struct {
	Resolvable        bool              `json:"resolvable"`
	Explanation       string            `json:"explanation"`
	RecommendedAction RecommendedAction `json:"recommendedAction"`
}

// Conflict is a tension between rule items whose topics overlap but whose claims differ
type Conflict struct {
	Type         ConflictType    `json:"type"`
	Items        []string        `json:"items"`
	OverlapScore *float64        `json:"overlapScore,omitempty"`
	Severity     Severity        `json:"severity"`
	Resolution   *AutoResolution `json:"resolution"`
}

// ConflictSummary counts conflicts
type ConflictSummary struct {
	Total      int                  `json:"total"`
	Resolvable int                  `json:"resolvable"`
	ByType     map[ConflictType]int `json:"byType"`
	BySeverity map[Severity]int     `json:"bySeverity"`
}

// Reconciliation is the conflict analysis over a normalized rule set
type Reconciliation struct {
	Conflicts           []Conflict      `json:"conflicts"`
	Summary             ConflictSummary `json:"summary"`
	HasCritical         bool            `json:"hasCritical"`
	RequiresHumanReview bool            `json:"requiresHumanReview"`
}
