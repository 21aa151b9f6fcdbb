package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/metrics"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/store"
)

const policyDoc = `POLICY SCHEDULE
Registration No. 12345

4. EXCLUSIONS
- War, invasion, acts of foreign enemies and
hostilities are excluded.
- Cosmetic surgery unless necessitated by an
accident.
5. Waiting Periods
a) 30 days initial waiting period for all illnesses.
b) Pre-existing diseases are covered after 48 months
of continuous coverage.
6. Benefits
- Maternity expenses are covered for hospitalization.
DEFINITIONS
Hospital means any institution established for in-patient care.
`

// fakeExtractor answers definition chunks with the hospital definition and
// everything else with nothing
type fakeExtractor struct {
	calls atomic.Int64
	panic bool
}

func (f *fakeExtractor) Extract(ctx context.Context, mode model.PromptMode, text string, maxTokens int) (string, error) {
	f.calls.Add(1)
	if f.panic {
		panic("backend exploded")
	}
	if strings.Contains(text, "Hospital means") {
		return `{"type":"definition","term":"Hospital","definition":"Any institution established for in-patient care and day care treatment of illness."}`, nil
	}
	return `{"type":"none"}`, nil
}

func (f *fakeExtractor) Name() string  { return "fake" }
func (f *fakeExtractor) Model() string { return "fake-1" }

// brokenStore fails every operation
type brokenStore struct{}

var errBroken = errors.New("database unreachable")

func (brokenStore) PutBlob(ctx context.Context, data []byte) (string, error) { return "", errBroken }
func (brokenStore) CreateJob(ctx context.Context, name, blobURL string) (*store.Job, error) {
	return nil, errBroken
}
func (brokenStore) CompleteJob(ctx context.Context, jobID string, result *model.JobResult, meta model.Meta, stats model.JobMetrics) error {
	return errBroken
}
func (brokenStore) FailJob(ctx context.Context, jobID string, meta model.Meta, reason string) error {
	return errBroken
}
func (brokenStore) Close() error { return nil }

// explodingStore persists normally but panics when a job completes
type explodingStore struct {
	*store.FileStore
}

func (explodingStore) CompleteJob(ctx context.Context, jobID string, result *model.JobResult, meta model.Meta, stats model.JobMetrics) error {
	panic("write barrier broken")
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Segment = model.SegmentConfig{MinSectionChars: 1, WindowChars: 2000, OverlapChars: 0, MinChunkChars: 20}
	cfg.Extraction.Workers = 2
	cfg.Extraction.CallTimeout = time.Second
	cfg.Extraction.CallDelay = 0
	return cfg
}

func testDocument(t *testing.T) *Document {
	t.Helper()
	doc, err := NewDocument("policy.txt", "policy.txt", []byte(policyDoc), "")
	require.NoError(t, err)
	return doc
}

func ruleTexts(result *model.JobResult, cat model.Category) []string {
	var out []string
	for _, r := range result.Rules {
		if r.Category == cat {
			out = append(out, r.Text)
		}
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := metrics.New()
	ex := &fakeExtractor{}

	p, err := NewPipeline(testConfig(), WithExtractor(ex), WithStore(fs), WithMetrics(m))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), testDocument(t))
	require.NoError(t, err)

	assert.False(t, result.Meta.LocalJob)
	assert.NotEmpty(t, result.Meta.JobID)
	assert.True(t, strings.HasPrefix(result.Meta.BlobURL, "file://"))
	assert.Equal(t, "fake", result.Meta.Provider)
	assert.Equal(t, "fake-1", result.Meta.Model)
	assert.Len(t, result.Meta.ResultDigest, 64)
	assert.Positive(t, ex.calls.Load())

	// Rule engine items survive with their source
	assert.Contains(t, ruleTexts(result, model.CategoryExclusion), "War, invasion, acts of foreign enemies and hostilities are excluded.")
	assert.Contains(t, ruleTexts(result, model.CategoryWaitingPeriod), "30 days initial waiting period for all illnesses.")
	assert.Contains(t, ruleTexts(result, model.CategoryCoverage), "Maternity expenses are covered for hospitalization.")
	for _, r := range result.Rules {
		assert.Equal(t, model.SourceRuleEngine, r.Source)
		assert.GreaterOrEqual(t, r.Confidence, 0.95)
	}
	assert.Equal(t, 5, result.Metrics.RuleEngineItems)

	// The AI definition is canonicalized onto the registry key
	require.Len(t, result.Definitions, 1)
	assert.Equal(t, "Hospital", result.Definitions[0].Term)
	assert.Equal(t, "hospital", result.Definitions[0].Key)
	assert.Equal(t, model.SourceAI, result.Definitions[0].Source)
	require.Len(t, result.Canonical, 1)
	assert.Equal(t, model.CanonicalRegistry, result.Canonical[0].Source)

	require.NotNil(t, result.Reconciliation)
	assert.NotNil(t, result.Reconciliation.Conflicts)

	// The job record is completed with the same result
	rec, err := fs.Load(result.Meta.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Job.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, result.Meta.ResultDigest, rec.Result.Meta.ResultDigest)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Jobs.WithLabelValues("completed")))
}

func TestRun_Deterministic(t *testing.T) {
	p, err := NewPipeline(testConfig(), WithExtractor(&fakeExtractor{}))
	require.NoError(t, err)

	first, err := p.Run(context.Background(), testDocument(t))
	require.NoError(t, err)
	second, err := p.Run(context.Background(), testDocument(t))
	require.NoError(t, err)

	assert.Equal(t, first.Definitions, second.Definitions)
	assert.Equal(t, first.Rules, second.Rules)
	assert.Equal(t, first.Meta.ResultDigest, second.Meta.ResultDigest)
	assert.NotEqual(t, first.Meta.JobID, second.Meta.JobID)
}

func TestRun_RuleEngineOnly(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	result, err := p.Run(context.Background(), testDocument(t))
	require.NoError(t, err)

	assert.True(t, result.Meta.LocalJob)
	assert.True(t, strings.HasPrefix(result.Meta.JobID, "local-"))
	assert.Empty(t, result.Definitions)
	assert.Len(t, result.Rules, 5)
	assert.Zero(t, result.Metrics.ParsedChunks)
	assert.Contains(t, result.Meta.Warnings, "no extractor configured: rule engine only")
}

func TestRun_StoreFailureDegradesToLocalJob(t *testing.T) {
	p, err := NewPipeline(testConfig(), WithExtractor(&fakeExtractor{}), WithStore(brokenStore{}))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), testDocument(t))
	require.NoError(t, err)

	assert.True(t, result.Meta.LocalJob)
	assert.True(t, strings.HasPrefix(result.Meta.JobID, "local-"))
	assert.Empty(t, result.Meta.BlobURL)
	assert.NotEmpty(t, result.Rules)
	require.NotEmpty(t, result.Meta.Warnings)
	assert.Contains(t, result.Meta.Warnings[0], "persistence unavailable")
}

func TestRun_ExtractorPanicsAreChunkFailures(t *testing.T) {
	p, err := NewPipeline(testConfig(), WithExtractor(&fakeExtractor{panic: true}))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), testDocument(t))
	require.NoError(t, err)

	assert.Positive(t, result.Metrics.FailedChunks)
	assert.Zero(t, result.Metrics.ParsedChunks)
	assert.Empty(t, result.Definitions)
	assert.Len(t, result.Rules, 5)
}

func TestRun_PanicMarksJobRecordFailed(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := metrics.New()

	p, err := NewPipeline(testConfig(), WithStore(explodingStore{fs}), WithMetrics(m))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), testDocument(t))
	require.Error(t, err)
	assert.Nil(t, result)

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, StageRun, jobErr.Stage)
	require.NotEmpty(t, jobErr.JobID)
	assert.NotContains(t, jobErr.JobID, "local-")

	rec, err := fs.Load(jobErr.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Job.Status)
	assert.Contains(t, rec.Job.Error, "write barrier broken")
	assert.NotNil(t, rec.Job.CompletedAt)
}

func TestRun_EmptyDocument(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), &Document{Name: "empty.txt"})
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, StageLoad, jobErr.Stage)
	assert.True(t, IsFatalInput(err))
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(good, []byte(policyDoc), 0o644))
	pdf := filepath.Join(dir, "policy.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4 binary"), 0o644))

	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	result, err := p.Process(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, "policy.txt", result.Meta.Document)
	assert.Equal(t, len(policyDoc), result.Meta.Bytes)

	_, err = p.Process(context.Background(), pdf)
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, StageLoad, jobErr.Stage)
	assert.True(t, IsFatalInput(err))
	assert.Contains(t, err.Error(), "PDF")
}

func TestNewPipeline_BadRegistry(t *testing.T) {
	cfg := testConfig()
	cfg.Normalize.RegistryFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewPipeline(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load registry")
}

func TestRender(t *testing.T) {
	p, err := NewPipeline(testConfig(), WithExtractor(&fakeExtractor{}))
	require.NoError(t, err)
	result, err := p.Run(context.Background(), testDocument(t))
	require.NoError(t, err)

	var summary bytes.Buffer
	PrintSummary(&summary, result)
	assert.Contains(t, summary.String(), "Definitions: 1, rules: 5")

	var md bytes.Buffer
	RenderMarkdown(&md, result)
	assert.Contains(t, md.String(), "## Definitions")
	assert.Contains(t, md.String(), "## Waiting Period")
	assert.Contains(t, md.String(), "- 30 days initial waiting period for all illnesses.")

	path := filepath.Join(t.TempDir(), "out", "result.json")
	require.NoError(t, WriteJSON(result, path, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"job_id"`)
	assert.Contains(t, string(data), `"ruleEngineItems": 5`)
}
