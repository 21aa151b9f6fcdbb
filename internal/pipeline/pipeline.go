package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"go.uber.org/zap"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/extract"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/logging"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/metrics"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/normalize"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/reconcile"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/rules"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/score"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/segment"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/store"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/validate"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/worker"
)

// describer is implemented by extractors that can name their backend
type describer interface {
	Name() string
	Model() string
}

// Pipeline orchestrates one extraction job per document
type Pipeline struct {
	config     *model.Config
	loader     *Loader
	segmenter  *segment.Segmenter
	engine     *rules.Engine
	extractor  extract.Extractor // nil runs the rule engine only
	gate       *validate.Gate
	scorer     *score.Scorer
	canon      *normalize.Canonicalizer
	reconciler *reconcile.Engine
	store      store.Store // nil disables persistence
	limiter    *worker.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithExtractor sets the extractor used by the scheduler
func WithExtractor(e extract.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithStore sets the persistence backend
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRegistry replaces the canonical definition registry
func WithRegistry(r *normalize.Registry) Option {
	return func(p *Pipeline) { p.canon = normalize.NewCanonicalizer(r) }
}

// WithLoader replaces the document loader
func WithLoader(l *Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// NewPipeline creates a pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	registry, err := normalize.LoadRegistry(cfg.Normalize.RegistryFile)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	fetcher := NewFetcher(cfg.Input.FetchTimeout, cfg.Input.UserAgent, cfg.Input.MaxBytes, cfg.LLM.HTTPProxy, cfg.LLM.HTTPSProxy)
	if cfg.Input.RespectRobots {
		fetcher.WithRobots()
	}

	p := &Pipeline{
		config:     cfg,
		loader:     NewLoader(fetcher, cfg.Input.MaxBytes),
		segmenter:  segment.NewSegmenter(cfg.Segment),
		engine:     rules.NewEngine(),
		gate:       validate.NewGate(&cfg.Quality),
		scorer:     score.NewScorer(cfg.Quality.ReviewThreshold),
		canon:      normalize.NewCanonicalizer(registry),
		reconciler: reconcile.NewEngine(&cfg.Reconcile),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	// One limiter per pipeline so concurrent jobs share the provider budget
	if cfg.Extraction.RequestsPerSecond > 0 {
		p.limiter = worker.NewLimiter(cfg.Extraction.RequestsPerSecond, cfg.Extraction.Burst)
	}
	return p, nil
}

// Process loads a document and runs it. It satisfies worker.Processor.
func (p *Pipeline) Process(ctx context.Context, source string) (*model.JobResult, error) {
	doc, err := p.loader.Load(ctx, source)
	if err != nil {
		p.metrics.Job("failed")
		return nil, &JobError{Stage: StageLoad, Err: err}
	}
	return p.Run(ctx, doc)
}

// Run executes every stage over a loaded document. Per-chunk and persistence
// failures are absorbed; only unusable input or an unexpected panic fails the job.
func (p *Pipeline) Run(ctx context.Context, doc *Document) (result *model.JobResult, err error) {
	if doc == nil || doc.Text == "" {
		p.metrics.Job("failed")
		return nil, &JobError{Stage: StageLoad, Err: fmt.Errorf("%w: empty document", ErrFatalInput)}
	}

	meta := model.Meta{
		Document:  doc.Name,
		Bytes:     len(doc.Raw),
		StartedAt: p.now().UTC(),
	}
	if d, ok := p.extractor.(describer); ok {
		meta.Provider = d.Name()
		meta.Model = d.Model()
	}

	p.begin(ctx, doc, &meta)
	log := p.logger.With(zap.String("job_id", meta.JobID), zap.String("document", doc.Name))

	defer func() {
		if r := recover(); r != nil {
			log.Error("job aborted", zap.Any("panic", r))
			p.metrics.Job("failed")
			cause := fmt.Errorf("panic: %v", r)
			p.fail(ctx, meta, cause, log)
			result, err = nil, &JobError{JobID: meta.JobID, Stage: StageRun, Err: cause}
		}
	}()

	// Segment and extract
	chunks := p.segmenter.Segment(doc.Text)
	p.metrics.AddChunks(len(chunks))
	log.Info("document segmented", zap.Int("chunks", len(chunks)))

	collected := model.NewCollected()
	engineItems := p.engine.Apply(doc.Text, collected)

	stats := extract.Stats{TotalChunks: len(chunks)}
	if p.extractor != nil {
		opts := []extract.Option{extract.WithLogger(log), extract.WithMetrics(p.metrics)}
		if p.limiter != nil {
			key := meta.Provider
			if key == "" {
				key = "extractor"
			}
			opts = append(opts, extract.WithLimiter(p.limiter, key))
		}
		stats = extract.NewScheduler(p.extractor, p.config.Extraction, opts...).Run(ctx, chunks, collected)
	} else {
		meta.Warnings = append(meta.Warnings, "no extractor configured: rule engine only")
	}

	// Gate, score, normalize
	gated, rejected := p.gate.Filter(collected.Snapshot())
	p.observeGate(gated, rejected)

	defs, ruleItems := p.scorer.ScoreAll(gated)
	normalized := normalize.Dedupe(defs, ruleItems)
	canonical := p.canon.Canonicalize(normalized.Definitions)

	// Reconcile
	rec := p.reconciler.Reconcile(normalized.RuleTexts())
	for _, c := range rec.Conflicts {
		p.metrics.Conflict(string(c.Type), string(c.Severity))
	}

	result = assemble(meta, normalized, canonical, &rec)
	result.Metrics = model.JobMetrics{
		TotalChunks:     stats.TotalChunks,
		ParsedChunks:    stats.ParsedChunks,
		FailedChunks:    stats.FailedChunks,
		Pass2Candidates: stats.Pass2Candidates,
		TimedOut:        stats.TimedOut,
		RuleEngineItems: engineItems,
		Rejected:        len(rejected),
		NeedsReview:     countReview(result),
	}

	if digest, err := resultDigest(result); err != nil {
		log.Warn("result digest failed", zap.Error(err))
	} else {
		result.Meta.ResultDigest = digest
	}

	completed := p.now().UTC()
	result.Meta.CompletedAt = completed
	result.Meta.DurationMS = completed.Sub(result.Meta.StartedAt).Milliseconds()

	p.complete(ctx, result, log)
	p.metrics.Job("completed")

	log.Info("job completed",
		zap.Int("definitions", len(result.Definitions)),
		zap.Int("rules", len(result.Rules)),
		zap.Int("conflicts", rec.Summary.Total),
		zap.Int("failed_chunks", stats.FailedChunks))

	return result, nil
}

// begin stores the blob and creates the job record. Any failure degrades to a
// local job id.
func (p *Pipeline) begin(ctx context.Context, doc *Document, meta *model.Meta) {
	if p.store == nil {
		p.localJob(meta, nil)
		return
	}

	url, err := p.store.PutBlob(ctx, doc.Raw)
	if err != nil {
		p.localJob(meta, err)
		return
	}
	meta.BlobURL = url

	job, err := p.store.CreateJob(ctx, doc.Name, url)
	if err != nil {
		p.localJob(meta, err)
		return
	}
	meta.JobID = job.ID
}

func (p *Pipeline) localJob(meta *model.Meta, err error) {
	meta.JobID = "local-" + uuid.NewString()
	meta.LocalJob = true
	if err != nil {
		p.logger.Warn("persistence unavailable, using local job id", zap.String("job_id", meta.JobID), zap.Error(err))
		meta.Warnings = append(meta.Warnings, "persistence unavailable: "+err.Error())
	}
}

func (p *Pipeline) complete(ctx context.Context, result *model.JobResult, log *zap.Logger) {
	if p.store == nil || result.Meta.LocalJob {
		return
	}
	err := p.store.CompleteJob(ctx, result.Meta.JobID, result, result.Meta, result.Metrics)
	if err != nil {
		log.Warn("failed to complete job record", zap.Error(err))
		result.Meta.Warnings = append(result.Meta.Warnings, "job record not completed: "+err.Error())
	}
}

// fail closes the persisted job record of an aborted run
func (p *Pipeline) fail(ctx context.Context, meta model.Meta, cause error, log *zap.Logger) {
	if p.store == nil || meta.LocalJob {
		return
	}
	meta.CompletedAt = p.now().UTC()
	meta.DurationMS = meta.CompletedAt.Sub(meta.StartedAt).Milliseconds()
	if err := p.store.FailJob(ctx, meta.JobID, meta, cause.Error()); err != nil {
		log.Warn("failed to mark job record failed", zap.Error(err))
	}
}

func (p *Pipeline) observeGate(gated model.Snapshot, rejected []validate.Rejection) {
	if p.metrics == nil {
		return
	}
	for range gated.Definitions {
		p.metrics.Gate(string(model.KindDefinition), true)
	}
	for _, items := range gated.Rules {
		for range items {
			p.metrics.Gate(string(model.KindRule), true)
		}
	}
	for _, r := range rejected {
		p.metrics.Gate(string(r.Kind), false)
	}
}

// assemble builds the job output contract
func assemble(meta model.Meta, n normalize.Normalized, canonical []model.CanonicalDefinition, rec *model.Reconciliation) *model.JobResult {
	keyOf := make(map[string]string)
	for _, cd := range canonical {
		for _, raw := range cd.RawTerms {
			keyOf[raw] = cd.Key
		}
	}

	result := &model.JobResult{
		Meta:           meta,
		Definitions:    make([]model.DefinitionOutput, 0, len(n.Definitions)),
		Rules:          []model.RuleOutput{},
		Reconciliation: rec,
		Canonical:      canonical,
	}
	for _, d := range n.Definitions {
		result.Definitions = append(result.Definitions, model.DefinitionOutput{
			Term:        d.Term,
			Definition:  d.Text,
			Key:         keyOf[strings.TrimSpace(d.Term)],
			Source:      d.Source,
			Confidence:  d.Confidence,
			NeedsReview: d.NeedsReview,
		})
	}
	for _, r := range n.Flatten() {
		result.Rules = append(result.Rules, model.RuleOutput{
			Category:    r.Category,
			Text:        r.Text,
			Source:      r.Source,
			Confidence:  r.Confidence,
			NeedsReview: r.NeedsReview,
		})
	}
	return result
}

func countReview(r *model.JobResult) int {
	n := 0
	for _, d := range r.Definitions {
		if d.NeedsReview {
			n++
		}
	}
	for _, rule := range r.Rules {
		if rule.NeedsReview {
			n++
		}
	}
	return n
}

// resultDigest is the sha256 of the RFC 8785 canonical JSON of the extracted
// definitions and rules. Identical extractions hash identically across runs.
func resultDigest(r *model.JobResult) (string, error) {
	raw, err := json.Marshal(struct {
		Definitions []model.DefinitionOutput `json:"definitions"`
		Rules       []model.RuleOutput       `json:"rules"`
	}{r.Definitions, r.Rules})
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// IsFatalInput reports whether err was caused by unusable input
func IsFatalInput(err error) bool {
	return errors.Is(err, ErrFatalInput)
}
