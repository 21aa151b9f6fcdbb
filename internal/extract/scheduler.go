package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/llm"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/logging"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/metrics"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/segment"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/worker"
)

// Extractor is the external capability that turns text into a raw item response
type Extractor interface {
	Extract(ctx context.Context, mode model.PromptMode, text string, maxTokens int) (string, error)
}

// Stats makes partial success observable. Counters cover both passes.
type Stats struct {
	TotalChunks     int   `json:"total_chunks"`
	ParsedChunks    int   `json:"parsed_chunks"`
	FailedChunks    int   `json:"failed_chunks"`
	TimedOut        int   `json:"timed_out"`
	Pass1Calls      int   `json:"pass1_calls"`
	Pass2Calls      int   `json:"pass2_calls"`
	Pass2Candidates int   `json:"pass2_candidates"`
	Pass2ChunkIDs   []int `json:"pass2_chunk_ids,omitempty"`
	ItemsRouted     int   `json:"items_routed"`
}

// Scheduler runs the two extraction passes over a job's chunks
type Scheduler struct {
	extractor  Extractor
	cfg        model.ExtractionConfig
	pool       *worker.Pool
	limiter    *worker.Limiter
	limiterKey string
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLimiter shares a rate limiter; key selects its bucket
func WithLimiter(l *worker.Limiter, key string) Option {
	return func(s *Scheduler) {
		s.limiter = l
		s.limiterKey = key
	}
}

// NewScheduler creates a scheduler. Zero config values fall back to defaults.
func NewScheduler(extractor Extractor, cfg model.ExtractionConfig, opts ...Option) *Scheduler {
	def := model.DefaultConfig().Extraction
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.DefinitionTokens <= 0 {
		cfg.DefinitionTokens = def.DefinitionTokens
	}
	if cfg.RuleTokens <= 0 {
		cfg.RuleTokens = def.RuleTokens
	}
	if cfg.BatchTokens <= 0 {
		cfg.BatchTokens = def.BatchTokens
	}

	s := &Scheduler{
		extractor: extractor,
		cfg:       cfg,
		pool:      worker.NewPool(cfg.Workers),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil && cfg.RequestsPerSecond > 0 {
		s.limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
		s.limiterKey = "extractor"
	}
	return s
}

// ModeFor picks the single-item prompt mode for a chunk.
// The per-text definition detector can upgrade a rules or mixed hint.
func ModeFor(ch model.Chunk) model.PromptMode {
	if ch.Hint == model.HintDefinitions || segment.LooksLikeDefinitions(ch.CleanedText, ch.Hint) {
		return model.ModeDefinitionSingle
	}
	return model.ModeRuleSingle
}

// tally is the synchronized accumulator shared by the workers of one pass
type tally struct {
	parsed   atomic.Int64
	failed   atomic.Int64
	timedOut atomic.Int64
	routed   atomic.Int64

	mu         sync.Mutex
	candidates map[int]bool
}

func newTally() *tally {
	return &tally{candidates: make(map[int]bool)}
}

func (t *tally) promote(id int) {
	t.mu.Lock()
	t.candidates[id] = true
	t.mu.Unlock()
}

// candidateIDs returns the promoted chunk ids, deduplicated and sorted
func (t *tally) candidateIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, 0, len(t.candidates))
	for id := range t.candidates {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Run executes Pass 1 over every chunk, waits for it to finish, then runs
// Pass 2 over the promoted candidates if there are any. Per-chunk failures
// are counted and never abort the run.
func (s *Scheduler) Run(ctx context.Context, chunks []model.Chunk, c *model.Collected) Stats {
	stats := Stats{TotalChunks: len(chunks)}
	if len(chunks) == 0 {
		return stats
	}

	pass1 := make([]model.ExtractionTask, len(chunks))
	byID := make(map[int]model.Chunk, len(chunks))
	for i, ch := range chunks {
		mode := ModeFor(ch)
		pass1[i] = model.ExtractionTask{Chunk: ch, Mode: mode, TokenBudget: s.budget(mode), Pass: 1}
		byID[ch.ID] = ch
	}

	t1 := newTally()
	s.runPass(ctx, pass1, c, t1)
	stats.Pass1Calls = len(pass1)
	s.fold(&stats, t1)

	ids := t1.candidateIDs()
	stats.Pass2Candidates = len(ids)
	s.metrics.AddPass2Candidates(len(ids))
	s.logger.Info("extraction pass complete",
		zap.Int("pass", 1),
		zap.Int("calls", len(pass1)),
		zap.Int64("parsed", t1.parsed.Load()),
		zap.Int64("failed", t1.failed.Load()),
		zap.Int("candidates", len(ids)))

	if len(ids) == 0 || s.cfg.DisablePass2 {
		return stats
	}

	pass2 := make([]model.ExtractionTask, 0, len(ids))
	for _, id := range ids {
		ch := byID[id]
		pass2 = append(pass2, model.ExtractionTask{Chunk: ch, Mode: ModeFor(ch).Batch(), TokenBudget: s.cfg.BatchTokens, Pass: 2})
	}

	t2 := newTally()
	s.runPass(ctx, pass2, c, t2)
	stats.Pass2Calls = len(pass2)
	stats.Pass2ChunkIDs = ids
	s.fold(&stats, t2)

	s.logger.Info("extraction pass complete",
		zap.Int("pass", 2),
		zap.Int("calls", len(pass2)),
		zap.Int64("parsed", t2.parsed.Load()),
		zap.Int64("failed", t2.failed.Load()))

	return stats
}

func (s *Scheduler) fold(stats *Stats, t *tally) {
	stats.ParsedChunks += int(t.parsed.Load())
	stats.FailedChunks += int(t.failed.Load())
	stats.TimedOut += int(t.timedOut.Load())
	stats.ItemsRouted += int(t.routed.Load())
}

func (s *Scheduler) budget(mode model.PromptMode) int {
	switch {
	case mode.IsBatch():
		return s.cfg.BatchTokens
	case mode.IsDefinition():
		return s.cfg.DefinitionTokens
	default:
		return s.cfg.RuleTokens
	}
}

func (s *Scheduler) runPass(ctx context.Context, tasks []model.ExtractionTask, c *model.Collected, t *tally) {
	s.pool.Run(ctx, len(tasks), func(ctx context.Context, i int) {
		s.runTask(ctx, tasks[i], c, t)
		_ = worker.Pause(ctx, s.cfg.CallDelay)
	})
}

func (s *Scheduler) runTask(ctx context.Context, task model.ExtractionTask, c *model.Collected, t *tally) {
	pass := strconv.Itoa(task.Pass)
	log := s.logger.With(zap.Int("chunk_id", task.Chunk.ID), zap.Int("pass", task.Pass), zap.String("mode", string(task.Mode)))

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.limiterKey); err != nil {
			t.failed.Add(1)
			s.metrics.ObserveCall(pass, "error", 0)
			log.Warn("rate limiter wait failed", zap.Error(err))
			return
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	start := time.Now()
	raw, err := s.call(callCtx, task)
	timedOut := errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
	cancel()
	elapsed := time.Since(start).Seconds()

	if err != nil {
		t.failed.Add(1)
		if timedOut {
			t.timedOut.Add(1)
			s.metrics.ObserveCall(pass, "timeout", elapsed)
			log.Warn("extractor call timed out", zap.Error(err))
			return
		}
		s.metrics.ObserveCall(pass, "error", elapsed)
		log.Warn("extractor call failed", zap.Error(err))
		return
	}

	item, err := llm.ParseItem(raw)
	if err != nil {
		t.failed.Add(1)
		s.metrics.ObserveCall(pass, "unparseable", elapsed)
		log.Debug("unparseable extractor response", zap.Error(err))
		s.promoteEmpty(task, t)
		return
	}

	added, routable := Route(item, task.Chunk, c)
	t.routed.Add(int64(added))
	if !routable {
		t.failed.Add(1)
		s.metrics.ObserveCall(pass, "none", elapsed)
		log.Debug("extractor returned nothing")
		s.promoteEmpty(task, t)
		return
	}

	t.parsed.Add(1)
	s.metrics.ObserveCall(pass, "parsed", elapsed)
	if task.Pass == 1 && segment.RuleSignal(task.Chunk.CleanedText) >= 2 {
		t.promote(task.Chunk.ID)
	}
}

// call invokes the extractor and enforces the per-call deadline even when
// the extractor ignores its context. A late response is discarded.
// A panic becomes a per-chunk error.
func (s *Scheduler) call(ctx context.Context, task model.ExtractionTask) (string, error) {
	type outcome struct {
		raw string
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o = outcome{err: fmt.Errorf("extractor panic: %v", r)}
			}
			done <- o
		}()
		o.raw, o.err = s.extractor.Extract(ctx, task.Mode, task.Chunk.CleanedText, task.TokenBudget)
	}()

	select {
	case o := <-done:
		if o.err == nil && ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", llm.ErrTimeout, ctx.Err())
		}
		return o.raw, o.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", llm.ErrTimeout, ctx.Err())
	}
}

// promoteEmpty promotes a Pass-1 chunk that yielded nothing when extraction
// was likely: definition mode or at least one strong rule phrase
func (s *Scheduler) promoteEmpty(task model.ExtractionTask, t *tally) {
	if task.Pass != 1 {
		return
	}
	if task.Mode.IsDefinition() || segment.RuleSignal(task.Chunk.CleanedText) >= 1 {
		t.promote(task.Chunk.ID)
	}
}
