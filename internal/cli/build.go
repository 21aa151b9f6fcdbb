package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/cache"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/llm"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/metrics"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/pipeline"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/store"
)

// engine bundles a pipeline with the resources it owns
type engine struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Close releases the store and flushes the logger
func (e *engine) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("close store", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

const providerCheckTimeout = 10 * time.Second

// checkProvider probes the extractor backend once before any job starts.
// An unreachable backend is reported but not fatal: its chunk calls fail
// and the rule engine output still stands.
func checkProvider(ctx context.Context, p llm.Provider, timeout time.Duration, logger *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p.IsAvailable(ctx) {
		return true
	}
	logger.Warn("extractor backend not reachable, extraction calls will fail", zap.String("provider", p.Name()))
	return false
}

// buildEngine wires the extractor backend, response cache, persistence,
// logging and metrics around a pipeline
func buildEngine(cfg *model.Config) (*engine, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	opts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithMetrics(m)}

	llmCfg := llm.ConfigFromModel(cfg.LLM)
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("create extractor backend: %w", err)
	}
	if provider != nil {
		checkProvider(context.Background(), provider, providerCheckTimeout, logger)
		ex := llm.NewExtractor(provider, cache.New(cfg.Cache), llmCfg).WithCacheTTL(cfg.Cache.DiskTTL)
		opts = append(opts, pipeline.WithExtractor(ex))
		logger.Info("extractor configured", zap.String("provider", ex.Name()), zap.String("model", ex.Model()))
	}

	// A store that cannot be opened degrades to local job ids
	st, err := store.NewStore(cfg.Store)
	if err != nil {
		logger.Warn("store unavailable, jobs will not be persisted", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		st = nil
	}
	if st != nil {
		opts = append(opts, pipeline.WithStore(st))
	}

	p, err := pipeline.NewPipeline(cfg, opts...)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	return &engine{pipeline: p, store: st, metrics: m, logger: logger}, nil
}
