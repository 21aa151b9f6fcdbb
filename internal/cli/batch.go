package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/pipeline"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	metricsAddr  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Extract many policy documents listed in a file, in parallel",
	Long: `Batch processes multiple documents concurrently:
- Read paths or URLs from the input file (one per line, # comments allowed)
- Run each document as its own job with configurable document concurrency
- Share one extractor rate limit across all jobs
- Write a JSON and Markdown result per document

Example:
  policyengine batch policies.txt
  policyengine batch policies.txt --concurrency 4 --output-dir ./results
  policyengine batch policies.txt --provider openai --rps 2 --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of documents processed concurrently")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./policyengine-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extractor response cache")
	addExtractorFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	bindExtractorFlags(cmd)
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	paths, err := worker.ReadPathsFromFile(file)
	if err != nil {
		return fmt.Errorf("read input file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Policy Engine Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d documents)\n", file, len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  Extractor:    %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	} else {
		fmt.Fprintf(os.Stderr, "  Extractor:    none (rule engine only)\n")
	}
	fmt.Fprintf(os.Stderr, "\n")

	// Create output directory
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	e, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: e.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(os.Stderr, "  Metrics:      http://%s/metrics\n\n", metricsAddr)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Processing %d documents with %d workers...\n", len(paths), concurrency)
	fmt.Fprintf(os.Stderr, "\n")

	results := worker.NewBatchProcessor(e.pipeline, concurrency).ProcessPaths(ctx, paths)

	// Process results
	successCount := 0
	failureCount := 0
	skippedCount := 0
	reviewCount := 0

	for i, result := range results {
		if pipeline.IsFatalInput(result.Error) {
			skippedCount++
			fmt.Fprintf(os.Stderr, "⊘ %s: unusable input: %v\n", result.Path, result.Error)
			continue
		}
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		successCount++

		// Index prefix keeps names unique when documents share a base name
		slug := fmt.Sprintf("%03d-%s", i+1, sanitizeFilename(result.Result.Meta.Document))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := pipeline.WriteJSON(result.Result, jsonPath, cfg.Output.Indent); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if err := pipeline.WriteMarkdown(result.Result, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
			continue
		}

		if result.Result.Metrics.NeedsReview > 0 {
			reviewCount++
		}
		fmt.Fprintf(os.Stderr, "✓ %s (%d definitions, %d rules, %d conflicts)\n",
			result.Result.Meta.Document,
			len(result.Result.Definitions),
			len(result.Result.Rules),
			result.Result.Reconciliation.Summary.Total)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:         %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:       %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:      %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Skipped input: %d\n", skippedCount)
	fmt.Fprintf(os.Stderr, "  Needs review:  %d\n", reviewCount)
	fmt.Fprintf(os.Stderr, "  Output:        %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename turns a document name into a safe file stem
func sanitizeFilename(s string) string {
	s = filepath.Base(s)
	s = strings.TrimSuffix(s, filepath.Ext(s))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	if s == "" || s == "." {
		s = "document"
	}

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}

	return s
}
