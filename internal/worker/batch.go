package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

// Processor runs one document through extraction
type Processor interface {
	Process(ctx context.Context, path string) (*model.JobResult, error)
}

// DocumentResult represents the result of processing one document
type DocumentResult struct {
	Path   string
	Result *model.JobResult
	Error  error
}

// BatchProcessor processes multiple documents concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessPaths processes documents concurrently. Results keep input order.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*DocumentResult {
	results := make([]*DocumentResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	// Each index is claimed by exactly one worker, so results needs no lock
	NewPool(b.concurrency).Run(ctx, len(paths), func(ctx context.Context, i int) {
		res, err := b.processor.Process(ctx, paths[i])
		results[i] = &DocumentResult{Path: paths[i], Result: res, Error: err}
	})

	for i, r := range results {
		if r == nil {
			results[i] = &DocumentResult{Path: paths[i], Error: fmt.Errorf("not processed: %w", context.Cause(ctx))}
		}
	}
	return results
}

// ReadPathsFromFile reads document paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
