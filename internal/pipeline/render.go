package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/util"
)

// WriteJSON writes the job result to path. "-" writes to stdout.
func WriteJSON(result *model.JobResult, path string, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(result, "", "  ")
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteMarkdown writes a reviewer-facing rendition of the result
func WriteMarkdown(result *model.JobResult, path string) error {
	var b strings.Builder
	RenderMarkdown(&b, result)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown renders definitions, rules by category and conflicts
func RenderMarkdown(w io.Writer, result *model.JobResult) {
	fmt.Fprintf(w, "# %s\n\n", result.Meta.Document)
	fmt.Fprintf(w, "- Job: `%s`\n", result.Meta.JobID)
	if result.Meta.Provider != "" {
		fmt.Fprintf(w, "- Extractor: %s/%s\n", result.Meta.Provider, result.Meta.Model)
	}
	fmt.Fprintf(w, "- Chunks: %d parsed, %d failed of %d\n\n",
		result.Metrics.ParsedChunks, result.Metrics.FailedChunks, result.Metrics.TotalChunks)

	if len(result.Definitions) > 0 {
		fmt.Fprintf(w, "## Definitions\n\n")
		fmt.Fprintf(w, "| Term | Definition | Confidence |\n|---|---|---|\n")
		for _, d := range result.Definitions {
			fmt.Fprintf(w, "| %s | %s | %s |\n", cell(d.Term), cell(d.Definition), confidence(d.Confidence, d.NeedsReview))
		}
		fmt.Fprintln(w)
	}

	byCat := make(map[model.Category][]model.RuleOutput)
	for _, r := range result.Rules {
		byCat[r.Category] = append(byCat[r.Category], r)
	}
	for _, cat := range model.AllCategories() {
		rules := byCat[cat]
		if len(rules) == 0 {
			continue
		}
		fmt.Fprintf(w, "## %s\n\n", title(cat))
		for _, r := range rules {
			fmt.Fprintf(w, "- %s _(%s, %s)_\n", r.Text, r.Source, confidence(r.Confidence, r.NeedsReview))
		}
		fmt.Fprintln(w)
	}

	rec := result.Reconciliation
	if rec == nil || len(rec.Conflicts) == 0 {
		return
	}
	fmt.Fprintf(w, "## Conflicts\n\n")
	for _, c := range rec.Conflicts {
		fmt.Fprintf(w, "### %s (%s)\n\n", c.Type, c.Severity)
		for _, item := range c.Items {
			fmt.Fprintf(w, "- %s\n", item)
		}
		if c.Resolution != nil {
			fmt.Fprintf(w, "\n%s: %s\n", c.Resolution.RecommendedAction, c.Resolution.Explanation)
		}
		fmt.Fprintln(w)
	}
}

// PrintSummary prints a short human summary of a job
func PrintSummary(w io.Writer, result *model.JobResult) {
	m := result.Metrics
	fmt.Fprintf(w, "✓ Job %s: %s\n", result.Meta.JobID, result.Meta.Document)
	fmt.Fprintf(w, "✓ Chunks: %d total, %d parsed, %d failed (%d timed out), %d pass-2\n",
		m.TotalChunks, m.ParsedChunks, m.FailedChunks, m.TimedOut, m.Pass2Candidates)
	fmt.Fprintf(w, "✓ Definitions: %d, rules: %d (%d from rule engine, %d rejected)\n",
		len(result.Definitions), len(result.Rules), m.RuleEngineItems, m.Rejected)
	if rec := result.Reconciliation; rec != nil {
		fmt.Fprintf(w, "✓ Conflicts: %d (%d resolvable)\n", rec.Summary.Total, rec.Summary.Resolvable)
		if rec.HasCritical {
			fmt.Fprintf(w, "⚠ Critical conflicts present\n")
		}
	}
	if m.NeedsReview > 0 {
		fmt.Fprintf(w, "⚠ %d items need human review\n", m.NeedsReview)
	}
	for _, warning := range result.Meta.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warning)
	}
}

func confidence(c float64, review bool) string {
	if review {
		return fmt.Sprintf("%.2f, review", c)
	}
	return fmt.Sprintf("%.2f", c)
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	return util.Truncate(s, 240)
}

func title(cat model.Category) string {
	words := strings.Split(string(cat), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
