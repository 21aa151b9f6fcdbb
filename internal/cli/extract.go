package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/pipeline"
)

var (
	outJSON      string
	outMD        string
	jobTimeout   time.Duration
	noCache      bool
	noStore      bool
	disablePass2 bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file|url>",
	Short: "Extract definitions and rules from one policy document",
	Long: `Extract runs one policy document through the full pipeline:
- Segment the text into classified chunks
- Recover rules deterministically from section headers and bullets
- Extract definitions and rules with the configured AI backend (two passes)
- Reject low-quality items and score the rest
- Map definitions onto canonical keys
- Detect conflicting rules

Without an AI backend only the rule engine runs.

Example:
  policyengine extract policy.txt
  policyengine extract policy.html --json result.json --md result.md
  policyengine extract policy.txt --provider openai --model gpt-4o-mini
  POLICYENGINE_STORE_DRIVER=postgres POLICYENGINE_STORE_DSN=postgres://... policyengine extract policy.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	// Output flags
	extractCmd.Flags().StringVar(&outJSON, "json", "result.json", "output JSON path (- for stdout)")
	extractCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")

	// Job flags
	extractCmd.Flags().DurationVar(&jobTimeout, "timeout", 15*time.Minute, "overall job timeout")
	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extractor response cache")
	extractCmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the document or job record")
	extractCmd.Flags().BoolVar(&disablePass2, "no-pass2", false, "skip the batch re-extraction pass")
	addExtractorFlags(extractCmd)
}

// addExtractorFlags defines the flags shared by extract and batch
func addExtractorFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "", "AI backend (openai, anthropic, ollama); empty runs the rule engine only")
	cmd.Flags().String("model", "", "model name for the AI backend")
	cmd.Flags().Int("workers", 0, "concurrent extractor calls per job")
	cmd.Flags().Float64("rps", 0, "extractor requests per second (0 = unlimited)")
	cmd.Flags().String("store", "", "persistence backend (file, postgres, none)")
}

// bindExtractorFlags maps the running command's shared flags onto config keys.
// Binding happens at run time because extract and batch define the same flags.
func bindExtractorFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("llm.provider", cmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("llm.model", cmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("extraction.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("extraction.requests_per_second", cmd.Flags().Lookup("rps"))
	_ = viper.BindPFlag("store.driver", cmd.Flags().Lookup("store"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	source := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	bindExtractorFlags(cmd)
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noStore {
		cfg.Store.Driver = "none"
	}
	if disablePass2 {
		cfg.Extraction.DisablePass2 = true
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Extracting: %s\n", source)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", jobTimeout)
		if cfg.LLM.Provider != "" {
			fmt.Fprintf(os.Stderr, "Extractor: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		} else {
			fmt.Fprintf(os.Stderr, "Extractor: none (rule engine only)\n")
		}
		fmt.Fprintln(os.Stderr)
	}

	e, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.pipeline.Process(ctx, source)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	// Keep stdout clean for the JSON result when it goes there
	summary := os.Stdout
	if outJSON == "-" {
		summary = os.Stderr
	}

	if outJSON != "" {
		if err := pipeline.WriteJSON(result, outJSON, cfg.Output.Indent); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		if verbose && outJSON != "-" {
			fmt.Fprintf(summary, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := pipeline.WriteMarkdown(result, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		if verbose {
			fmt.Fprintf(summary, "✓ Wrote Markdown: %s\n", outMD)
		}
	}

	pipeline.PrintSummary(summary, result)
	return nil
}
