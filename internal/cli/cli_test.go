package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/llm"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	if err := registerDefaults(v); err != nil {
		t.Fatalf("registerDefaults: %v", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	def := model.DefaultConfig()
	if cfg.Extraction.CallTimeout != def.Extraction.CallTimeout {
		t.Errorf("CallTimeout = %v, want %v", cfg.Extraction.CallTimeout, def.Extraction.CallTimeout)
	}
	if cfg.Quality.ReviewThreshold != 0.85 {
		t.Errorf("ReviewThreshold = %v, want 0.85", cfg.Quality.ReviewThreshold)
	}
	if len(cfg.Quality.UILeakagePhrases) != len(def.Quality.UILeakagePhrases) {
		t.Errorf("UILeakagePhrases has %d entries, want %d", len(cfg.Quality.UILeakagePhrases), len(def.Quality.UILeakagePhrases))
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("POLICYENGINE_LLM_PROVIDER", "ollama")
	t.Setenv("POLICYENGINE_EXTRACTION_CALL_TIMEOUT", "45s")
	t.Setenv("POLICYENGINE_STORE_DSN", "postgres://localhost/policy")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := registerDefaults(v); err != nil {
		t.Fatalf("registerDefaults: %v", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.Extraction.CallTimeout != 45*time.Second {
		t.Errorf("CallTimeout = %v, want 45s", cfg.Extraction.CallTimeout)
	}
	if cfg.Store.DSN != "postgres://localhost/policy" {
		t.Errorf("DSN = %q", cfg.Store.DSN)
	}
	if cfg.LLM.BaseURL != "http://ollama:11434" {
		t.Errorf("BaseURL = %q, want env fallback", cfg.LLM.BaseURL)
	}
}

func TestWriteDefaultConfig_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := writeDefaultConfig(&buf); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(buf.Bytes(), &cfg); err != nil {
		t.Fatalf("generated config does not parse: %v", err)
	}
	if cfg.Segment.WindowChars != model.DefaultConfig().Segment.WindowChars {
		t.Errorf("WindowChars = %d", cfg.Segment.WindowChars)
	}
	if cfg.Store.Driver != "file" {
		t.Errorf("Store.Driver = %q, want file", cfg.Store.Driver)
	}
}

func TestMasked(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"
	cfg.Store.DSN = "postgres://u:p@h/db"

	out := masked(cfg)
	if out.LLM.APIKey == "sk-secret" || out.Store.DSN == "postgres://u:p@h/db" {
		t.Error("credentials not masked")
	}
	if cfg.LLM.APIKey != "sk-secret" {
		t.Error("masked modified the original config")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"policy.txt", "policy"},
		{"dir/Health Plan: 2024.html", "Health-Plan_-2024"},
		{"", "document"},
		{"a|b?c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type stubProvider struct {
	available bool
	deadline  bool
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: `{"type":"none"}`}, nil
}

func (p *stubProvider) IsAvailable(ctx context.Context) bool {
	_, p.deadline = ctx.Deadline()
	return p.available
}

func TestCheckProvider(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	up := &stubProvider{available: true}
	if !checkProvider(context.Background(), up, time.Second, logger) {
		t.Error("expected available provider to pass")
	}
	if !up.deadline {
		t.Error("expected the check to run under a deadline")
	}
	if logs.Len() != 0 {
		t.Errorf("expected no warnings, got %d", logs.Len())
	}

	down := &stubProvider{}
	if checkProvider(context.Background(), down, time.Second, logger) {
		t.Error("expected unavailable provider to fail")
	}
	if logs.FilterField(zap.String("provider", "stub")).Len() != 1 {
		t.Errorf("expected one warning naming the provider, got %v", logs.All())
	}
}
