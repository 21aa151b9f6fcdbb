package model

import "time"

// Config holds the complete engine configuration
type Config struct {
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Segment    SegmentConfig    `yaml:"segment" mapstructure:"segment"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Normalize  NormalizeConfig  `yaml:"normalize" mapstructure:"normalize"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// InputConfig controls document loading
type InputConfig struct {
	MaxBytes      int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// SegmentConfig controls sectioning and windowing
type SegmentConfig struct {
	MinSectionChars int `yaml:"min_section_chars" mapstructure:"min_section_chars"`
	WindowChars     int `yaml:"window_chars" mapstructure:"window_chars"`
	OverlapChars    int `yaml:"overlap_chars" mapstructure:"overlap_chars"`
	MinChunkChars   int `yaml:"min_chunk_chars" mapstructure:"min_chunk_chars"`
}

// ExtractionConfig controls the two-pass scheduler
type ExtractionConfig struct {
	Workers           int           `yaml:"workers" mapstructure:"workers"`
	CallTimeout       time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	CallDelay         time.Duration `yaml:"call_delay" mapstructure:"call_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 = unlimited
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	DefinitionTokens  int           `yaml:"definition_tokens" mapstructure:"definition_tokens"`
	RuleTokens        int           `yaml:"rule_tokens" mapstructure:"rule_tokens"`
	BatchTokens       int           `yaml:"batch_tokens" mapstructure:"batch_tokens"`
	DisablePass2      bool          `yaml:"disable_pass2" mapstructure:"disable_pass2"`
}

// LLMConfig selects and configures the extractor backend
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (rule engine only)
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds, HTTP client level
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls the extractor response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"` // file, postgres, "" (disabled)
	Dir          string `yaml:"dir" mapstructure:"dir"`
	DSN          string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
}

// QualityConfig controls the quality gate and review threshold
type QualityConfig struct {
	ReviewThreshold    float64  `yaml:"review_threshold" mapstructure:"review_threshold"`
	MinRuleChars       int      `yaml:"min_rule_chars" mapstructure:"min_rule_chars"`
	MinTermChars       int      `yaml:"min_term_chars" mapstructure:"min_term_chars"`
	MinDefinitionChars int      `yaml:"min_definition_chars" mapstructure:"min_definition_chars"`
	UILeakagePhrases   []string `yaml:"ui_leakage_phrases" mapstructure:"ui_leakage_phrases"`
	CorruptPatterns    []string `yaml:"corrupt_patterns" mapstructure:"corrupt_patterns"`
}

// NormalizeConfig controls canonicalization
type NormalizeConfig struct {
	RegistryFile string `yaml:"registry_file,omitempty" mapstructure:"registry_file"` // empty = built-in table
}

// ReconcileConfig controls conflict detection thresholds
type ReconcileConfig struct {
	OverlapThreshold   float64 `yaml:"overlap_threshold" mapstructure:"overlap_threshold"`
	HighSeverityAt     float64 `yaml:"high_severity_at" mapstructure:"high_severity_at"`
	CriticalSeverityAt float64 `yaml:"critical_severity_at" mapstructure:"critical_severity_at"`
	LengthRatio        float64 `yaml:"length_ratio" mapstructure:"length_ratio"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// OutputConfig controls result files
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Indent  bool `yaml:"indent" mapstructure:"indent"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			MaxBytes:      20 << 20,
			FetchTimeout:  30 * time.Second,
			UserAgent:     "policyengine/0.1",
			RespectRobots: true,
		},
		Segment: SegmentConfig{
			MinSectionChars: 500,
			WindowChars:     1400,
			OverlapChars:    100,
			MinChunkChars:   300,
		},
		Extraction: ExtractionConfig{
			Workers:          4,
			CallTimeout:      30 * time.Second,
			CallDelay:        75 * time.Millisecond,
			Burst:            1,
			DefinitionTokens: 300,
			RuleTokens:       250,
			BatchTokens:      1000,
		},
		LLM: LLMConfig{
			Provider:    "", // Disabled by default: rule engine only
			Timeout:     30,
			Temperature: 0.1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".policyengine/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Driver:       "file",
			Dir:          ".policyengine/store",
			MaxOpenConns: 4,
		},
		Quality: QualityConfig{
			ReviewThreshold:    0.85,
			MinRuleChars:       10,
			MinTermChars:       3,
			MinDefinitionChars: 10,
			UILeakagePhrases: []string{
				"click here", "download the app", "sign in", "log in", "login to",
				"cookie", "javascript", "scroll down", "share this", "subscribe",
				"as an ai", "json", "here is the", "i cannot",
			},
			CorruptPatterns: []string{
				// replacement character
				`\x{FFFD}`,
				// words merged by extraction
				`[a-z]{28,}`,
				// UTF-8 decoded as Latin-1 ("Ã©", "â€")
				`(?:[ÃÂâ][\x{80}-\x{BF}\x{20AC}]){2,}`,
			},
		},
		Reconcile: ReconcileConfig{
			OverlapThreshold:   0.40,
			HighSeverityAt:     0.55,
			CriticalSeverityAt: 0.70,
			LengthRatio:        1.5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			Indent: true,
		},
	}
}
