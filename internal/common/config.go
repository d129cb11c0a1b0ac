package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/aestimo/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment    string               `toml:"environment"` // "development" or "production"
	Logging        LoggingConfig        `toml:"logging"`
	LLM            LLMConfig            `toml:"llm"`
	Gemini         GeminiConfig         `toml:"gemini"`
	Claude         ClaudeConfig         `toml:"claude"`
	Parser         ParserConfig         `toml:"parser"`
	OCR            OCRConfig            `toml:"ocr"`
	Extraction     ExtractionConfig     `toml:"extraction"`
	Retry          RetryConfig          `toml:"retry"`
	CircuitBreaker CircuitBreakerConfig `toml:"circuit_breaker"`
	Degradation    DegradationConfig    `toml:"degradation"`
	Consistency    ConsistencyConfig    `toml:"consistency"`
	Scoring        ScoringConfig        `toml:"scoring"`
	Benchmarks     BenchmarksConfig     `toml:"benchmarks"`
	Storage        StorageConfig        `toml:"storage"`
	Performance    PerformanceConfig    `toml:"performance"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Format     string   `toml:"format" validate:"oneof=text json"`            // "json" or "text"
	Output     []string `toml:"output"`                                       // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                  // Time format for logs (default: "15:04:05")
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains cross-provider analyzer configuration
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"` // Default provider: "gemini" or "claude"
	MaxConcurrency  int         `toml:"max_concurrency" validate:"gte=1"`                // Worker pool width for the prompt fan-out (default: 4)
	RequestTimeout  string      `toml:"request_timeout"`                                 // Per-attempt timeout as duration string (default: "30s")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey          string  `toml:"api_key"`           // Google Gemini API key (prefer AESTIMO_GEMINI_API_KEY)
	Model           string  `toml:"model"`             // Model for analysis prompts (default: "gemini-3-flash-preview")
	Temperature     float32 `toml:"temperature"`       // Analysis temperature (default: 0.1 for reproducible extraction)
	MaxOutputTokens int     `toml:"max_output_tokens"` // Maximum tokens per response (default: 2000)
	TopP            float32 `toml:"top_p"`             // Nucleus sampling parameter (default: 0.95)
	TopK            int     `toml:"top_k"`             // Top-k sampling parameter (default: 40)
	RateLimit       string  `toml:"rate_limit"`        // Minimum interval between calls (default: "4s" for 15 RPM free tier)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (prefer ANTHROPIC_API_KEY)
	Model       string  `toml:"model"`       // Model for analysis prompts (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens per response (default: 2000)
	Temperature float32 `toml:"temperature"` // Analysis temperature (default: 0.1)
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between calls (default: "1s")
}

// ParserConfig controls the document parsing stage
type ParserConfig struct {
	MaxConcurrency int `toml:"max_concurrency" validate:"gte=1"` // Worker pool width for batch parsing (default: 4)
}

// OCRConfig controls the vision fallback for scanned documents
type OCRConfig struct {
	Enabled             bool     `toml:"enabled"`              // Enable OCR fallback for low-text documents (default: true)
	ConfidenceThreshold float64  `toml:"confidence_threshold"` // Warn below this detection confidence (default: 0.5)
	LanguageHints       []string `toml:"language_hints"`       // BCP-47 hints passed to the detector (default: ["en"])
	Model               string   `toml:"model"`                // Vision model override; empty uses the gemini model
}

// ExtractionConfig controls the pattern extractor and entity reconciler
type ExtractionConfig struct {
	ConfidenceThreshold   float64 `toml:"confidence_threshold"`    // Drop reconciled entities below this confidence (default: 0.6)
	ValidateNumericValues bool    `toml:"validate_numeric_values"` // Drop numerics that fail per-metric range validators (default: true)
}

// RetryConfig controls the exponential backoff policy
type RetryConfig struct {
	MaxAttempts       int     `toml:"max_attempts" validate:"gte=0"` // Retries after the initial attempt (default: 3)
	BaseDelay         string  `toml:"base_delay"`                    // First retry delay as duration string (default: "1s")
	BackoffMultiplier float64 `toml:"backoff_multiplier"`            // Delay growth factor (default: 2.0)
	MaxDelay          string  `toml:"max_delay"`                     // Delay ceiling as duration string (default: "30s")
	Jitter            float64 `toml:"jitter"`                        // Fractional delay jitter (default: 0.1)
}

// CircuitBreakerConfig controls per-service breakers
type CircuitBreakerConfig struct {
	FailureThreshold int    `toml:"failure_threshold" validate:"gte=1"` // Consecutive failures before opening (default: 5)
	RecoveryTimeout  string `toml:"recovery_timeout"`                   // Open duration before the half-open probe (default: "60s")
}

// DegradationConfig controls the service availability registry
type DegradationConfig struct {
	CriticalServices []string `toml:"critical_services"` // Services the pipeline cannot proceed without (default: ["llm"])
	ProbeSchedule    string   `toml:"probe_schedule"`    // Cron schedule for background health probes (default: "*/5 * * * *")
}

// ConsistencyConfig controls cross-document reconciliation
type ConsistencyConfig struct {
	ToleranceFinancial  float64  `toml:"tolerance_financial"`  // Relative tolerance for financial values (default: 0.05)
	TolerancePercentage float64  `toml:"tolerance_percentage"` // Absolute tolerance in percentage points (default: 2.0)
	ToleranceCount      float64  `toml:"tolerance_count"`      // Relative tolerance for counts (default: 0.10)
	ToleranceDateDays   int      `toml:"tolerance_date_days"`  // Date tolerance in days (default: 365)
	CriticalMetrics     []string `toml:"critical_metrics"`     // Metrics whose conflicts are high severity
	RequireAllDocuments bool     `toml:"require_all_documents"` // Emit missing_data issues for partially covered critical metrics
	PrioritizeRecent    bool     `toml:"prioritize_recent"`    // Tie-break conflicting groups by most recent timestamp
}

// ScoringConfig controls the weighting manager and score calculator
type ScoringConfig struct {
	WeightingTolerance float64 `toml:"weighting_tolerance"` // Allowed deviation of the weight sum from 100 (default: 0.01)
	AllowZeroWeights   bool    `toml:"allow_zero_weights"`  // Accept zero-valued components without warnings
	AllowHold          bool    `toml:"allow_hold"`          // Emit HOLD; false collapses HOLD into PASS (default: true)
	ProfilesDir        string  `toml:"profiles_dir"`        // Optional directory of YAML weighting profiles
}

// BenchmarksConfig controls the sector benchmark lookup
type BenchmarksConfig struct {
	CacheTTL string `toml:"cache_ttl"` // Cached sector data lifetime (default: "24h")
	SeedFile string `toml:"seed_file"` // Optional YAML file overriding the embedded seed data
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// PerformanceConfig controls the operation metrics ring buffer
type PerformanceConfig struct {
	MaxSamplesPerOperation int     `toml:"max_samples_per_operation" validate:"gte=1"` // Ring buffer size per operation name (default: 100)
	AlertErrorRate         float64 `toml:"alert_error_rate"`                           // Error rate that triggers an alert log (default: 0.5)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in aestimo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			MaxConcurrency:  4,     // One worker per workflow prompt
			RequestTimeout:  "30s", // Per-attempt deadline; retries get a fresh one
		},
		Gemini: GeminiConfig{
			APIKey:          "", // User must provide API key (no fallback)
			Model:           "gemini-3-flash-preview",
			Temperature:     0.1, // Low temperature keeps extraction stable across runs
			MaxOutputTokens: 2000,
			TopP:            0.95,
			TopK:            40,
			RateLimit:       "4s", // 15 RPM free tier
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   2000,
			Temperature: 0.1,
			RateLimit:   "1s",
		},
		Parser: ParserConfig{
			MaxConcurrency: 4,
		},
		OCR: OCRConfig{
			Enabled:             true,
			ConfidenceThreshold: 0.5,
			LanguageHints:       []string{"en"},
			Model:               "", // Defaults to the gemini model
		},
		Extraction: ExtractionConfig{
			ConfidenceThreshold:   0.6,
			ValidateNumericValues: true,
		},
		Retry: RetryConfig{
			MaxAttempts:       3, // Retries after the initial call, so 4 invocations worst case
			BaseDelay:         "1s",
			BackoffMultiplier: 2.0,
			MaxDelay:          "30s",
			Jitter:            0.1,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  "60s",
		},
		Degradation: DegradationConfig{
			CriticalServices: []string{"llm"},
			ProbeSchedule:    "*/5 * * * *", // Every 5 minutes
		},
		Consistency: ConsistencyConfig{
			ToleranceFinancial:  0.05,
			TolerancePercentage: 2.0,
			ToleranceCount:      0.10,
			ToleranceDateDays:   365,
			CriticalMetrics: []string{
				"arr", "mrr", "customers", "team_size", "founders_count",
				"total_raised", "valuation", "founded_year", "churn_rate",
			},
			RequireAllDocuments: false,
			PrioritizeRecent:    true,
		},
		Scoring: ScoringConfig{
			WeightingTolerance: 0.01,
			AllowZeroWeights:   false,
			AllowHold:          true,
			ProfilesDir:        "",
		},
		Benchmarks: BenchmarksConfig{
			CacheTTL: "24h",
			SeedFile: "",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Performance: PerformanceConfig{
			MaxSamplesPerOperation: 100,
			AlertErrorRate:         0.5,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: AESTIMO_ENV, fallback: GO_ENV)
	if env := os.Getenv("AESTIMO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("AESTIMO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("AESTIMO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if provider := os.Getenv("AESTIMO_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if timeout := os.Getenv("AESTIMO_LLM_REQUEST_TIMEOUT"); timeout != "" {
		config.LLM.RequestTimeout = timeout
	}
	if concurrency := os.Getenv("AESTIMO_LLM_MAX_CONCURRENCY"); concurrency != "" {
		if n, err := strconv.Atoi(concurrency); err == nil {
			config.LLM.MaxConcurrency = n
		}
	}

	if key := os.Getenv("AESTIMO_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if model := os.Getenv("AESTIMO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	if key := os.Getenv("AESTIMO_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if model := os.Getenv("AESTIMO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if enabled := os.Getenv("AESTIMO_OCR_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.OCR.Enabled = b
		}
	}

	if path := os.Getenv("AESTIMO_STORAGE_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if reset := os.Getenv("AESTIMO_STORAGE_RESET"); reset != "" {
		if b, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = b
		}
	}

	if seed := os.Getenv("AESTIMO_BENCHMARKS_SEED_FILE"); seed != "" {
		config.Benchmarks.SeedFile = seed
	}
	if profiles := os.Getenv("AESTIMO_SCORING_PROFILES_DIR"); profiles != "" {
		config.Scoring.ProfilesDir = profiles
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, provider string, model string, logLevel string) {
	// Command-line flags have highest priority
	if provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if model != "" {
		switch config.LLM.DefaultProvider {
		case LLMProviderClaude:
			config.Claude.Model = model
		default:
			config.Gemini.Model = model
		}
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate checks the configuration for structural sanity. Duration strings
// are parsed here so a bad value fails startup instead of a mid-pipeline call.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	durations := map[string]string{
		"llm.request_timeout":              c.LLM.RequestTimeout,
		"gemini.rate_limit":                c.Gemini.RateLimit,
		"claude.rate_limit":                c.Claude.RateLimit,
		"retry.base_delay":                 c.Retry.BaseDelay,
		"retry.max_delay":                  c.Retry.MaxDelay,
		"circuit_breaker.recovery_timeout": c.CircuitBreaker.RecoveryTimeout,
		"benchmarks.cache_ttl":             c.Benchmarks.CacheTTL,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1.0, got %v", c.Retry.BackoffMultiplier)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry.jitter must be within [0,1], got %v", c.Retry.Jitter)
	}
	if c.OCR.ConfidenceThreshold < 0 || c.OCR.ConfidenceThreshold > 1 {
		return fmt.Errorf("ocr.confidence_threshold must be within [0,1], got %v", c.OCR.ConfidenceThreshold)
	}
	if c.Extraction.ConfidenceThreshold < 0 || c.Extraction.ConfidenceThreshold > 1 {
		return fmt.Errorf("extraction.confidence_threshold must be within [0,1], got %v", c.Extraction.ConfidenceThreshold)
	}
	if c.Performance.AlertErrorRate < 0 || c.Performance.AlertErrorRate > 1 {
		return fmt.Errorf("performance.alert_error_rate must be within [0,1], got %v", c.Performance.AlertErrorRate)
	}

	return nil
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables → KV store → config fallback → error.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"AESTIMO_GEMINI_API_KEY"},
		"google_api_key":    {"AESTIMO_GEMINI_API_KEY"},
		"anthropic_api_key": {"AESTIMO_CLAUDE_API_KEY"},
		"claude_api_key":    {"AESTIMO_CLAUDE_API_KEY"},
	}

	// For Claude, also check the standard ANTHROPIC_API_KEY env var
	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// KV store holds keys loaded from variable files (medium priority)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ParseDurationOr parses a duration string, returning the fallback when the
// value is empty or malformed.
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
