package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings. Values come from defaults, an optional
// YAML file, and OUTREACH_* environment variables, in that order of
// precedence (later wins).
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Generation GenerationConfig `yaml:"generation"`
	Panel      PanelConfig      `yaml:"panel"`
	Output     OutputConfig     `yaml:"output"`
}

type LLMConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	FastModel string `yaml:"fast_model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type CacheConfig struct {
	TTLDays int    `yaml:"ttl_days"`
	DBPath  string `yaml:"db_path"`
}

type RateLimitConfig struct {
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	DomainDelaySeconds float64 `yaml:"domain_delay_seconds"`
}

type ScrapeConfig struct {
	TimeoutSeconds  float64 `yaml:"timeout_seconds"`
	MaxAttempts     int     `yaml:"max_attempts"`
	MaxArticles     int     `yaml:"max_articles"`
	MaxSummaryChars int     `yaml:"max_summary_chars"`
	MinArticleWords int     `yaml:"min_article_words"`
}

// EvaluationConfig exposes the scoring policy. The weights are deliberately
// tunable: the penalty per finding is Multiplier*(weight), and the score is
// 100 minus the total penalty, floored at zero.
type EvaluationConfig struct {
	Threshold   int `yaml:"threshold"`
	AIWeight    int `yaml:"ai_weight"`
	StyleWeight int `yaml:"style_weight"`
	OtherWeight int `yaml:"other_weight"`
	Multiplier  int `yaml:"multiplier"`
}

type GenerationConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

type PanelConfig struct {
	Addr string `yaml:"addr"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:   "https://api.x.ai/v1",
			Model:     "grok-3-latest",
			FastModel: "grok-3-fast-latest",
			MaxTokens: 256,
		},
		Cache: CacheConfig{
			TTLDays: 7,
			DBPath:  "data/cache.db",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:  2.0,
			DomainDelaySeconds: 2.0,
		},
		Scrape: ScrapeConfig{
			TimeoutSeconds:  30.0,
			MaxAttempts:     3,
			MaxArticles:     3,
			MaxSummaryChars: 2000,
			MinArticleWords: 100,
		},
		Evaluation: EvaluationConfig{
			Threshold:   70,
			AIWeight:    2,
			StyleWeight: 1,
			OtherWeight: 1,
			Multiplier:  3,
		},
		Generation: GenerationConfig{
			MaxRetries: 2,
		},
		Panel: PanelConfig{
			Addr: "127.0.0.1:8742",
		},
		Output: OutputConfig{
			Dir: "output",
		},
	}
}

// Load reads configuration from path (ignored if it does not exist), applies
// OUTREACH_* environment overrides, and validates required fields.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		return Config{}, errors.New("missing required config: LLM API key. Set llm.api_key in the config file or the OUTREACH_LLM_API_KEY environment variable")
	}
	if cfg.Evaluation.Threshold < 0 || cfg.Evaluation.Threshold > 100 {
		return Config{}, fmt.Errorf("evaluation.threshold must be in [0,100], got %d", cfg.Evaluation.Threshold)
	}
	if cfg.Generation.MaxRetries < 0 {
		return Config{}, fmt.Errorf("generation.max_retries must be >= 0, got %d", cfg.Generation.MaxRetries)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(env string, dst *float64) {
		if v := os.Getenv(env); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setString("OUTREACH_LLM_API_KEY", &cfg.LLM.APIKey)
	setString("OUTREACH_LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("OUTREACH_LLM_MODEL", &cfg.LLM.Model)
	setString("OUTREACH_LLM_FAST_MODEL", &cfg.LLM.FastModel)
	setInt("OUTREACH_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	setInt("OUTREACH_CACHE_TTL_DAYS", &cfg.Cache.TTLDays)
	setString("OUTREACH_CACHE_DB_PATH", &cfg.Cache.DBPath)
	setFloat("OUTREACH_RATE_LIMIT_RPS", &cfg.RateLimit.RequestsPerSecond)
	setFloat("OUTREACH_RATE_LIMIT_DOMAIN_DELAY", &cfg.RateLimit.DomainDelaySeconds)
	setFloat("OUTREACH_SCRAPE_TIMEOUT", &cfg.Scrape.TimeoutSeconds)
	setInt("OUTREACH_SCRAPE_MAX_ATTEMPTS", &cfg.Scrape.MaxAttempts)
	setInt("OUTREACH_EVAL_THRESHOLD", &cfg.Evaluation.Threshold)
	setInt("OUTREACH_MAX_RETRIES", &cfg.Generation.MaxRetries)
	setString("OUTREACH_PANEL_ADDR", &cfg.Panel.Addr)
	setString("OUTREACH_OUTPUT_DIR", &cfg.Output.Dir)
}
