package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperifyio/jobcrawler/internal/budget"
	"github.com/hyperifyio/jobcrawler/internal/cache"
	"github.com/hyperifyio/jobcrawler/internal/crawl"
	"github.com/hyperifyio/jobcrawler/internal/extract"
	"github.com/hyperifyio/jobcrawler/internal/search"
)

const (
	LLMProviderOpenAI    = "openai"
	LLMProviderAnthropic = "anthropic"

	SearchProviderBrave   = "brave"
	SearchProviderSearxNG = "searxng"
	SearchProviderFile    = "file"

	DefaultUserAgent = "jobcrawler/1.0 (+https://github.com/hyperifyio/jobcrawler)"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Root is the directory holding user_profile.txt, preferences.json and
	// the default config file. Relative output paths resolve against it.
	Root       string
	ConfigPath string
	Profile    string

	// Loop limits
	MaxResults             int
	MinScore               int
	MinContentChars        int
	MaxQueriesPerIteration int

	// Budget
	MaxLLMCalls         int
	MaxSearchIterations int

	// Output
	ResultsJSON string
	ResultsCSV  string
	ResultsPDF  string
	SeenPath    string
	SeenBackend string

	// LLM
	LLMProvider string
	LLMBaseURL  string
	LLMModel    string
	LLMAPIKey   string

	// Vendor keys, used when LLMAPIKey is empty.
	OpenRouterAPIKey string
	AnthropicAPIKey  string

	LLMTemperature float64
	LLMMaxRetries  int
	LLMMinDelay    time.Duration
	MaxJobChars    int

	// Search
	SearchProvider    string
	BraveEndpoint     string
	BraveAPIKey       string
	SearxURL          string
	SearxKey          string
	SearchFile        string
	ResultsPerQuery   int
	SearchPages       int
	SearchTimeout     time.Duration
	SearchMinDelay    time.Duration
	SearchMaxAttempts int

	// Fetch
	FetchMaxAttempts  int
	FetchTimeout      time.Duration
	FetchBypassCache  bool
	FetchMaxRedirects int
	UserAgent         string
	Extractor         string

	// Caches
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	DomainAllow []string
	DomainDeny  []string

	// Behavior
	DryRun   bool
	Verbose  bool
	LogLevel string
}

// DefaultConfig returns the built-in defaults, the lowest precedence layer.
func DefaultConfig() Config {
	return Config{
		Root:                   ".",
		MaxResults:             crawl.DefaultMaxResults,
		MinScore:               crawl.DefaultMinScore,
		MinContentChars:        crawl.DefaultMinContentChars,
		MaxQueriesPerIteration: crawl.DefaultMaxQueriesPerIteration,
		MaxLLMCalls:            budget.DefaultMaxLLMCalls,
		MaxSearchIterations:    budget.DefaultMaxSearchIterations,
		ResultsJSON:            filepath.Join("data", "results.json"),
		ResultsCSV:             filepath.Join("data", "results.csv"),
		SeenPath:               filepath.Join("data", "cache.json"),
		SeenBackend:            cache.BackendJSON,
		LLMProvider:            LLMProviderOpenAI,
		LLMModel:               "openrouter/free",
		LLMTemperature:         0.2,
		LLMMaxRetries:          3,
		LLMMinDelay:            time.Second,
		SearchProvider:         SearchProviderBrave,
		BraveEndpoint:          search.DefaultBraveEndpoint,
		ResultsPerQuery:        crawl.DefaultResultsPerQuery,
		SearchPages:            1,
		SearchTimeout:          30 * time.Second,
		SearchMinDelay:         time.Second,
		SearchMaxAttempts:      3,
		FetchMaxAttempts:       3,
		FetchTimeout:           30 * time.Second,
		FetchMaxRedirects:      5,
		UserAgent:              DefaultUserAgent,
		Extractor:              extract.KindHeuristic,
		CacheDir:               filepath.Join("data", ".cache"),
		LogLevel:               "info",
	}
}

// APIKey returns the key for the configured LLM provider. An explicit
// LLMAPIKey wins over the vendor-specific keys.
func (c Config) APIKey() string {
	if strings.TrimSpace(c.LLMAPIKey) != "" {
		return c.LLMAPIKey
	}
	if strings.EqualFold(c.LLMProvider, LLMProviderAnthropic) {
		return c.AnthropicAPIKey
	}
	return c.OpenRouterAPIKey
}

// Resolve returns path joined onto Root unless it is empty or absolute.
func (c Config) Resolve(path string) string {
	if strings.TrimSpace(path) == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// ValidateConfig performs schema validation for required settings. In
// dry-run mode LLM settings may be omitted.
func ValidateConfig(cfg Config) error {
	var errs []error
	if cfg.MaxResults <= 0 {
		errs = append(errs, errors.New("config: max_results must be positive"))
	}
	if cfg.MinScore < 0 || cfg.MinScore > 100 {
		errs = append(errs, errors.New("config: min_score must be within 0..100"))
	}
	if cfg.MaxLLMCalls < 0 || cfg.MaxSearchIterations < 0 {
		errs = append(errs, errors.New("config: negative budgets are not allowed"))
	}
	if cfg.MinContentChars < 0 || cfg.MaxQueriesPerIteration < 0 || cfg.ResultsPerQuery < 0 || cfg.MaxJobChars < 0 || cfg.FetchMaxRedirects < 0 {
		errs = append(errs, errors.New("config: negative limits are not allowed"))
	}
	if strings.TrimSpace(cfg.ResultsJSON) == "" || strings.TrimSpace(cfg.ResultsCSV) == "" {
		errs = append(errs, errors.New("config: output.results_json and output.results_csv are required"))
	}
	if strings.TrimSpace(cfg.SeenPath) == "" {
		errs = append(errs, errors.New("config: output.cache_path is required"))
	}
	switch strings.ToLower(cfg.SeenBackend) {
	case "", cache.BackendJSON, cache.BackendBolt:
	default:
		errs = append(errs, fmt.Errorf("config: unknown output.cache_backend %q", cfg.SeenBackend))
	}
	switch strings.ToLower(cfg.Extractor) {
	case "", extract.KindHeuristic, extract.KindReadability:
	default:
		errs = append(errs, fmt.Errorf("config: unknown fetch.extractor %q", cfg.Extractor))
	}
	switch strings.ToLower(cfg.SearchProvider) {
	case SearchProviderBrave:
	case SearchProviderSearxNG:
		if strings.TrimSpace(cfg.SearxURL) == "" {
			errs = append(errs, errors.New("config: search.searx_url is required for the searxng provider"))
		}
	case SearchProviderFile:
		if strings.TrimSpace(cfg.SearchFile) == "" {
			errs = append(errs, errors.New("config: search.file is required for the file provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown search.provider %q", cfg.SearchProvider))
	}
	if !cfg.DryRun {
		switch strings.ToLower(cfg.LLMProvider) {
		case LLMProviderOpenAI, LLMProviderAnthropic:
		default:
			errs = append(errs, fmt.Errorf("config: unknown llm.provider %q", cfg.LLMProvider))
		}
		if strings.TrimSpace(cfg.LLMModel) == "" {
			errs = append(errs, errors.New("config: llm.model is required (or set LLM_MODEL)"))
		}
	}
	return errors.Join(errs...)
}
