package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/jobcrawler/internal/budget"
	"github.com/hyperifyio/jobcrawler/internal/cache"
	"github.com/hyperifyio/jobcrawler/internal/crawl"
	"github.com/hyperifyio/jobcrawler/internal/extract"
	"github.com/hyperifyio/jobcrawler/internal/fetch"
	"github.com/hyperifyio/jobcrawler/internal/listing"
	"github.com/hyperifyio/jobcrawler/internal/llm"
	"github.com/hyperifyio/jobcrawler/internal/output"
	"github.com/hyperifyio/jobcrawler/internal/planner"
	"github.com/hyperifyio/jobcrawler/internal/profile"
	"github.com/hyperifyio/jobcrawler/internal/scorer"
	"github.com/hyperifyio/jobcrawler/internal/search"
)

// App owns the long-lived resources of one crawl: the seen store, the
// caches and the wired orchestrator.
type App struct {
	cfg          Config
	seen         cache.SeenStore
	orchestrator *crawl.Orchestrator
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	hc := newHTTPClient(0)

	cacheDir := cfg.Resolve(cfg.CacheDir)
	var httpCache *cache.HTTPCache
	var llmCache *cache.LLMCache
	if strings.TrimSpace(cacheDir) != "" {
		// Invalidation is best-effort; a broken cache must not block a crawl.
		if cfg.CacheClear {
			if err := cache.ClearDir(cacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cacheDir).Msg("cache clear failed")
			}
		}
		httpDir := filepath.Join(cacheDir, "http")
		llmDir := filepath.Join(cacheDir, "llm")
		if cfg.CacheMaxAge > 0 {
			n, err := cache.PurgeHTTPCacheByAge(httpDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", httpDir).Msg("purging page cache failed")
			}
			m, err := cache.PurgeLLMCacheByAge(llmDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", llmDir).Msg("purging score cache failed")
			}
			log.Debug().Int("http", n).Int("llm", m).Msg("purged stale cache entries")
		}
		httpCache = &cache.HTTPCache{Dir: httpDir, StrictPerms: cfg.CacheStrictPerms}
		llmCache = &cache.LLMCache{Dir: llmDir, StrictPerms: cfg.CacheStrictPerms}
	}

	provider, err := NewSearchProvider(cfg, newHTTPClient(cfg.SearchTimeout))
	if err != nil {
		return nil, err
	}
	extractor, err := extract.New(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	pages := &crawl.HTTPPageSource{
		Client: &fetch.Client{
			HTTPClient:        hc,
			UserAgent:         cfg.UserAgent,
			MaxAttempts:       cfg.FetchMaxAttempts,
			PerRequestTimeout: cfg.FetchTimeout,
			Cache:             httpCache,
			BypassCache:       cfg.FetchBypassCache,
			RedirectMaxHops:   cfg.FetchMaxRedirects,
		},
		Extractor: extractor,
	}

	// Zero budgets are honoured; defaults come from DefaultConfig.
	effort := &budget.Effort{MaxLLMCalls: cfg.MaxLLMCalls, MaxSearchIterations: cfg.MaxSearchIterations}
	client, err := newLLMClient(cfg, hc)
	if err != nil {
		return nil, err
	}
	caller := &llm.Caller{
		Client:      client,
		Model:       cfg.LLMModel,
		Temperature: float32(cfg.LLMTemperature),
		MaxRetries:  cfg.LLMMaxRetries,
		MinDelay:    cfg.LLMMinDelay,
		Budget:      effort,
	}

	var seen cache.SeenStore
	if cfg.DryRun {
		seen, err = cache.OpenSeenSnapshot(cfg.SeenBackend, cfg.Resolve(cfg.SeenPath))
	} else {
		seen, err = cache.OpenSeenStore(cfg.SeenBackend, cfg.Resolve(cfg.SeenPath))
	}
	if err != nil {
		return nil, err
	}

	sinks := []output.Sink{
		output.JSONWriter{Path: cfg.Resolve(cfg.ResultsJSON)},
		output.CSVWriter{Path: cfg.Resolve(cfg.ResultsCSV)},
	}
	if strings.TrimSpace(cfg.ResultsPDF) != "" {
		sinks = append(sinks, output.PDFWriter{Path: cfg.Resolve(cfg.ResultsPDF)})
	}

	a := &App{cfg: cfg, seen: seen}
	a.orchestrator = &crawl.Orchestrator{
		Options: crawl.Options{
			MaxResults:             cfg.MaxResults,
			MinScore:               cfg.MinScore,
			MaxQueriesPerIteration: cfg.MaxQueriesPerIteration,
			ResultsPerQuery:        cfg.ResultsPerQuery,
			MinContentChars:        cfg.MinContentChars,
			DryRun:                 cfg.DryRun,
			Policy:                 listing.Policy{Allow: cfg.DomainAllow, Deny: cfg.DomainDeny},
		},
		Budget:   effort,
		Planner:  &planner.Facade{LLM: &planner.LLMPlanner{Caller: caller}, Fallback: planner.FallbackPlanner{}},
		Fallback: planner.FallbackPlanner{},
		Search:   provider,
		Pages:    pages,
		Scorer:   &scorer.Scorer{Caller: caller, MaxJobChars: cfg.MaxJobChars, Cache: llmCache},
		Seen:     seen,
		Sinks:    sinks,
	}

	if !cfg.DryRun {
		preflight(ctx, client)
	}
	return a, nil
}

// preflight lists models as a quick connectivity check. It only warns.
func preflight(ctx context.Context, client llm.Client) {
	lister, ok := client.(llm.ModelLister)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) > 0 {
		log.Info().Int("count", len(models.Models)).Msg("LLM models available")
	} else {
		log.Warn().Msg("LLM returned zero models")
	}
}

func newLLMClient(cfg Config, hc *http.Client) (llm.Client, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "", LLMProviderOpenAI:
		return llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.APIKey(), hc), nil
	case LLMProviderAnthropic:
		return llm.NewAnthropicProvider(cfg.APIKey(), cfg.LLMBaseURL, hc), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// NewSearchProvider builds the configured provider wrapped with pacing and
// retries.
func NewSearchProvider(cfg Config, hc *http.Client) (search.Provider, error) {
	var p search.Provider
	switch strings.ToLower(cfg.SearchProvider) {
	case "", SearchProviderBrave:
		if strings.TrimSpace(cfg.BraveAPIKey) == "" {
			log.Warn().Msg("BRAVE_API_KEY is not set; searches will likely be rejected")
		}
		p = &search.Brave{
			Endpoint:   cfg.BraveEndpoint,
			APIKey:     cfg.BraveAPIKey,
			HTTPClient: hc,
			UserAgent:  cfg.UserAgent,
			Pages:      cfg.SearchPages,
		}
	case SearchProviderSearxNG:
		p = &search.SearxNG{
			BaseURL:    cfg.SearxURL,
			APIKey:     cfg.SearxKey,
			HTTPClient: hc,
			UserAgent:  cfg.UserAgent,
			Pages:      cfg.SearchPages,
		}
	case SearchProviderFile:
		p = &search.FileProvider{Path: cfg.Resolve(cfg.SearchFile)}
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}
	return search.NewRetrying(p, cfg.SearchMaxAttempts, cfg.SearchMinDelay), nil
}

// Close releases the seen store.
func (a *App) Close() error {
	if a.seen == nil {
		return nil
	}
	return a.seen.Close()
}

// Run loads the profile from the root directory and runs the crawl.
func (a *App) Run(ctx context.Context) (crawl.Report, error) {
	cv, err := profile.LoadUserProfile(a.cfg.Root)
	if err != nil {
		return crawl.Report{}, err
	}
	prefs, err := profile.LoadPreferences(a.cfg.Root)
	if err != nil {
		return crawl.Report{}, err
	}
	log.Info().
		Str("search", a.orchestrator.Search.Name()).
		Str("model", a.cfg.LLMModel).
		Int("max_results", a.cfg.MaxResults).
		Msg("loaded profile")
	return a.orchestrator.Run(ctx, cv, prefs)
}
