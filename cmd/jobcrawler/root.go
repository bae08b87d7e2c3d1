package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/jobcrawler/internal/app"
)

// options carries the persistent flags shared by every command.
type options struct {
	root        string
	configPath  string
	profile     string
	verbose     bool
	dryRun      bool
	maxResults  int
	minScore    int
	llmProvider string
	llmModel    string
	llmBase     string
	search      string
	outJSON     string
	outCSV      string
	outPDF      string
	cacheDir    string
	cacheMaxAge time.Duration
	cacheClear  bool
	bypass      bool
	allow       []string
	deny        []string
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}
	root := &cobra.Command{
		Use:   "jobcrawler",
		Short: "Find job listings that match a CV",
		Long: `jobcrawler searches the web for job listings, scores each page against
user_profile.txt with a language model and writes matches to JSON and CSV.

Every attempted URL is remembered so later runs only look at new listings.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", app.BuildVersion, app.BuildCommit, app.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.root, "root", ".", "Directory holding user_profile.txt, preferences.json and .env")
	pf.StringVar(&opts.configPath, "config", "", "Config file (TOML, YAML or JSON); defaults to <root>/pyproject.toml when present")
	pf.StringVar(&opts.profile, "profile", "", "Config profile to apply (or set "+app.ProfileEnv+")")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "Plan and search without fetching, scoring or writing outputs")
	pf.IntVar(&opts.maxResults, "max.results", 0, "Stop after this many matching jobs")
	pf.IntVar(&opts.minScore, "min.score", 0, "Minimum score (0-100) for a job to be kept")
	pf.StringVar(&opts.llmProvider, "llm.provider", "", "LLM provider: openai or anthropic")
	pf.StringVar(&opts.llmModel, "llm.model", "", "Model name")
	pf.StringVar(&opts.llmBase, "llm.base", "", "LLM base URL")
	pf.StringVar(&opts.search, "search.provider", "", "Search provider: brave, searxng or file")
	pf.StringVar(&opts.outJSON, "output.json", "", "Results JSON path")
	pf.StringVar(&opts.outCSV, "output.csv", "", "Results CSV path")
	pf.StringVar(&opts.outPDF, "output.pdf", "", "Optional PDF report path")
	pf.StringVar(&opts.cacheDir, "cache.dir", "", "Cache directory for page and score caches")
	pf.DurationVar(&opts.cacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this before the run (e.g. 72h); 0 disables")
	pf.BoolVar(&opts.cacheClear, "cache.clear", false, "Clear the cache directory before the run")
	pf.BoolVar(&opts.bypass, "fetch.bypassCache", false, "Refetch pages without conditional requests, refreshing the page cache")
	pf.StringSliceVar(&opts.allow, "domains.allow", nil, "Only fetch listings on these hosts (subdomains included)")
	pf.StringSliceVar(&opts.deny, "domains.deny", nil, "Never fetch listings on these hosts; wins over --domains.allow")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a crawl (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, opts)
		},
	}
	root.AddCommand(runCmd, newSearchCmd(opts), newCacheCmd(opts), newVersionCmd())
	return root, opts
}

// loadConfig layers defaults, the config file and profile, the environment
// and finally the flags the user actually set.
func loadConfig(cmd *cobra.Command, opts *options) (app.Config, error) {
	root := opts.root
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	if err := app.LoadEnvFiles(filepath.Join(root, ".env")); err != nil {
		return app.Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := app.DefaultConfig()
	cfg.Root = root

	path := opts.configPath
	if path == "" {
		path = app.DiscoverConfigFile(root)
	}
	profile := opts.profile
	if profile == "" {
		profile = strings.TrimSpace(os.Getenv(app.ProfileEnv))
	}
	if path != "" {
		fc, err := app.LoadConfigFile(path, profile)
		if err != nil {
			return app.Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		if err := app.ApplyFileConfig(&cfg, fc); err != nil {
			return app.Config{}, err
		}
	} else if profile != "" {
		return app.Config{}, errors.New("a profile was selected but no config file was found")
	}
	cfg.ConfigPath = path
	cfg.Profile = profile

	app.ApplyEnvOverrides(&cfg)

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	if flags.Changed("max.results") {
		cfg.MaxResults = opts.maxResults
	}
	if flags.Changed("min.score") {
		cfg.MinScore = opts.minScore
	}
	if flags.Changed("llm.provider") {
		cfg.LLMProvider = opts.llmProvider
	}
	if flags.Changed("llm.model") {
		cfg.LLMModel = opts.llmModel
	}
	if flags.Changed("llm.base") {
		cfg.LLMBaseURL = opts.llmBase
	}
	if flags.Changed("search.provider") {
		cfg.SearchProvider = opts.search
	}
	if flags.Changed("output.json") {
		cfg.ResultsJSON = opts.outJSON
	}
	if flags.Changed("output.csv") {
		cfg.ResultsCSV = opts.outCSV
	}
	if flags.Changed("output.pdf") {
		cfg.ResultsPDF = opts.outPDF
	}
	if flags.Changed("cache.dir") {
		cfg.CacheDir = opts.cacheDir
	}
	if flags.Changed("cache.maxAge") {
		cfg.CacheMaxAge = opts.cacheMaxAge
	}
	if flags.Changed("cache.clear") {
		cfg.CacheClear = opts.cacheClear
	}
	if flags.Changed("fetch.bypassCache") {
		cfg.FetchBypassCache = opts.bypass
	}
	if flags.Changed("domains.allow") {
		cfg.DomainAllow = opts.allow
	}
	if flags.Changed("domains.deny") {
		cfg.DomainDeny = opts.deny
	}

	setupLogging(cfg.LogLevel, cfg.Verbose)
	return cfg, nil
}

func runCrawl(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	report, err := a.Run(ctx)
	out := cmd.OutOrStdout()
	if cfg.DryRun {
		fmt.Fprintf(out, "Dry run %s: %d candidate listings after %d searches\n", report.RunID, len(report.Candidates), report.SearchIterations)
		for i, u := range report.Candidates {
			fmt.Fprintf(out, "%d. %s\n", i+1, u)
		}
		return err
	}
	if report.RunID != "" {
		fmt.Fprintf(out, "Run %s: %d matching jobs (%d LLM calls, %d searches, %d URLs seen)\n",
			report.RunID, len(report.Results), report.LLMCalls, report.SearchIterations, report.Seen)
		for _, r := range report.Results {
			fmt.Fprintf(out, "  [%3d] %s - %s\n        %s\n", r.Score, r.Title, r.Company, r.URL)
		}
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jobcrawler %s\ncommit: %s\nbuilt: %s\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		},
	}
}
