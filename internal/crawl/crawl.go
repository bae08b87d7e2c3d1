// Package crawl runs the search, fetch, score and record loop that turns a
// profile into a short list of matching job listings.
package crawl

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/jobcrawler/internal/budget"
	"github.com/hyperifyio/jobcrawler/internal/cache"
	"github.com/hyperifyio/jobcrawler/internal/extract"
	"github.com/hyperifyio/jobcrawler/internal/job"
	"github.com/hyperifyio/jobcrawler/internal/listing"
	"github.com/hyperifyio/jobcrawler/internal/output"
	"github.com/hyperifyio/jobcrawler/internal/planner"
	"github.com/hyperifyio/jobcrawler/internal/scorer"
	"github.com/hyperifyio/jobcrawler/internal/search"
)

const (
	DefaultMaxResults             = 5
	DefaultMinScore               = 70
	DefaultMaxQueriesPerIteration = 10
	DefaultResultsPerQuery        = 10
	DefaultMinContentChars        = 800
	titleWords                    = 8
)

// PageSource fetches a URL and returns its extracted content.
type PageSource interface {
	Fetch(ctx context.Context, url string) (extract.Document, error)
}

// Evaluator scores job text against a CV.
type Evaluator interface {
	Evaluate(ctx context.Context, cv, jobText string) (scorer.Evaluation, error)
}

// Options bounds a run. Zero values other than MinScore take the package
// defaults; the configuration layer supplies DefaultMinScore.
type Options struct {
	MaxResults             int
	MinScore               int
	MaxQueriesPerIteration int
	ResultsPerQuery        int
	MinContentChars        int
	// DryRun plans with Fallback and searches, but never fetches, scores,
	// touches the seen store or writes sinks.
	DryRun bool
	Policy listing.Policy
}

func (o Options) withDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MinScore < 0 {
		o.MinScore = 0
	}
	if o.MaxQueriesPerIteration <= 0 {
		o.MaxQueriesPerIteration = DefaultMaxQueriesPerIteration
	}
	if o.ResultsPerQuery <= 0 {
		o.ResultsPerQuery = DefaultResultsPerQuery
	}
	if o.MinContentChars <= 0 {
		o.MinContentChars = DefaultMinContentChars
	}
	return o
}

// Report summarizes a finished run.
type Report struct {
	RunID            string
	Results          []job.Result
	Candidates       []string
	LLMCalls         int
	SearchIterations int
	Seen             int
}

// Orchestrator wires the loop's collaborators together.
type Orchestrator struct {
	Options  Options
	Budget   *budget.Effort
	Planner  planner.Planner
	Fallback planner.Planner
	Search   search.Provider
	Pages    PageSource
	Scorer   Evaluator
	Seen     cache.SeenStore
	Sinks    []output.Sink
	// Now stamps the run; tests replace it.
	Now func() time.Time
}

// Run executes the loop until the result quota is met, a budget is spent,
// the planner runs dry or ctx is cancelled. Accumulated results are written
// to every sink in all of those cases. The returned error is the context
// error on cancellation, joined with any sink failure.
func (o *Orchestrator) Run(ctx context.Context, cv string, prefs map[string]any) (Report, error) {
	opts := o.Options.withDefaults()
	if o.Budget == nil {
		o.Budget = budget.NewEffort(0, 0)
	}
	r := &run{
		o:        o,
		opts:     opts,
		cv:       cv,
		prefs:    prefs,
		id:       uuid.NewString(),
		searched: map[string]struct{}{},
		visited:  map[string]struct{}{},
		results:  []job.Result{},
	}
	logger := log.With().Str("run_id", r.id).Logger()
	if o.Seen != nil {
		logger.Info().Int("seen", o.Seen.Len()).Bool("dry_run", opts.DryRun).Msg("starting crawl")
	}

	runErr := r.loop(ctx)

	report := Report{
		RunID:      r.id,
		Results:    r.results,
		Candidates: r.candidates,
	}
	usage := o.Budget.Snapshot()
	report.LLMCalls = usage.LLMCalls
	report.SearchIterations = usage.SearchIterations
	if o.Seen != nil {
		report.Seen = o.Seen.Len()
	}
	if opts.DryRun {
		logger.Info().Int("candidates", len(r.candidates)).Int("searches", usage.SearchIterations).Msg("dry run finished")
		return report, runErr
	}

	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	sinkRun := output.Run{ID: r.id, Finished: now(), Results: r.results}
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for _, s := range o.Sinks {
		if err := s.Write(sinkRun); err != nil {
			logger.Error().Err(err).Str("sink", s.Name()).Msg("writing results failed")
			errs = append(errs, err)
			continue
		}
		logger.Info().Str("sink", s.Name()).Int("results", len(r.results)).Msg("wrote results")
	}
	logger.Info().
		Int("results", len(r.results)).
		Int("llm_calls", usage.LLMCalls).
		Int("search_iterations", usage.SearchIterations).
		Int("seen", report.Seen).
		Msg("crawl finished")
	return report, errors.Join(errs...)
}

type run struct {
	o          *Orchestrator
	opts       Options
	cv         string
	prefs      map[string]any
	id         string
	history    []planner.HistoryEntry
	searched   map[string]struct{}
	visited    map[string]struct{}
	results    []job.Result
	candidates []string
}

var errStop = errors.New("stop")

func (r *run) loop(ctx context.Context) error {
	b := r.o.Budget
	for len(r.results) < r.opts.MaxResults && b.CanSearch() && (r.opts.DryRun || b.CanCallLLM()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		queries, err := r.plan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, budget.ErrExhausted) {
				log.Info().Msg("LLM budget exhausted while planning; stopping")
				return nil
			}
			log.Error().Err(err).Msg("planning failed; stopping")
			return nil
		}
		if len(queries) == 0 {
			log.Info().Msg("no new queries; stopping")
			return nil
		}
		log.Info().Int("queries", len(queries)).Int("results", len(r.results)).Msg("planned queries")
		for _, q := range queries {
			if !b.CanSearch() {
				break
			}
			if err := r.searchAndProcess(ctx, q); err != nil {
				if errors.Is(err, errStop) {
					return nil
				}
				return err
			}
			if len(r.results) >= r.opts.MaxResults {
				break
			}
		}
	}
	return ctx.Err()
}

// plan returns queries not yet searched in this run, capped per iteration.
func (r *run) plan(ctx context.Context) ([]string, error) {
	p := r.o.Planner
	if r.opts.DryRun && r.o.Fallback != nil {
		p = r.o.Fallback
	}
	if p == nil {
		return nil, errors.New("no planner configured")
	}
	plan, err := p.Plan(ctx, planner.NewContext(r.cv, r.prefs, r.results), r.history)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(plan.Queries))
	for _, q := range plan.Queries {
		if _, done := r.searched[strings.ToLower(q)]; done {
			continue
		}
		out = append(out, q)
		if len(out) >= r.opts.MaxQueriesPerIteration {
			break
		}
	}
	return out, nil
}

func (r *run) searchAndProcess(ctx context.Context, query string) error {
	r.searched[strings.ToLower(query)] = struct{}{}
	hits, err := r.o.Search.Search(ctx, query, r.opts.ResultsPerQuery)
	r.o.Budget.RecordSearchIteration()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("query", query).Msg("search failed")
		hits = nil
	}
	urls := search.URLs(hits)
	fresh := r.newURLs(urls)
	r.history = append(r.history, planner.HistoryEntry{Query: query, URLsFound: len(urls), New: len(fresh)})
	log.Info().Str("query", query).Int("found", len(urls)).Int("new", len(fresh)).Msg("searched")

	for _, u := range fresh {
		if len(r.results) >= r.opts.MaxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.opts.DryRun {
			if listing.LooksLikeListing(u) && r.opts.Policy.Permits(u) {
				r.candidates = append(r.candidates, u)
			}
			continue
		}
		if err := r.process(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// newURLs normalizes urls and keeps the ones neither in the seen store nor
// already handed out earlier in this run.
func (r *run) newURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u := listing.Normalize(raw)
		if u == "" {
			continue
		}
		if _, dup := r.visited[u]; dup {
			continue
		}
		if r.o.Seen != nil && r.o.Seen.Has(u) {
			continue
		}
		r.visited[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (r *run) process(ctx context.Context, u string) error {
	if !listing.LooksLikeListing(u) {
		log.Debug().Str("url", u).Msg("skipping non-job URL")
		r.markSeen(u)
		return nil
	}
	if !r.opts.Policy.Permits(u) {
		log.Debug().Str("url", u).Msg("skipping URL rejected by domain policy")
		r.markSeen(u)
		return nil
	}
	doc, err := r.o.Pages.Fetch(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("url", u).Msg("fetch failed")
		r.markSeen(u)
		return nil
	}
	text := doc.Text
	if text == "" {
		log.Info().Str("url", u).Msg("empty content; skipping")
		r.markSeen(u)
		return nil
	}
	if n := utf8.RuneCountInString(text); n < r.opts.MinContentChars {
		log.Info().Str("url", u).Int("chars", n).Msg("content too short; skipping")
		r.markSeen(u)
		return nil
	}
	ev, err := r.o.Scorer.Evaluate(ctx, r.cv, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, budget.ErrExhausted) {
			log.Info().Str("url", u).Msg("LLM budget exhausted before scoring; stopping")
			return errStop
		}
		log.Warn().Err(err).Str("url", u).Msg("scoring failed")
		r.markSeen(u)
		return nil
	}
	if ev.Score >= r.opts.MinScore {
		res := job.Result{
			Title:   doc.Title,
			Company: doc.Company,
			URL:     u,
			Score:   ev.Score,
			Reason:  ev.Reason,
			Status:  job.StatusNew,
		}
		if strings.TrimSpace(res.Title) == "" {
			res.Title = job.TitleFromText(text, titleWords)
		}
		if strings.TrimSpace(res.Company) == "" {
			res.Company = job.UnknownCompany
		}
		r.results = append(r.results, res)
		log.Info().Str("url", u).Int("score", ev.Score).Msg("saved job")
	} else {
		log.Info().Str("url", u).Int("score", ev.Score).Int("min_score", r.opts.MinScore).Msg("rejected job")
	}
	r.markSeen(u)
	return nil
}

func (r *run) markSeen(u string) {
	if r.o.Seen == nil {
		return
	}
	if err := r.o.Seen.Add(u); err != nil {
		log.Warn().Err(err).Str("url", u).Msg("recording seen URL failed")
	}
}
