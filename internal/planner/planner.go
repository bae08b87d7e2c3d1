// Package planner produces the search queries for each crawl iteration.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/jobcrawler/internal/budget"
	"github.com/hyperifyio/jobcrawler/internal/job"
	"github.com/hyperifyio/jobcrawler/internal/llm"
)

// CVSummaryChars is how much of the profile is shown to the planner.
const CVSummaryChars = 1500

// Plan represents the structured result from the planner step.
type Plan struct {
	Queries []string `json:"queries"`
}

// Context is what the planner knows about the candidate and the run so far.
type Context struct {
	CVSummary   string         `json:"cv_summary"`
	Preferences map[string]any `json:"preferences"`
	Results     []job.Result   `json:"results"`
}

// NewContext trims cv to CVSummaryChars runes.
func NewContext(cv string, prefs map[string]any, results []job.Result) Context {
	r := []rune(cv)
	if len(r) > CVSummaryChars {
		r = r[:CVSummaryChars]
	}
	if prefs == nil {
		prefs = map[string]any{}
	}
	if results == nil {
		results = []job.Result{}
	}
	return Context{CVSummary: string(r), Preferences: prefs, Results: results}
}

// HistoryEntry records the outcome of one search.
type HistoryEntry struct {
	Query     string `json:"query"`
	URLsFound int    `json:"urls_found"`
	New       int    `json:"new"`
}

// Planner produces search queries from the run context and search history.
type Planner interface {
	Plan(ctx context.Context, c Context, history []HistoryEntry) (Plan, error)
}

// LLMPlanner asks the model for queries through a budgeted caller.
type LLMPlanner struct {
	Caller *llm.Caller
}

// Plan returns an error, wrapping budget.ErrExhausted when applicable, so
// callers can choose to fall back.
func (p *LLMPlanner) Plan(ctx context.Context, c Context, history []HistoryEntry) (Plan, error) {
	if p.Caller == nil {
		return Plan{}, errors.New("planner not configured")
	}
	prompt, err := BuildPrompt(c, history)
	if err != nil {
		return Plan{}, err
	}
	var plan Plan
	if err := p.Caller.CompleteJSON(ctx, prompt, &plan, "queries"); err != nil {
		return Plan{}, fmt.Errorf("planner call: %w", err)
	}
	plan.Queries = sanitizeQueries(plan.Queries)
	return plan, nil
}

type queryPrompt struct {
	Task         string              `json:"task"`
	Context      Context             `json:"context"`
	History      []HistoryEntry      `json:"history"`
	OutputSchema map[string][]string `json:"output_schema"`
	Rules        []string            `json:"rules"`
}

// BuildPrompt renders the JSON prompt document sent to the model.
func BuildPrompt(c Context, history []HistoryEntry) (string, error) {
	if history == nil {
		history = []HistoryEntry{}
	}
	b, err := json.Marshal(queryPrompt{
		Task:         "Generate search queries for job hunting.",
		Context:      c,
		History:      history,
		OutputSchema: map[string][]string{"queries": {"string"}},
		Rules: []string{
			"Return ONLY JSON.",
			"Do not include explanations.",
			"Only include the keys in the output_schema.",
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode planner prompt: %w", err)
	}
	return string(b), nil
}

// FallbackPlanner derives deterministic queries from the preferences: every
// role (from "roles", "titles" or "keywords") crossed with every location
// ("locations" or "location"), plus a remote variant when "remote" is true.
type FallbackPlanner struct{}

func (FallbackPlanner) Plan(_ context.Context, c Context, _ []HistoryEntry) (Plan, error) {
	roles := firstNonEmpty(c.Preferences, "roles", "titles", "keywords")
	if len(roles) == 0 {
		roles = []string{"software engineer"}
	}
	locations := firstNonEmpty(c.Preferences, "locations", "location")
	remote, _ := c.Preferences["remote"].(bool)

	queries := make([]string, 0, len(roles)*(len(locations)+2))
	for _, role := range roles {
		if len(locations) == 0 {
			queries = append(queries, role+" jobs")
		}
		for _, loc := range locations {
			queries = append(queries, role+" jobs "+loc)
		}
		if remote {
			queries = append(queries, "remote "+role+" jobs")
		}
	}
	return Plan{Queries: sanitizeQueries(queries)}, nil
}

func firstNonEmpty(prefs map[string]any, keys ...string) []string {
	for _, k := range keys {
		if vals := stringsOf(prefs[k]); len(vals) > 0 {
			return vals
		}
	}
	return nil
}

func stringsOf(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, x := range t {
			out = append(out, stringsOf(x)...)
		}
	case []string:
		for _, x := range t {
			out = append(out, stringsOf(x)...)
		}
	}
	return out
}

// Facade tries the LLM planner first and falls back deterministically. Budget
// exhaustion is returned as-is so the run can stop.
type Facade struct {
	LLM      Planner
	Fallback Planner
}

func (f *Facade) Plan(ctx context.Context, c Context, history []HistoryEntry) (Plan, error) {
	if f.LLM != nil {
		p, err := f.LLM.Plan(ctx, c, history)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, budget.ErrExhausted) || ctx.Err() != nil {
			return Plan{}, err
		}
		log.Warn().Err(err).Msg("LLM planner failed; using fallback planner")
	}
	if f.Fallback == nil {
		return Plan{}, errors.New("no planner available")
	}
	return f.Fallback.Plan(ctx, c, history)
}

func sanitizeQueries(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, q := range in {
		s := strings.TrimSpace(q)
		s = strings.TrimSuffix(s, ".")
		s = strings.TrimSuffix(s, "?")
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
