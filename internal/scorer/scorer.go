// Package scorer rates a job page against the candidate profile with a
// single model call.
package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/jobcrawler/internal/budget"
	"github.com/hyperifyio/jobcrawler/internal/cache"
	"github.com/hyperifyio/jobcrawler/internal/llm"
)

// DefaultMaxJobChars caps the page text placed into a prompt.
const DefaultMaxJobChars = 12000

// reservedOutputTokens is kept free for the model's answer.
const reservedOutputTokens = 512

// Evaluation is the model's verdict on one page.
type Evaluation struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Scorer evaluates job text against a CV.
type Scorer struct {
	Caller *llm.Caller
	// MaxJobChars bounds the job text in characters. Zero means DefaultMaxJobChars.
	MaxJobChars int
	// Cache, when set, short-circuits identical prompts without using budget.
	Cache *cache.LLMCache
}

// Evaluate scores jobText. The score is clamped to 0..100. A reply without
// a score and a reason fails with llm.ErrUnparseable after one repair request.
func (s *Scorer) Evaluate(ctx context.Context, cv, jobText string) (Evaluation, error) {
	if s.Caller == nil {
		return Evaluation{}, errors.New("scorer not configured")
	}
	jobText = s.fit(cv, jobText)
	prompt, err := BuildPrompt(cv, jobText)
	if err != nil {
		return Evaluation{}, err
	}
	key := cache.KeyFrom(s.Caller.Model, llm.SystemMessage+"\n\n"+prompt)
	if s.Cache != nil {
		raw, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			log.Debug().Err(err).Msg("reading scoring cache failed")
		}
		if ok {
			var ev Evaluation
			if err := json.Unmarshal(raw, &ev); err == nil {
				log.Debug().Int("score", ev.Score).Msg("scoring cache hit")
				return ev, nil
			}
		}
	}
	var ev Evaluation
	if err := s.Caller.CompleteJSON(ctx, prompt, &ev, "score", "reason"); err != nil {
		return Evaluation{}, fmt.Errorf("evaluate job: %w", err)
	}
	ev.Score = clamp(ev.Score)
	if s.Cache != nil {
		b, err := json.Marshal(ev)
		if err == nil {
			err = s.Cache.Save(ctx, key, b)
		}
		if err != nil {
			log.Warn().Err(err).Msg("saving scoring cache failed")
		}
	}
	return ev, nil
}

// fit truncates jobText to MaxJobChars and to what the model context can
// still hold after the CV and prompt scaffolding.
func (s *Scorer) fit(cv, jobText string) string {
	limit := s.MaxJobChars
	if limit <= 0 {
		limit = DefaultMaxJobChars
	}
	scaffold := budget.EstimateTokens(cv) + budget.EstimateTokens(llm.SystemMessage) + 100
	remaining := budget.RemainingContextWithHeadroom(s.Caller.Model, reservedOutputTokens, scaffold)
	// Four characters per token mirrors EstimateTokensFromChars.
	if byTokens := remaining * 4; byTokens < limit {
		limit = byTokens
	}
	r := []rune(jobText)
	if limit < 0 {
		limit = 0
	}
	if len(r) > limit {
		return string(r[:limit])
	}
	return jobText
}

type evaluationPrompt struct {
	Task           string         `json:"task"`
	CV             string         `json:"cv"`
	JobDescription string         `json:"job_description"`
	OutputSchema   map[string]any `json:"output_schema"`
	Rules          []string       `json:"rules"`
}

// BuildPrompt renders the JSON prompt document sent to the model.
func BuildPrompt(cv, jobText string) (string, error) {
	b, err := json.Marshal(evaluationPrompt{
		Task:           "Evaluate job relevance to the CV.",
		CV:             cv,
		JobDescription: jobText,
		OutputSchema:   map[string]any{"score": 0, "reason": "string"},
		Rules: []string{
			"Return ONLY JSON.",
			"Do not include explanations.",
			"score must be an integer 0-100.",
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode evaluation prompt: %w", err)
	}
	return string(b), nil
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
