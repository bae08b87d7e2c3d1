// Package budget tracks how much effort a crawl run may spend on LLM calls and
// search iterations, and estimates how much text fits into a model prompt.
package budget

import (
	"errors"
	"sync"
)

// ErrExhausted is wrapped by callers that refuse work because a limit is spent.
var ErrExhausted = errors.New("effort budget exhausted")

const (
	DefaultMaxLLMCalls         = 25
	DefaultMaxSearchIterations = 5
)

// Effort caps the number of LLM calls and search iterations of one run.
// It is safe for concurrent use.
type Effort struct {
	MaxLLMCalls         int
	MaxSearchIterations int

	mu               sync.Mutex
	llmCalls         int
	searchIterations int
}

// Usage is a point-in-time copy of the counters.
type Usage struct {
	LLMCalls            int
	MaxLLMCalls         int
	SearchIterations    int
	MaxSearchIterations int
}

// NewEffort returns a budget, substituting defaults for non-positive limits.
func NewEffort(maxLLMCalls, maxSearchIterations int) *Effort {
	if maxLLMCalls <= 0 {
		maxLLMCalls = DefaultMaxLLMCalls
	}
	if maxSearchIterations <= 0 {
		maxSearchIterations = DefaultMaxSearchIterations
	}
	return &Effort{MaxLLMCalls: maxLLMCalls, MaxSearchIterations: maxSearchIterations}
}

func (e *Effort) CanCallLLM() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.llmCalls < e.MaxLLMCalls
}

func (e *Effort) CanSearch() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searchIterations < e.MaxSearchIterations
}

func (e *Effort) RecordLLMCall() {
	e.mu.Lock()
	e.llmCalls++
	e.mu.Unlock()
}

func (e *Effort) RecordSearchIteration() {
	e.mu.Lock()
	e.searchIterations++
	e.mu.Unlock()
}

// TakeLLMCall records one LLM call if the budget allows it and reports
// whether it did. Check and record happen under one lock.
func (e *Effort) TakeLLMCall() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.llmCalls >= e.MaxLLMCalls {
		return false
	}
	e.llmCalls++
	return true
}

func (e *Effort) Snapshot() Usage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Usage{
		LLMCalls:            e.llmCalls,
		MaxLLMCalls:         e.MaxLLMCalls,
		SearchIterations:    e.searchIterations,
		MaxSearchIterations: e.MaxSearchIterations,
	}
}
