package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/jobcrawler/internal/budget"
	"github.com/hyperifyio/jobcrawler/internal/job"
	"github.com/hyperifyio/jobcrawler/internal/llm"
)

type stubClient struct {
	reply   string
	prompts []string
}

func (s *stubClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.prompts = append(s.prompts, req.Messages[len(req.Messages)-1].Content)
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.reply}}}}, nil
}

func TestLLMPlanner_SanitizesQueries(t *testing.T) {
	sc := &stubClient{reply: `{"queries": [" golang jobs berlin ", "Golang jobs Berlin.", "", "remote go engineer?"]}`}
	p := &LLMPlanner{Caller: &llm.Caller{Client: sc, Model: "m", Budget: budget.NewEffort(3, 1)}}

	plan, err := p.Plan(context.Background(), NewContext("cv", nil, nil), nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []string{"golang jobs berlin", "remote go engineer"}
	if strings.Join(plan.Queries, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected queries %v", plan.Queries)
	}
}

func TestLLMPlanner_AcceptsBareArray(t *testing.T) {
	sc := &stubClient{reply: `["go developer jobs", "backend engineer remote"]`}
	p := &LLMPlanner{Caller: &llm.Caller{Client: sc, Model: "m"}}

	plan, err := p.Plan(context.Background(), NewContext("cv", nil, nil), nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Queries) != 2 {
		t.Fatalf("expected 2 queries, got %v", plan.Queries)
	}
}

func TestLLMPlanner_RejectsReplyWithoutQueries(t *testing.T) {
	for _, reply := range []string{`{"answer": "none"}`, `"sure"`} {
		sc := &stubClient{reply: reply}
		p := &LLMPlanner{Caller: &llm.Caller{Client: sc, Model: "m", Budget: budget.NewEffort(3, 1)}}

		_, err := p.Plan(context.Background(), NewContext("cv", nil, nil), nil)
		if !errors.Is(err, llm.ErrUnparseable) {
			t.Fatalf("reply %s: expected ErrUnparseable, got %v", reply, err)
		}
		if len(sc.prompts) != 2 {
			t.Fatalf("reply %s: expected one repair request, got %d calls", reply, len(sc.prompts))
		}
	}
}

func TestBuildPrompt_Shape(t *testing.T) {
	c := NewContext(strings.Repeat("x", 2000), map[string]any{"roles": []any{"go developer"}}, []job.Result{{Title: "T", URL: "u", Score: 80}})
	prompt, err := BuildPrompt(c, []HistoryEntry{{Query: "q", URLsFound: 10, New: 3}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(prompt), &doc); err != nil {
		t.Fatalf("prompt is not JSON: %v", err)
	}
	if doc["task"] != "Generate search queries for job hunting." {
		t.Fatalf("unexpected task %v", doc["task"])
	}
	ctx := doc["context"].(map[string]any)
	if got := len(ctx["cv_summary"].(string)); got != CVSummaryChars {
		t.Fatalf("cv summary should be truncated to %d, got %d", CVSummaryChars, got)
	}
	hist := doc["history"].([]any)[0].(map[string]any)
	if hist["query"] != "q" || hist["urls_found"] != float64(10) || hist["new"] != float64(3) {
		t.Fatalf("unexpected history entry %v", hist)
	}
	if _, ok := doc["output_schema"].(map[string]any)["queries"]; !ok {
		t.Fatalf("missing output schema")
	}
	if len(doc["rules"].([]any)) != 3 {
		t.Fatalf("expected 3 rules")
	}
}

func TestFallbackPlanner_Deterministic(t *testing.T) {
	prefs := map[string]any{
		"roles":     []any{"Go developer", "Platform engineer"},
		"locations": []any{"Berlin", "Remote EU"},
		"remote":    true,
	}
	p := FallbackPlanner{}
	a, err := p.Plan(context.Background(), NewContext("cv", prefs, nil), nil)
	if err != nil {
		t.Fatalf("fallback plan error: %v", err)
	}
	b, _ := p.Plan(context.Background(), NewContext("cv", prefs, nil), nil)
	if strings.Join(a.Queries, "|") != strings.Join(b.Queries, "|") {
		t.Fatal("fallback planner must be deterministic")
	}
	want := []string{
		"Go developer jobs Berlin", "Go developer jobs Remote EU", "remote Go developer jobs",
		"Platform engineer jobs Berlin", "Platform engineer jobs Remote EU", "remote Platform engineer jobs",
	}
	if strings.Join(a.Queries, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected queries %v", a.Queries)
	}
}

func TestFallbackPlanner_KeywordsAndSingleLocation(t *testing.T) {
	prefs := map[string]any{"keywords": "kubernetes", "location": "Helsinki"}
	plan, _ := FallbackPlanner{}.Plan(context.Background(), NewContext("", prefs, nil), nil)
	if len(plan.Queries) != 1 || plan.Queries[0] != "kubernetes jobs Helsinki" {
		t.Fatalf("unexpected queries %v", plan.Queries)
	}
	empty, _ := FallbackPlanner{}.Plan(context.Background(), NewContext("", nil, nil), nil)
	if len(empty.Queries) != 1 || empty.Queries[0] != "software engineer jobs" {
		t.Fatalf("unexpected default queries %v", empty.Queries)
	}
}

type failingPlanner struct{ err error }

func (f failingPlanner) Plan(context.Context, Context, []HistoryEntry) (Plan, error) {
	return Plan{}, f.err
}

func TestFacade_FallsBackOnError(t *testing.T) {
	f := &Facade{LLM: failingPlanner{err: errors.New("bad json")}, Fallback: FallbackPlanner{}}
	plan, err := f.Plan(context.Background(), NewContext("", map[string]any{"roles": "sre"}, nil), nil)
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if len(plan.Queries) == 0 || plan.Queries[0] != "sre jobs" {
		t.Fatalf("unexpected fallback queries %v", plan.Queries)
	}
}

func TestFacade_PropagatesBudgetExhaustion(t *testing.T) {
	f := &Facade{LLM: failingPlanner{err: budget.ErrExhausted}, Fallback: FallbackPlanner{}}
	_, err := f.Plan(context.Background(), NewContext("", nil, nil), nil)
	if !errors.Is(err, budget.ErrExhausted) {
		t.Fatalf("expected budget exhaustion, got %v", err)
	}
}
