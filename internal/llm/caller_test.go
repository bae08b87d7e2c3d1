package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/jobcrawler/internal/budget"
)

type fakeClient struct {
	replies  []string
	errs     []error
	requests []openai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	content := ""
	if i < len(f.replies) {
		content = f.replies[i]
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}}}, nil
}

type evaluation struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

func TestCaller_CompleteJSON_StrictParse(t *testing.T) {
	fc := &fakeClient{replies: []string{`{"score": 80, "reason": "good"}`}}
	b := budget.NewEffort(5, 1)
	c := &Caller{Client: fc, Model: "m", Temperature: 0.2, Budget: b}

	var ev evaluation
	require.NoError(t, c.CompleteJSON(context.Background(), "prompt", &ev))
	assert.Equal(t, evaluation{Score: 80, Reason: "good"}, ev)
	assert.Equal(t, 1, b.Snapshot().LLMCalls)
	require.Len(t, fc.requests, 1)
	assert.Equal(t, SystemMessage, fc.requests[0].Messages[0].Content)
	assert.Equal(t, "prompt", fc.requests[0].Messages[1].Content)
	assert.InDelta(t, 0.2, fc.requests[0].Temperature, 1e-6)
}

func TestCaller_CompleteJSON_LocalRepairNeedsNoExtraCall(t *testing.T) {
	fc := &fakeClient{replies: []string{"```json\n{\"score\": \"72.6\", \"reason\": [\"a\", \"b\"]}\n```"}}
	b := budget.NewEffort(5, 1)
	c := &Caller{Client: fc, Model: "m", Budget: b}

	var ev evaluation
	require.NoError(t, c.CompleteJSON(context.Background(), "prompt", &ev))
	assert.Equal(t, 73, ev.Score)
	assert.Equal(t, `["a","b"]`, ev.Reason)
	assert.Equal(t, 1, b.Snapshot().LLMCalls)
}

func TestCaller_CompleteJSON_RepairCall(t *testing.T) {
	fc := &fakeClient{replies: []string{"I think it is a great match", `{"score": 90, "reason": "fixed"}`}}
	b := budget.NewEffort(5, 1)
	c := &Caller{Client: fc, Model: "m", Temperature: 0.7, Budget: b}

	var ev evaluation
	require.NoError(t, c.CompleteJSON(context.Background(), "original", &ev))
	assert.Equal(t, 90, ev.Score)
	assert.Equal(t, 2, b.Snapshot().LLMCalls)
	require.Len(t, fc.requests, 2)
	repair := fc.requests[1]
	assert.Zero(t, repair.Temperature)
	assert.Contains(t, repair.Messages[1].Content, "Response: I think it is a great match")
	assert.Contains(t, repair.Messages[1].Content, "Original prompt: original")
}

func TestCaller_CompleteJSON_RepairFails(t *testing.T) {
	fc := &fakeClient{replies: []string{"nope", "still nope"}}
	c := &Caller{Client: fc, Model: "m", Budget: budget.NewEffort(5, 1)}

	var ev evaluation
	err := c.CompleteJSON(context.Background(), "p", &ev)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestCaller_CompleteJSON_MissingKeysTriggerRepair(t *testing.T) {
	fc := &fakeClient{replies: []string{`{"reason": "x"}`, `{"score": 64, "reason": "fixed"}`}}
	b := budget.NewEffort(5, 1)
	c := &Caller{Client: fc, Model: "m", Budget: b}

	var ev evaluation
	require.NoError(t, c.CompleteJSON(context.Background(), "p", &ev, "score", "reason"))
	assert.Equal(t, evaluation{Score: 64, Reason: "fixed"}, ev)
	assert.Equal(t, 2, b.Snapshot().LLMCalls)
	assert.Zero(t, fc.requests[1].Temperature)
}

func TestCaller_CompleteJSON_WrongShapeIsUnparseable(t *testing.T) {
	for _, reply := range []string{`{}`, `"sure"`, `[]`, `{"reason": "x"}`, `42`} {
		t.Run(reply, func(t *testing.T) {
			fc := &fakeClient{replies: []string{reply, reply}}
			c := &Caller{Client: fc, Model: "m", Budget: budget.NewEffort(5, 1)}

			var ev evaluation
			err := c.CompleteJSON(context.Background(), "p", &ev, "score", "reason")
			assert.ErrorIs(t, err, ErrUnparseable)
			assert.Len(t, fc.requests, 2)
		})
	}
}

func TestCaller_CompleteJSON_ScalarWithoutRequiredKeys(t *testing.T) {
	fc := &fakeClient{replies: []string{`"sure"`}}
	c := &Caller{Client: fc, Model: "m"}

	var out map[string]any
	require.NoError(t, c.CompleteJSON(context.Background(), "p", &out))
	assert.Equal(t, map[string]any{"queries": []any{}}, out)
	assert.Len(t, fc.requests, 1)
}

func TestCaller_RepairRespectsBudget(t *testing.T) {
	fc := &fakeClient{replies: []string{"nope"}}
	c := &Caller{Client: fc, Model: "m", Budget: budget.NewEffort(1, 1)}

	var ev evaluation
	err := c.CompleteJSON(context.Background(), "p", &ev)
	assert.ErrorIs(t, err, budget.ErrExhausted)
	assert.Len(t, fc.requests, 1)
}

func TestCaller_RetriesCountOnce(t *testing.T) {
	fc := &fakeClient{errs: []error{errors.New("502"), errors.New("timeout")}, replies: []string{"", "", "ok"}}
	b := budget.NewEffort(5, 1)
	var waits []time.Duration
	c := &Caller{Client: fc, Model: "m", MaxRetries: 3, MinDelay: time.Hour, Budget: b, Sleep: func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}}

	out, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, b.Snapshot().LLMCalls)
	assert.Len(t, fc.requests, 3)
	assert.Len(t, waits, 2, "MinDelay applies between attempts")
}

func TestCaller_GivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("boom")
	fc := &fakeClient{errs: []error{boom, boom}}
	c := &Caller{Client: fc, Model: "m", MaxRetries: 2}

	_, err := c.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, fc.requests, 2)
}

func TestCaller_BudgetExhausted(t *testing.T) {
	fc := &fakeClient{replies: []string{"{}"}}
	b := budget.NewEffort(1, 1)
	b.RecordLLMCall()
	c := &Caller{Client: fc, Model: "m", Budget: b}

	_, err := c.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, budget.ErrExhausted)
	assert.Empty(t, fc.requests)
}

func TestCaller_NoChoices(t *testing.T) {
	c := &Caller{Client: emptyClient{}, Model: "m", MaxRetries: 1}
	_, err := c.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNoChoices)
}

type emptyClient struct{}

func (emptyClient) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, nil
}
