package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/jobcrawler/internal/budget"
)

// SystemMessage is sent with every request.
const SystemMessage = "Respond only with valid JSON."

var (
	// ErrNoChoices is returned when the model answers without any choice.
	ErrNoChoices = errors.New("no choices")
	// ErrUnparseable is returned when neither the reply nor its repair held the
	// expected JSON object.
	ErrUnparseable = errors.New("model reply is not valid JSON")
)

// Caller performs budgeted model calls. Each logical call consumes exactly one
// unit of the LLM budget regardless of how many transport retries it needs.
type Caller struct {
	Client      Client
	Model       string
	Temperature float32
	// MaxRetries is the number of attempts per call. Zero means 3.
	MaxRetries int
	// MinDelay is the minimum spacing between consecutive requests.
	MinDelay  time.Duration
	MaxTokens int
	Budget    *budget.Effort
	// Sleep waits between requests; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	lastCall time.Time
}

// Complete sends prompt as the user message and returns the reply text.
func (c *Caller) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, c.Temperature)
}

// CompleteJSON calls the model and decodes its reply into out. A reply that is
// not JSON is first repaired locally. A reply that still fails to decode, or
// lacks any of the required keys, gets one repair request at temperature
// zero, which also counts against the budget.
func (c *Caller) CompleteJSON(ctx context.Context, prompt string, out any, required ...string) error {
	raw, err := c.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	derr := decodeReply(raw, out, required)
	if derr == nil {
		return nil
	}
	log.Warn().Err(derr).Str("model", c.Model).Int("reply_len", len(raw)).Msg("unusable model reply; requesting repair")
	fixed, err := c.complete(ctx, repairPrompt(raw, prompt), 0)
	if err != nil {
		return fmt.Errorf("repair call: %w", err)
	}
	if derr := decodeReply(fixed, out, required); derr != nil {
		return fmt.Errorf("%w: %v: %s", ErrUnparseable, derr, preview(fixed))
	}
	return nil
}

// decodeReply parses text leniently, checks the required keys and decodes
// the normalized object into out.
func decodeReply(text string, out any, required []string) error {
	payload, ok := parseLoose(text)
	if !ok {
		return errors.New("no JSON in reply")
	}
	switch payload.(type) {
	case map[string]any, []any:
	default:
		if len(required) > 0 {
			return fmt.Errorf("reply is a JSON %T, not an object", payload)
		}
	}
	obj := Normalize(payload)
	for _, k := range required {
		if v, ok := obj[k]; !ok || v == nil {
			return fmt.Errorf("missing key %q", k)
		}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode normalized payload: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

func repairPrompt(response, prompt string) string {
	return "You must output ONLY valid JSON that matches the output schema. " +
		"Do not include extra text. Fix this response and return JSON only.\n\n" +
		"Response: " + response + "\n\n" +
		"Original prompt: " + prompt
}

func (c *Caller) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	if c.Client == nil || strings.TrimSpace(c.Model) == "" {
		return "", errors.New("llm caller not configured")
	}
	if c.Budget != nil && !c.Budget.TakeLLMCall() {
		return "", fmt.Errorf("llm call: %w", budget.ErrExhausted)
	}
	attempts := c.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	log.Debug().Str("model", c.Model).Int("prompt_len", len(prompt)).Msg("calling model")

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.pace(ctx); err != nil {
			return "", err
		}
		resp, err := c.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: SystemMessage},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: temperature,
			MaxTokens:   c.MaxTokens,
			N:           1,
		})
		if err == nil && len(resp.Choices) == 0 {
			err = ErrNoChoices
		}
		if err == nil {
			return resp.Choices[0].Message.Content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		log.Warn().Err(err).Str("model", c.Model).Int("attempt", attempt).Int("max", attempts).Msg("model call failed")
	}
	return "", fmt.Errorf("llm request failed after %d attempts: %w", attempts, lastErr)
}

// pace waits until MinDelay has passed since the previous request.
func (c *Caller) pace(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Duration(0)
	if c.MinDelay > 0 && !c.lastCall.IsZero() {
		wait = c.MinDelay - time.Since(c.lastCall)
	}
	c.mu.Unlock()
	if wait > 0 {
		sleep := c.Sleep
		if sleep == nil {
			sleep = sleepCtx
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.lastCall = time.Now()
	c.mu.Unlock()
	return nil
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
