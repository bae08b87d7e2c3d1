package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
)

// AnthropicProvider adapts the Anthropic Messages API to Client. System
// messages become the system prompt; user and assistant turns map directly.
type AnthropicProvider struct {
	client anthropic.Client
	// MaxTokens is used when the request leaves MaxTokens unset.
	MaxTokens int64
}

// NewAnthropicProvider creates a provider. baseURL and hc are optional.
func NewAnthropicProvider(apiKey, baseURL string, hc *http.Client) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	// Retries are owned by Caller.
	opts = append(opts, option.WithMaxRetries(0))
	return &AnthropicProvider{client: anthropic.NewClient(opts...), MaxTokens: 1024}
}

func (p *AnthropicProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var system []anthropic.TextBlockParam
	msgs := make([]anthropic.MessageParam, 0, len(request.Messages))
	for _, m := range request.Messages {
		switch m.Role {
		case openai.ChatMessageRoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case openai.ChatMessageRoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	maxTokens := int64(request.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = p.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	params.Temperature = anthropic.Float(float64(request.Temperature))

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("anthropic messages: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return openai.ChatCompletionResponse{
		ID:    resp.ID,
		Model: string(resp.Model),
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: sb.String()},
			FinishReason: openai.FinishReason(resp.StopReason),
		}},
		Usage: openai.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}
