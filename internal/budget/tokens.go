package budget

import (
	"math"
	"strings"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to a conservative default.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	// OpenRouter style ids carry a vendor prefix ("openai/gpt-4o").
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		if v, ok := knownModelMax[name[i+1:]]; ok {
			return v
		}
	}
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.HasPrefix(name, "claude"):
		return 200_000
	case strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// RemainingContext computes the remaining input token budget given a model,
// a reservation for output generation, and the estimated prompt tokens.
// The result is never negative.
func RemainingContext(modelName string, reservedForOutput int, promptTokens int) int {
	maxCtx := ModelContextTokens(modelName)
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	remaining := maxCtx - reservedForOutput - promptTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HeadroomTokens returns the larger of 5% of the model context or 512 tokens.
func HeadroomTokens(modelName string) int {
	max := ModelContextTokens(modelName)
	dyn := int(math.Ceil(float64(max) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// RemainingContextWithHeadroom computes remaining tokens after accounting for
// output reservation and headroom for the given model.
func RemainingContextWithHeadroom(modelName string, reservedForOutput int, promptTokens int) int {
	return RemainingContext(modelName, reservedForOutput+HeadroomTokens(modelName), promptTokens)
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4.1":       1_000_000,
	"gpt-4.1-mini":  1_000_000,
	"gpt-3.5-turbo": 16_384,

	"claude-3-5-sonnet": 200_000,
	"claude-3-5-haiku":  200_000,

	"llama-3":                 8_192,
	"llama-3.1":               128_000,
	"llama-3.3-70b-versatile": 128_000,

	// OpenRouter's free router picks a model per request; assume the smallest
	// window it routes to.
	"openrouter/free": 32_768,
	"free":            32_768,
}
