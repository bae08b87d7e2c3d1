package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ProfileEnv selects a config profile when --profile is not given.
const ProfileEnv = "JOB_CRAWLER_PROFILE"

// ApplyEnvOverrides overrides cfg fields with environment variables that are
// set. Env takes precedence over the config file; explicit flags are applied
// afterwards and win over both.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	setEnvString(&cfg.LLMProvider, "LLM_PROVIDER")
	setEnvString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setEnvString(&cfg.LLMModel, "LLM_MODEL")
	setEnvString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setEnvString(&cfg.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	setEnvString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")

	setEnvString(&cfg.SearchProvider, "SEARCH_PROVIDER")
	setEnvString(&cfg.BraveAPIKey, "BRAVE_API_KEY")
	setEnvString(&cfg.SearxURL, "SEARX_URL")
	if cfg.SearxURL == "" {
		setEnvString(&cfg.SearxURL, "SEARXNG_URL")
	}
	setEnvString(&cfg.SearxKey, "SEARX_KEY")
	setEnvString(&cfg.SearchFile, "SEARCH_FILE")

	setEnvString(&cfg.CacheDir, "CACHE_DIR")
	if s := strings.TrimSpace(os.Getenv("CACHE_MAX_AGE")); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.CacheMaxAge = d
		}
	}
	if s := strings.TrimSpace(os.Getenv("MAX_RESULTS")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.MaxResults = n
		}
	}
	setEnvString(&cfg.LogLevel, "LOG_LEVEL")

	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, envKey string) {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			switch s {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.FetchBypassCache, "FETCH_BYPASS_CACHE")
}

func setEnvString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
