package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file schema. The same keys are
// accepted in TOML, YAML and JSON. Nil pointers and empty strings mean unset.
type FileConfig struct {
	MaxResults             *int  `json:"max_results"`
	MinScore               *int  `json:"min_score"`
	MinContentChars        *int  `json:"min_content_chars"`
	MaxQueriesPerIteration *int  `json:"max_queries_per_iteration"`
	DryRun                 *bool `json:"dry_run"`

	Budget struct {
		MaxLLMCalls         *int `json:"max_llm_calls"`
		MaxSearchIterations *int `json:"max_search_iterations"`
	} `json:"budget"`

	Output struct {
		ResultsJSON  string `json:"results_json"`
		ResultsCSV   string `json:"results_csv"`
		ResultsPDF   string `json:"results_pdf"`
		CachePath    string `json:"cache_path"`
		CacheBackend string `json:"cache_backend"`
	} `json:"output"`

	LLM struct {
		Provider        string   `json:"provider"`
		BaseURL         string   `json:"base_url"`
		Model           string   `json:"model"`
		APIKey          string   `json:"api_key"`
		Temperature     *float64 `json:"temperature"`
		MaxRetries      *int     `json:"max_retries"`
		MinDelaySeconds *float64 `json:"min_delay_seconds"`
		MaxJobChars     *int     `json:"max_job_chars"`
	} `json:"llm"`

	Search struct {
		Provider              string   `json:"provider"`
		BraveEndpoint         string   `json:"brave_endpoint"`
		SearxURL              string   `json:"searx_url"`
		SearxKey              string   `json:"searx_key"`
		File                  string   `json:"file"`
		ResultsPerQuery       *int     `json:"results_per_query"`
		Pages                 *int     `json:"pages"`
		RequestTimeoutSeconds *float64 `json:"request_timeout_seconds"`
		MinDelaySeconds       *float64 `json:"min_delay_seconds"`
		MaxAttempts           *int     `json:"max_attempts"`
	} `json:"search"`

	Fetch struct {
		MaxAttempts    *int     `json:"max_attempts"`
		TimeoutSeconds *float64 `json:"timeout_seconds"`
		UserAgent      string   `json:"user_agent"`
		Extractor      string   `json:"extractor"`
		BypassCache    *bool    `json:"bypass_cache"`
		MaxRedirects   *int     `json:"max_redirects"`
	} `json:"fetch"`

	Cache struct {
		Dir         string `json:"dir"`
		MaxAge      string `json:"max_age"`
		StrictPerms *bool  `json:"strict_perms"`
	} `json:"cache"`

	Domains struct {
		Allow []string `json:"allow"`
		Deny  []string `json:"deny"`
	} `json:"domains"`
}

// configCandidates are probed in order when no config path is given.
var configCandidates = []string{"pyproject.toml", "jobcrawler.toml", "jobcrawler.yaml", "jobcrawler.yml", "jobcrawler.json"}

// DiscoverConfigFile returns the first config file present in root, or "".
func DiscoverConfigFile(root string) string {
	for _, name := range configCandidates {
		p := filepath.Join(root, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// LoadConfigFile reads a TOML, YAML or JSON file into FileConfig. A TOML file
// with a [tool.job_crawler] table uses that table; otherwise the document root
// is the configuration. When profile is set, the matching entry under
// "profiles" is deep-merged over the base before decoding.
func LoadConfigFile(path, profile string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	raw, err := decodeRaw(path, b)
	if err != nil {
		return fc, err
	}
	section := configSection(raw)
	profiles, _ := section["profiles"].(map[string]any)
	base := make(map[string]any, len(section))
	for k, v := range section {
		if k != "profiles" {
			base[k] = v
		}
	}
	if name := strings.TrimSpace(profile); name != "" {
		p, ok := profiles[name].(map[string]any)
		if !ok {
			return fc, fmt.Errorf("config: unknown profile %q", name)
		}
		base = mergeMaps(base, p)
	}
	// Round-trip through JSON so all three formats share one set of tags.
	data, err := json.Marshal(base)
	if err != nil {
		return fc, fmt.Errorf("encode config: %w", err)
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("decode config %s: %w", path, err)
	}
	return fc, nil
}

func decodeRaw(path string, b []byte) (map[string]any, error) {
	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try TOML, then YAML (a superset of JSON)
		if terr := toml.Unmarshal(b, &raw); terr != nil {
			raw = map[string]any{}
			if yerr := yaml.Unmarshal(b, &raw); yerr != nil {
				return nil, fmt.Errorf("parse config: %v (toml) / %v (yaml)", terr, yerr)
			}
		}
	}
	return raw, nil
}

// configSection picks [tool.job_crawler] out of a pyproject-style document.
// A document with a "tool" table but no job_crawler entry yields an empty
// section.
func configSection(raw map[string]any) map[string]any {
	tool, ok := raw["tool"].(map[string]any)
	if !ok {
		return raw
	}
	if s, ok := tool["job_crawler"].(map[string]any); ok {
		return s
	}
	return map[string]any{}
}

// mergeMaps returns base with over applied on top. Nested tables merge key
// by key; any other value in over replaces the base value.
func mergeMaps(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := out[k].(map[string]any); ok {
				out[k] = mergeMaps(bv, ov)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// ApplyFileConfig overlays every value set in fc onto cfg.
func ApplyFileConfig(cfg *Config, fc FileConfig) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	setInt(&cfg.MaxResults, fc.MaxResults)
	setInt(&cfg.MinScore, fc.MinScore)
	setInt(&cfg.MinContentChars, fc.MinContentChars)
	setInt(&cfg.MaxQueriesPerIteration, fc.MaxQueriesPerIteration)
	if fc.DryRun != nil {
		cfg.DryRun = *fc.DryRun
	}

	setInt(&cfg.MaxLLMCalls, fc.Budget.MaxLLMCalls)
	setInt(&cfg.MaxSearchIterations, fc.Budget.MaxSearchIterations)

	setString(&cfg.ResultsJSON, fc.Output.ResultsJSON)
	setString(&cfg.ResultsCSV, fc.Output.ResultsCSV)
	setString(&cfg.ResultsPDF, fc.Output.ResultsPDF)
	setString(&cfg.SeenPath, fc.Output.CachePath)
	setString(&cfg.SeenBackend, fc.Output.CacheBackend)

	setString(&cfg.LLMProvider, fc.LLM.Provider)
	setString(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	setString(&cfg.LLMModel, fc.LLM.Model)
	setString(&cfg.LLMAPIKey, fc.LLM.APIKey)
	if fc.LLM.Temperature != nil {
		cfg.LLMTemperature = *fc.LLM.Temperature
	}
	setInt(&cfg.LLMMaxRetries, fc.LLM.MaxRetries)
	setSeconds(&cfg.LLMMinDelay, fc.LLM.MinDelaySeconds)
	setInt(&cfg.MaxJobChars, fc.LLM.MaxJobChars)

	setString(&cfg.SearchProvider, fc.Search.Provider)
	setString(&cfg.BraveEndpoint, fc.Search.BraveEndpoint)
	setString(&cfg.SearxURL, fc.Search.SearxURL)
	setString(&cfg.SearxKey, fc.Search.SearxKey)
	setString(&cfg.SearchFile, fc.Search.File)
	setInt(&cfg.ResultsPerQuery, fc.Search.ResultsPerQuery)
	setInt(&cfg.SearchPages, fc.Search.Pages)
	setSeconds(&cfg.SearchTimeout, fc.Search.RequestTimeoutSeconds)
	setSeconds(&cfg.SearchMinDelay, fc.Search.MinDelaySeconds)
	setInt(&cfg.SearchMaxAttempts, fc.Search.MaxAttempts)

	setInt(&cfg.FetchMaxAttempts, fc.Fetch.MaxAttempts)
	setSeconds(&cfg.FetchTimeout, fc.Fetch.TimeoutSeconds)
	setString(&cfg.UserAgent, fc.Fetch.UserAgent)
	setString(&cfg.Extractor, fc.Fetch.Extractor)
	if fc.Fetch.BypassCache != nil {
		cfg.FetchBypassCache = *fc.Fetch.BypassCache
	}
	setInt(&cfg.FetchMaxRedirects, fc.Fetch.MaxRedirects)

	setString(&cfg.CacheDir, fc.Cache.Dir)
	if s := strings.TrimSpace(fc.Cache.MaxAge); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: cache.max_age: %w", err)
		}
		cfg.CacheMaxAge = d
	}
	if fc.Cache.StrictPerms != nil {
		cfg.CacheStrictPerms = *fc.Cache.StrictPerms
	}

	if len(fc.Domains.Allow) > 0 {
		cfg.DomainAllow = append([]string{}, fc.Domains.Allow...)
	}
	if len(fc.Domains.Deny) > 0 {
		cfg.DomainDeny = append([]string{}, fc.Domains.Deny...)
	}
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, v *float64) {
	if v != nil {
		*dst = time.Duration(*v * float64(time.Second))
	}
}
