// Command openai-stub serves a minimal OpenAI-compatible API for manual
// end-to-end crawls without a real model. Query-planning prompts get a fixed
// list of job searches; evaluation prompts get a score derived from keyword
// overlap between the CV and the job text.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, newMux(model)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func newMux(model string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		var doc map[string]any
		if err := json.Unmarshal([]byte(prompt), &doc); err != nil {
			// Repair prompts quote the previous reply as plain text.
			doc = map[string]any{}
		}
		var reply any
		switch {
		case doc["job_description"] != nil:
			cv, _ := doc["cv"].(string)
			jd, _ := doc["job_description"].(string)
			score := overlapScore(cv, jd)
			reply = map[string]any{"score": score, "reason": "Keyword overlap between CV and listing."}
		case strings.Contains(prompt, "job_description"):
			reply = map[string]any{"score": 50, "reason": "Repaired evaluation."}
		case strings.Contains(prompt, "queries"):
			reply = map[string]any{"queries": []string{
				"golang developer jobs remote",
				"backend engineer jobs greenhouse",
				"site engineer careers lever",
			}}
		default:
			http.Error(w, "unexpected prompt", http.StatusBadRequest)
			return
		}
		b, _ := json.Marshal(reply)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": model,
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": string(b)}},
			},
		})
	})
	return mux
}

// overlapScore is the share of distinct CV words of four or more letters that
// also appear in the job text, scaled to 0..100.
func overlapScore(cv, job string) int {
	words := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(cv)) {
		w = strings.Trim(w, ".,;:()[]\"'!?")
		if len(w) >= 4 {
			words[w] = struct{}{}
		}
	}
	if len(words) == 0 {
		return 0
	}
	job = strings.ToLower(job)
	hits := 0
	for w := range words {
		if strings.Contains(job, w) {
			hits++
		}
	}
	return hits * 100 / len(words)
}
