package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chat(t *testing.T, srv *httptest.Server, prompt string) (int, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"model": "m",
		"messages": []map[string]string{
			{"role": "system", "content": "Respond only with valid JSON."},
			{"role": "user", "content": prompt},
		},
	})
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, ""
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Choices) != 1 {
		t.Fatalf("decode: %v (%d choices)", err, len(out.Choices))
	}
	return resp.StatusCode, out.Choices[0].Message.Content
}

func TestStub_PlannerAndEvaluation(t *testing.T) {
	srv := httptest.NewServer(newMux("stub"))
	defer srv.Close()

	_, content := chat(t, srv, `{"task":"Generate search queries for job hunting.","output_schema":{"queries":["string"]}}`)
	var plan struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(content), &plan); err != nil || len(plan.Queries) == 0 {
		t.Fatalf("planner reply %q: %v", content, err)
	}

	_, content = chat(t, srv, `{"task":"Evaluate job relevance to the CV.","cv":"golang kubernetes postgres","job_description":"We use Golang and Kubernetes."}`)
	var ev struct {
		Score  int    `json:"score"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &ev); err != nil {
		t.Fatalf("evaluation reply %q: %v", content, err)
	}
	if ev.Score != 66 || ev.Reason == "" {
		t.Fatalf("unexpected evaluation %+v", ev)
	}

	if code, _ := chat(t, srv, "hello"); code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400 for an unknown prompt", code)
	}
}

func TestStub_Models(t *testing.T) {
	srv := httptest.NewServer(newMux("stub-model"))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Data) != 1 || out.Data[0].ID != "stub-model" {
		t.Fatalf("models: %+v err=%v", out, err)
	}
}

func TestOverlapScore(t *testing.T) {
	if got := overlapScore("", "anything"); got != 0 {
		t.Fatalf("empty cv scored %d", got)
	}
	if got := overlapScore("Golang, Golang.", "golang"); got != 100 {
		t.Fatalf("got %d, want 100", got)
	}
}
