package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLLMCache_SaveGet(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	key := KeyFrom("model", "prompt")
	data := []byte(`{"score":81,"reason":"fits"}`)
	if err := c.Save(context.Background(), key, data); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if string(got) != string(data) {
		t.Fatalf("mismatch: %s", got)
	}
}

func TestLLMCache_Miss(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	_, ok, err := c.Get(context.Background(), KeyFrom("m", "absent"))
	if err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
}

func TestKeyFrom_DependsOnModel(t *testing.T) {
	if KeyFrom("a", "p") == KeyFrom("b", "p") {
		t.Fatal("keys for different models must differ")
	}
}

func TestLLMCache_StrictPermsAndPurge(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "llm")
	c := &LLMCache{Dir: dir, StrictPerms: true}
	key := KeyFrom("model", "prompt")
	if err := c.Save(context.Background(), key, []byte(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	finfo, err := os.Stat(filepath.Join(dir, key+".json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := finfo.Mode() & 0o777; got != 0o600 {
		t.Fatalf("file mode = %o, want 0600", got)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, key+".json"), old, old); err != nil {
		t.Fatal(err)
	}
	removed, err := PurgeLLMCacheByAge(dir, 24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removal, removed=%d err=%v", removed, err)
	}
}
