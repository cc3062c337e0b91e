package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RAG.ChunkSize != 10 || cfg.RAG.TopK != 5 || *cfg.RAG.MaxRetries != 3 || cfg.RAG.BackoffBase != 2 {
		t.Fatalf("rag defaults = %+v", cfg.RAG)
	}
	if *cfg.RAG.MaxRateLimitRetries != 5 || cfg.RAG.RateLimitWaitSecs != 60 || cfg.InferenceLLM.MaxTokens != 500 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.EmbedLLM.Provider != ProviderOllama || cfg.VectorDB.Backend != BackendChromem {
		t.Fatalf("providers = %+v %+v", cfg.EmbedLLM, cfg.VectorDB)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
embed_llm:
  provider: openai
  key_env: MY_EMBED_KEY
rag:
  chunk_size: 4
  top_k: 3
vector_db:
  backend: pgvector
database:
  url: postgres://localhost/test
  driver: pq
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EmbedLLM.BaseURL != "https://api.openai.com/v1" || cfg.EmbedLLM.Model != "text-embedding-3-small" {
		t.Fatalf("embed defaults = %+v", cfg.EmbedLLM)
	}
	if cfg.RAG.ChunkSize != 4 || cfg.RAG.TopK != 3 || cfg.Database.Driver != DriverPQ {
		t.Fatalf("overrides lost: %+v %+v", cfg.RAG, cfg.Database)
	}
	t.Setenv("MY_EMBED_KEY", "Bearer secret")
	if cfg.EmbedLLM.APIKey() != "secret" {
		t.Fatalf("APIKey = %q", cfg.EmbedLLM.APIKey())
	}
}

func TestLoadConfigValidation(t *testing.T) {
	for name, body := range map[string]string{
		"provider": "embed_llm:\n  provider: cohere\n",
		"backend":  "vector_db:\n  backend: redis\n",
		"pg url":   "vector_db:\n  backend: pgvector\n",
		"driver":   "database:\n  driver: mysql\n",
		"negative": "rag:\n  top_k: -1\n",
		"retries":  "rag:\n  max_retries: -2\n",
		"base":     "rag:\n  backoff_base: 0.5\n",
		"yaml":     "rag: [",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAPIKeyPrefersInlineKey(t *testing.T) {
	t.Setenv("SOME_KEY", "from-env")
	c := LLMConfig{Key: "inline", KeyEnv: "SOME_KEY"}
	if c.APIKey() != "inline" {
		t.Fatalf("APIKey = %q", c.APIKey())
	}
}

func TestLoadConfigKeepsZeroRetries(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "rag:\n  max_retries: 0\n  max_rate_limit_retries: 0\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *cfg.RAG.MaxRetries != 0 || *cfg.RAG.MaxRateLimitRetries != 0 {
		t.Fatalf("retries = %d/%d, want 0/0", *cfg.RAG.MaxRetries, *cfg.RAG.MaxRateLimitRetries)
	}
}

func TestDefaultMatchesMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("Default() = %+v, want %+v", Default(), cfg)
	}
}
