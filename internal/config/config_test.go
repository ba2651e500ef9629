package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_CHAT_MODEL", "")
	t.Setenv("OPENAI_EMBEDDINGS_MODEL", "")
	t.Setenv("RETRIEVAL_TOP_K", "")
	t.Setenv("COMPLETION_MAX_RETRIES", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("expected openai provider, got %s", cfg.AI.Provider)
	}
	if cfg.AI.Model != "gpt-4o-mini" {
		t.Fatalf("expected default model gpt-4o-mini, got %s", cfg.AI.Model)
	}
	if cfg.AI.MaxRetries != 0 {
		t.Fatalf("expected no retries by default, got %d", cfg.AI.MaxRetries)
	}
	if cfg.Embedding.Model != "text-embedding-3-large" {
		t.Fatalf("unexpected embeddings model %s", cfg.Embedding.Model)
	}
	if cfg.Vector.TopK != 3 {
		t.Fatalf("expected topK 3, got %d", cfg.Vector.TopK)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h token ttl, got %s", cfg.Auth.TokenTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("OPENAI_CHAT_MODEL", "gpt-4.1")
	t.Setenv("RETRIEVAL_TOP_K", "5")
	t.Setenv("COMPLETION_MAX_RETRIES", "2")
	t.Setenv("VECTOR_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %s", cfg.Server.Addr)
	}
	if cfg.AI.Model != "gpt-4.1" {
		t.Fatalf("unexpected model %s", cfg.AI.Model)
	}
	if cfg.Vector.TopK != 5 || cfg.Vector.Backend != VectorMemory {
		t.Fatalf("unexpected vector config %+v", cfg.Vector)
	}
	if cfg.AI.MaxRetries != 2 {
		t.Fatalf("unexpected retries %d", cfg.AI.MaxRetries)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"RETRIEVAL_TOP_K":        "0",
		"LLM_PROVIDER":           "bard",
		"COMPLETION_MAX_RETRIES": "9",
		"COMPLETION_TIMEOUT":     "soon",
		"VECTOR_BACKEND":         "faiss",
		"JWT_SECRET":             "short",
		"INGEST_CHUNK_OVERLAP":   "5000",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	if (AIConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini"}).Enabled() {
		t.Fatal("openai without key should be disabled")
	}
	if !(AIConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k"}).Enabled() {
		t.Fatal("openai with key should be enabled")
	}
	if !(AIConfig{Provider: ProviderArk, Model: "ep-1", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Fatal("ark with AK/SK should be enabled")
	}
}
