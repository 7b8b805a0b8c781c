package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `
provider:
  app_id: "id"
  app_key: "key"
embedding:
  api_key: "sk-test"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
provider:
  app_id: "abc"
  app_key: "def"
  country: DE
  page_size: 20
  max_pages: 2
  page_timeout: 3s
  requests_per_second: 0.5
  max_retries: 2
search:
  default_limit: 10
  exclude_title_keywords:
    - recruiter
embedding:
  type: ollama
  model: mxbai-embed-large
  dimension: 1024
  timeout: 20s
  cache_size: 0
store:
  path: /tmp/jobs.db
vector:
  type: qdrant
  url: http://localhost:6333/
  collection: jobs
  top_k: 8
retrieval:
  min_live: 3
  fanout: 2
  ingest_timeout: 1m
warm:
  interval: 2h
  terms:
    - go developer
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Country != "de" {
		t.Errorf("Provider.Country = %q, want de", cfg.Provider.Country)
	}
	if cfg.Provider.PageSize != 20 || cfg.Provider.MaxPages != 2 {
		t.Errorf("Provider paging = %d/%d, want 20/2", cfg.Provider.PageSize, cfg.Provider.MaxPages)
	}
	if cfg.Provider.PageTimeout != 3*time.Second {
		t.Errorf("PageTimeout = %v, want 3s", cfg.Provider.PageTimeout)
	}
	if cfg.Provider.RequestsPerSecond != 0.5 || cfg.Provider.MaxRetries != 2 {
		t.Errorf("Provider throttling = %+v", cfg.Provider)
	}
	if len(cfg.Search.ExcludeTitleKeywords) != 1 || cfg.Search.ExcludeTitleKeywords[0] != "recruiter" {
		t.Errorf("ExcludeTitleKeywords = %v", cfg.Search.ExcludeTitleKeywords)
	}
	if cfg.Search.EmployerLimit != 100 {
		t.Errorf("EmployerLimit = %d, want default 100", cfg.Search.EmployerLimit)
	}
	if cfg.Embedding.Type != "ollama" || cfg.Embedding.BaseURL != defaultOllamaURL || cfg.Embedding.Model != "mxbai-embed-large" {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.Embedding.CacheSize != 0 {
		t.Errorf("CacheSize = %d, want explicit 0", cfg.Embedding.CacheSize)
	}
	if cfg.Vector.Type != "qdrant" || cfg.Vector.URL != "http://localhost:6333" || cfg.Vector.TopK != 8 {
		t.Errorf("Vector = %+v", cfg.Vector)
	}
	if cfg.Retrieval.MinLive != 3 || cfg.Retrieval.PageSize != 10 || cfg.Retrieval.IngestTimeout != time.Minute {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Warm.Interval != 2*time.Hour || len(cfg.Warm.Terms) != 1 {
		t.Errorf("Warm = %+v", cfg.Warm)
	}
	if cfg.Warm.Country != "de" {
		t.Errorf("Warm.Country = %q, want provider country", cfg.Warm.Country)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Type != "adzuna" || cfg.Provider.BaseURL != defaultAdzunaURL || cfg.Provider.Country != "gb" {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if cfg.Provider.PageSize != 50 || cfg.Provider.MaxPages != 3 {
		t.Errorf("Provider paging = %d/%d, want 50/3", cfg.Provider.PageSize, cfg.Provider.MaxPages)
	}
	if cfg.Embedding.Type != "openai" || cfg.Embedding.Model != defaultOpenAIModel {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.Embedding.CacheSize != defaultCacheEntries {
		t.Errorf("CacheSize = %d, want %d", cfg.Embedding.CacheSize, defaultCacheEntries)
	}
	if cfg.Store.Type != "sqlite" || cfg.Store.Path != defaultStorePath {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Vector.Type != "sqlite" || cfg.Vector.TopK != 5 {
		t.Errorf("Vector = %+v", cfg.Vector)
	}
	if cfg.Retrieval.MinLive != 5 || cfg.Retrieval.PageSize != 10 || cfg.Retrieval.Fanout != 4 {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.IngestTimeout != 2*time.Minute {
		t.Errorf("IngestTimeout = %v, want 2m", cfg.Retrieval.IngestTimeout)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("ADZUNA_APP_ID", "env-id")
	t.Setenv("ADZUNA_APP_KEY", "env-key")
	path := writeConfig(t, `
provider:
  app_id: ${ADZUNA_APP_ID}
  app_key: ${ADZUNA_APP_KEY}
embedding:
  type: ollama
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.AppID != "env-id" || cfg.Provider.AppKey != "env-key" {
		t.Errorf("credentials = %q/%q, want env values", cfg.Provider.AppID, cfg.Provider.AppKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "provider: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"store:\n  timeout: soon\n"))
	if err == nil {
		t.Fatal("Load: expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "store.timeout") {
		t.Errorf("error %q should name the field", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing credentials", "embedding:\n  api_key: x\n"},
		{"unknown provider", "provider:\n  type: indeed\n  app_id: a\n  app_key: b\nembedding:\n  api_key: x\n"},
		{"page size too large", "provider:\n  app_id: a\n  app_key: b\n  page_size: 51\nembedding:\n  api_key: x\n"},
		{"openai without key", "provider:\n  app_id: a\n  app_key: b\n"},
		{"unknown embedding type", "provider:\n  app_id: a\n  app_key: b\nembedding:\n  type: cohere\n"},
		{"qdrant without url", minimalConfig + "vector:\n  type: qdrant\n"},
		{"postgres without dsn", minimalConfig + "vector:\n  type: postgres\n"},
		{"sqlite vectors on memory store", minimalConfig + "store:\n  type: memory\n"},
		{"unknown vector type", minimalConfig + "vector:\n  type: faiss\n"},
		{"warm interval too short", minimalConfig + "warm:\n  interval: 10s\n  terms: [go]\n"},
		{"negative min_live", minimalConfig + "retrieval:\n  min_live: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected validation error")
			}
		})
	}
}

func TestLoad_ExplicitZeroMinLive(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"retrieval:\n  min_live: 0\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.MinLive != 0 {
		t.Errorf("MinLive = %d, want explicit 0 kept", cfg.Retrieval.MinLive)
	}
	if cfg.Retrieval.PageSize != 10 {
		t.Errorf("PageSize = %d, want default 10", cfg.Retrieval.PageSize)
	}
}

func TestLoad_MemoryBackends(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"store:\n  type: memory\nvector:\n  type: memory\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Type != "memory" || cfg.Vector.Type != "memory" {
		t.Errorf("backends = %s/%s, want memory/memory", cfg.Store.Type, cfg.Vector.Type)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvPath, "")
	if got := ResolvePath(""); got != "config.yaml" {
		t.Errorf("ResolvePath() = %q, want config.yaml", got)
	}

	t.Setenv(EnvPath, "/etc/workmatch.yaml")
	if got := ResolvePath(""); got != "/etc/workmatch.yaml" {
		t.Errorf("ResolvePath() = %q, want env value", got)
	}
	if got := ResolvePath("local.yaml"); got != "local.yaml" {
		t.Errorf("ResolvePath(flag) = %q, want flag value", got)
	}
}
