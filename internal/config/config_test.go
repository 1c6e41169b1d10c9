package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func validConfig() Config {
	cfg := Config{Embedding: EmbeddingConfig{Provider: "hash"}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 70000

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_ChunkerOverlap(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"original defaults", 1000, 30, false},
		{"zero overlap", 10, 0, false},
		{"overlap equals size", 10, 10, true},
		{"overlap exceeds size", 10, 20, true},
		{"negative overlap", 10, -1, true},
		{"negative size", -5, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Chunker.Size = tc.size
			cfg.Chunker.Overlap = tc.overlap

			err := cfg.Validate()
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_Enums(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"storage driver", func(c *Config) { c.Storage.Driver = "s3" }},
		{"index kind", func(c *Config) { c.Index.Kind = "ivf" }},
		{"metric", func(c *Config) { c.Index.Metric = "dot" }},
		{"reingest", func(c *Config) { c.Index.Reingest = "merge" }},
		{"provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"openai without model", func(c *Config) { c.Embedding.Provider = "openai" }},
		{"default k above max", func(c *Config) { c.Index.DefaultK = 500 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !IsInvalid(err) {
				t.Fatalf("expected invalid config error, got %v", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Storage.Driver != "file" {
		t.Errorf("expected Driver=file, got %q", cfg.Storage.Driver)
	}
	if cfg.Chunker.Size != 1000 || cfg.Chunker.Overlap != 30 {
		t.Errorf("expected chunker 1000/30, got %d/%d", cfg.Chunker.Size, cfg.Chunker.Overlap)
	}
	if cfg.ChunkSeparator() != "\n" {
		t.Errorf("expected newline separator, got %q", cfg.ChunkSeparator())
	}
	if cfg.Index.DefaultK != 4 {
		t.Errorf("expected DefaultK=4, got %d", cfg.Index.DefaultK)
	}
	if cfg.Index.Reingest != "append" {
		t.Errorf("expected Reingest=append, got %q", cfg.Index.Reingest)
	}
	if cfg.Index.HNSWM != 16 || cfg.Index.HNSWEFConstruction != 200 || cfg.Index.HNSWEFSearch != 100 {
		t.Errorf("unexpected hnsw defaults: %+v", cfg.Index)
	}
	if cfg.Upload.MaxBytes != 32<<20 {
		t.Errorf("expected MaxBytes=32MiB, got %d", cfg.Upload.MaxBytes)
	}
	if cfg.Cache.Enabled() {
		t.Error("cache must be disabled without addrs")
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	sep := ""
	cfg := Config{
		HTTP:    HTTPConfig{Port: 9000, ReadTimeoutSec: 5},
		Index:   IndexConfig{Kind: "hnsw", HNSWM: 8},
		Chunker: ChunkerConfig{Size: 200, Overlap: 20, Separator: &sep},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 || cfg.HTTP.ReadTimeoutSec != 5 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.Index.Kind != "hnsw" || cfg.Index.HNSWM != 8 {
		t.Errorf("index overridden: %+v", cfg.Index)
	}
	if cfg.ChunkSeparator() != "" {
		t.Errorf("explicit empty separator must survive defaults, got %q", cfg.ChunkSeparator())
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("RAGDEX_TEST_MODEL", "nomic-embed-text")

	data := []byte(`
embedding:
  provider: openai
  model: ${RAGDEX_TEST_MODEL}
  base_url: ${RAGDEX_TEST_UNSET:-http://localhost:11434/v1}
chunker:
  size: 500
  overlap: 50
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("expected expanded model, got %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("expected default base url, got %q", cfg.Embedding.BaseURL)
	}
	if cfg.Chunker.Size != 500 || cfg.Chunker.Overlap != 50 {
		t.Errorf("unexpected chunker: %+v", cfg.Chunker)
	}
}

func TestParse_RejectsBadOverlap(t *testing.T) {
	data := []byte("embedding:\n  provider: hash\nchunker:\n  size: 100\n  overlap: 100\n")
	if _, err := Parse(data); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte("embedding:\n  provider: hash\n  dimensions: 64\n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Embedding.Dimensions != 64 {
		t.Errorf("expected dimensions=64, got %d", cfg.Embedding.Dimensions)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
