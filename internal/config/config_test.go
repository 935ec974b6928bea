package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if !cfg.Search.SerpAPI.Enabled {
		t.Error("expected serpapi to be enabled by default")
	}
	if cfg.Search.DaysBack != 2 {
		t.Errorf("expected days_back 2, got %d", cfg.Search.DaysBack)
	}
	if cfg.Search.MaxRawItems != 50 {
		t.Errorf("expected max_raw_items 50, got %d", cfg.Search.MaxRawItems)
	}
	if cfg.Inference.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Inference.Provider)
	}
	if cfg.Historian.TopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Historian.TopK)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
inference:
  provider: anthropic
pipeline:
  workers: 4
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Inference.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %q", cfg.Inference.Provider)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Pipeline.Workers)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Inference.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Inference.OllamaURL)
	}
	if cfg.Historian.Collection != "risk_archetypes" {
		t.Errorf("expected default collection, got %q", cfg.Historian.Collection)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Historian.EmbeddingDim != 768 {
		t.Errorf("expected embedding_dim 768 from file, got %d", cfg.Historian.EmbeddingDim)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
