package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Search    Search    `yaml:"search"`
	Inference Inference `yaml:"inference"`
	Historian Historian `yaml:"historian"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Archive   Archive   `yaml:"archive"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type Search struct {
	SerpAPI     SerpAPIConfig `yaml:"serpapi"`
	NewsRSS     NewsRSSConfig `yaml:"google_news_rss"`
	DaysBack    int           `yaml:"days_back"`
	MaxRawItems int           `yaml:"max_raw_items"`
}

type SerpAPIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type NewsRSSConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Inference struct {
	Provider        string `yaml:"provider"` // ollama | openai | anthropic
	Model           string `yaml:"model"`
	OllamaURL       string `yaml:"ollama_url"`
	EmbeddingModel  string `yaml:"embedding_model"`
	OpenAIModel     string `yaml:"openai_model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	AnthropicModel  string `yaml:"anthropic_model"`
	AnthropicKeyEnv string `yaml:"anthropic_key_env"`
	MaxTokens       int    `yaml:"max_tokens"`
}

type Historian struct {
	IndexURL     string `yaml:"index_url"`
	Collection   string `yaml:"collection"`
	EmbeddingDim int    `yaml:"embedding_dim"`
	TopK         int    `yaml:"top_k"`
}

type Pipeline struct {
	Workers int `yaml:"workers"`
}

type Archive struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for sentinel.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "sentinel")
}

// DataDir returns the XDG data directory for sentinel.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "sentinel")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/sentinel/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'sentinel init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Search: Search{
			SerpAPI: SerpAPIConfig{
				Enabled:   true,
				APIKeyEnv: "SERPAPI_API_KEY",
			},
			NewsRSS:     NewsRSSConfig{Enabled: true},
			DaysBack:    2,
			MaxRawItems: 50,
		},
		Inference: Inference{
			Provider:        "ollama",
			Model:           "qwen2.5:7b",
			OllamaURL:       "http://localhost:11434",
			EmbeddingModel:  "nomic-embed-text",
			OpenAIModel:     "gpt-4o-mini",
			APIKeyEnv:       "OPENAI_API_KEY",
			AnthropicModel:  "claude-3-5-sonnet-latest",
			AnthropicKeyEnv: "ANTHROPIC_API_KEY",
			MaxTokens:       2000,
		},
		Historian: Historian{
			IndexURL:     "http://localhost:8900",
			Collection:   "risk_archetypes",
			EmbeddingDim: 768,
			TopK:         3,
		},
		Pipeline: Pipeline{Workers: 1},
		Archive:  Archive{Region: "us-east-1"},
		Logging:  Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
