// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Cache     CacheConfig     `yaml:"cache"`
	Providers ProvidersConfig `yaml:"providers"`
	Stream    StreamConfig    `yaml:"stream"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the session database, the vector index
// snapshot, the answer-cache snapshot, and the pre-seeded FAQ file.
type StorageConfig struct {
	SessionDBPath     string `yaml:"session_db_path"`
	VectorIndexPath   string `yaml:"vector_index_path"`
	CacheSnapshotPath string `yaml:"cache_snapshot_path"`
	FAQPath           string `yaml:"faq_path"`
}

// EmbeddingConfig holds ONNX embedder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds similarity search and context assembly settings.
// ConfidenceThreshold is a cosine-similarity cutoff: when the top hit scores
// at or above it, reranking is skipped. It is metric-dependent and tunable.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	ConfidentKeep       int     `yaml:"confident_keep"`
	RerankKeep          int     `yaml:"rerank_keep"`
	MaxContextChars     int     `yaml:"max_context_chars"`
}

// RerankConfig holds the external cross-encoder service settings.
// An empty endpoint disables reranking entirely.
type RerankConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	TTLHours       int     `yaml:"ttl_hours"`
	MaxEntries     int     `yaml:"max_entries"`
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	PersistEvery   int     `yaml:"persist_every"`
}

// ProviderConfig holds one generation backend's settings.
type ProviderConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Model    string   `yaml:"model"`
	APIKey   string   `yaml:"api_key"`
	APIKeys  []string `yaml:"api_keys"`
}

// ProvidersConfig holds the ordered generation backends. Accelerator is
// probed first, then Cloud, then Local.
type ProvidersConfig struct {
	Accelerator ProviderConfig `yaml:"accelerator"`
	Cloud       ProviderConfig `yaml:"cloud"`
	Local       ProviderConfig `yaml:"local"`
}

// StreamConfig holds stream bridge settings.
type StreamConfig struct {
	BufferSize           int `yaml:"buffer_size"`
	WorkerTimeoutSeconds int `yaml:"worker_timeout_seconds"`
}

// Load reads and parses the config file at path, merges environment-supplied
// secrets, expands paths, and applies defaults. Returns an error if the file
// cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.SessionDBPath = expandPath(cfg.Storage.SessionDBPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.CacheSnapshotPath = expandPath(cfg.Storage.CacheSnapshotPath, configDir)
	cfg.Storage.FAQPath = expandPath(cfg.Storage.FAQPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	return &cfg, nil
}

// applyEnv merges environment-supplied credentials and endpoints over the
// file values. The file is the shape; the environment carries the secrets.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KOTAE_ACCELERATOR_KEY"); v != "" {
		cfg.Providers.Accelerator.APIKey = v
	}
	if v := os.Getenv("KOTAE_ACCELERATOR_ENDPOINT"); v != "" {
		cfg.Providers.Accelerator.Endpoint = v
	}
	if v := os.Getenv("KOTAE_CLOUD_KEY"); v != "" {
		cfg.Providers.Cloud.APIKeys = append([]string{v}, cfg.Providers.Cloud.APIKeys...)
	}
	// Numbered backup keys, matching how operators provision key pools.
	for i := 1; i <= 5; i++ {
		if v := os.Getenv(fmt.Sprintf("KOTAE_CLOUD_KEY_%d", i)); v != "" {
			cfg.Providers.Cloud.APIKeys = append(cfg.Providers.Cloud.APIKeys, v)
		}
	}
	if v := os.Getenv("KOTAE_OLLAMA_URL"); v != "" {
		cfg.Providers.Local.Endpoint = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
