package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Config holds the ragdex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Index     IndexConfig     `yaml:"index"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Generator GeneratorConfig `yaml:"generator"`
	Upload    UploadConfig    `yaml:"upload"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StorageConfig selects where the index snapshot and uploaded originals live.
type StorageConfig struct {
	Driver    string `yaml:"driver"` // file, sqlite (default: file)
	IndexPath string `yaml:"index_path"`
	FilesDir  string `yaml:"files_dir"`
}

// IndexConfig holds index store and engine settings.
type IndexConfig struct {
	Kind               string `yaml:"kind"`     // flat, hnsw
	Metric             string `yaml:"metric"`   // cosine, l2
	Reingest           string `yaml:"reingest"` // append, replace
	DefaultK           int    `yaml:"default_k"`
	MaxK               int    `yaml:"max_k"`
	HNSWM              int    `yaml:"hnsw_m"`
	HNSWEFConstruction int    `yaml:"hnsw_ef_construction"`
	HNSWEFSearch       int    `yaml:"hnsw_ef_search"`
	RecoverCorrupt     bool   `yaml:"recover_corrupt"`
}

// ChunkerConfig holds text splitter settings. A nil Separator means the
// default newline; an explicit empty string means pure rune windows.
type ChunkerConfig struct {
	Size      int     `yaml:"size"`
	Overlap   int     `yaml:"overlap"`
	Separator *string `yaml:"separator"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // openai, hash
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	BatchSize           int    `yaml:"batch_size"`
	Concurrency         int    `yaml:"concurrency"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// CacheConfig enables the Redis/Valkey embedding cache when Addrs is set.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a cache backend is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// GeneratorConfig holds answer generator settings.
type GeneratorConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// UploadConfig limits accepted uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables in data, decodes it, applies defaults and
// validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.IndexPath == "" {
		c.Storage.IndexPath = "data/index"
	}
	if c.Storage.FilesDir == "" {
		c.Storage.FilesDir = "data/uploads"
	}
	if c.Index.Kind == "" {
		c.Index.Kind = "flat"
	}
	if c.Index.Metric == "" {
		c.Index.Metric = "cosine"
	}
	if c.Index.Reingest == "" {
		c.Index.Reingest = "append"
	}
	if c.Index.DefaultK <= 0 {
		c.Index.DefaultK = 4
	}
	if c.Index.MaxK <= 0 {
		c.Index.MaxK = 100
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruction <= 0 {
		c.Index.HNSWEFConstruction = 200
	}
	if c.Index.HNSWEFSearch <= 0 {
		c.Index.HNSWEFSearch = 100
	}
	// Overlap only defaults alongside size so an explicit size never
	// inherits an overlap it cannot hold.
	if c.Chunker.Size == 0 {
		c.Chunker.Size = 1000
		if c.Chunker.Overlap == 0 {
			c.Chunker.Overlap = 30
		}
	}
	if c.Chunker.Separator == nil {
		sep := "\n"
		c.Chunker.Separator = &sep
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 256
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 2
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Generator.MaxTokens <= 0 {
		c.Generator.MaxTokens = 512
	}
	if c.Generator.TimeoutSec <= 0 {
		c.Generator.TimeoutSec = 60
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 32 << 20
	}
}

// ChunkSeparator returns the configured separator after defaults.
func (c *Config) ChunkSeparator() string {
	if c.Chunker.Separator == nil {
		return "\n"
	}
	return *c.Chunker.Separator
}

// Validate checks the configuration for correctness. Chunker misconfiguration
// wraps domain.ErrInvalidConfig so startup fails before any document is read.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("chunker.size must be positive, got %d: %w", c.Chunker.Size, domain.ErrInvalidConfig)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("chunker.overlap must be in [0, %d), got %d: %w",
			c.Chunker.Size, c.Chunker.Overlap, domain.ErrInvalidConfig)
	}
	if err := oneOf("storage.driver", c.Storage.Driver, "file", "sqlite"); err != nil {
		return err
	}
	if err := oneOf("index.kind", c.Index.Kind, "flat", "hnsw"); err != nil {
		return err
	}
	if err := oneOf("index.metric", c.Index.Metric, "cosine", "l2"); err != nil {
		return err
	}
	if err := oneOf("index.reingest", c.Index.Reingest, "append", "replace"); err != nil {
		return err
	}
	if c.Index.DefaultK > c.Index.MaxK {
		return fmt.Errorf("index.default_k (%d) exceeds index.max_k (%d): %w",
			c.Index.DefaultK, c.Index.MaxK, domain.ErrInvalidConfig)
	}
	if err := oneOf("embedding.provider", c.Embedding.Provider, "openai", "hash"); err != nil {
		return err
	}
	if c.Embedding.Provider == "openai" && c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required for the openai provider: %w", domain.ErrInvalidConfig)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative: %w", domain.ErrInvalidConfig)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q: %w",
		field, strings.Join(allowed, ", "), value, domain.ErrInvalidConfig)
}

// IsInvalid reports whether err came from Validate.
func IsInvalid(err error) bool {
	return errors.Is(err, domain.ErrInvalidConfig)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
