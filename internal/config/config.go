package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the neardup engine configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	MinHash   MinHashConfig   `yaml:"minhash"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Converter ConverterConfig `yaml:"converter"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds index backend connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix  string `yaml:"key_prefix"`
	Collection string `yaml:"collection"`
}

// MinHashConfig holds signature and LSH banding settings. Signatures are
// only comparable under identical num_perm; changing it requires dropping
// and rebuilding the collection.
type MinHashConfig struct {
	NumPerm int `yaml:"num_perm"`
	Bands   int `yaml:"bands"`
	TopK    int `yaml:"top_k"`
	RefineK int `yaml:"refine_k"`
}

// TokenizerConfig selects the sentence segmentation strategy:
// "bigram" (script-aware CJK bigrams) or "runs" (regex run extractor).
type TokenizerConfig struct {
	Segmenter string `yaml:"segmenter"`
}

// ConverterConfig holds document-converter settings. An empty base URL
// disables ingestion from binary sources.
type ConverterConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "neardup:"
	}
	if c.Storage.Collection == "" {
		c.Storage.Collection = "documents"
	}
	if c.MinHash.NumPerm <= 0 {
		c.MinHash.NumPerm = 128
	}
	if c.MinHash.Bands <= 0 {
		c.MinHash.Bands = 16
	}
	if c.MinHash.TopK <= 0 {
		c.MinHash.TopK = 3
	}
	if c.MinHash.RefineK <= 0 {
		c.MinHash.RefineK = 6
	}
	if c.Tokenizer.Segmenter == "" {
		c.Tokenizer.Segmenter = "bigram"
	}
	if c.Converter.TimeoutSec <= 0 {
		c.Converter.TimeoutSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.MinHash.NumPerm%c.MinHash.Bands != 0 {
		return fmt.Errorf(
			"minhash.num_perm (%d) must be divisible by minhash.bands (%d)",
			c.MinHash.NumPerm, c.MinHash.Bands,
		)
	}
	if c.MinHash.RefineK < c.MinHash.TopK {
		return fmt.Errorf(
			"minhash.refine_k (%d) must be >= minhash.top_k (%d)",
			c.MinHash.RefineK, c.MinHash.TopK,
		)
	}
	switch c.Tokenizer.Segmenter {
	case "bigram", "runs":
		// ok
	default:
		return fmt.Errorf(
			"tokenizer.segmenter must be \"bigram\" or \"runs\", got %q",
			c.Tokenizer.Segmenter,
		)
	}
	return nil
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

	// 3. Fallback to ./config/
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
