package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/policyrag/internal/db"
	"github.com/kailas-cloud/policyrag/internal/domain/chunk"
	"github.com/kailas-cloud/policyrag/internal/domain/policy"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
	"github.com/kailas-cloud/policyrag/internal/retry"
)

// Supported database drivers.
const (
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds the policyrag configuration.
type Config struct {
	HTTP       HTTPConfig        `yaml:"http"`
	Database   DatabaseConfig    `yaml:"database"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	Generation GenerationConfig  `yaml:"generation"`
	Chunking   ChunkingConfig    `yaml:"chunking"`
	Retrieval  RetrievalConfig   `yaml:"retrieval"`
	Retry      RetryConfig       `yaml:"retry"`
	Ingest     IngestConfig      `yaml:"ingest"`
	Roles      map[string]string `yaml:"roles"`
	Tagging    TaggingConfig     `yaml:"tagging"`
	Auth       AuthConfig        `yaml:"auth"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File  string `yaml:"file"`  // optional rotated JSON log file
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

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, postgres (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	IndexAlgorithm   string   `yaml:"index_algorithm"` // flat, hnsw
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider"`
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	Dimensions      int    `yaml:"dimensions"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	Cache           bool   `yaml:"cache"`
	CacheTTLHours   int    `yaml:"cache_ttl_hours"`
	CacheMaxEntries int    `yaml:"cache_max_entries"` // in-process cache cap (postgres driver)
}

// GenerationConfig holds the chat model used for role classification and answers.
type GenerationConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
	Assistant  string `yaml:"assistant"`
}

// ChunkingConfig holds chunk window settings, in runes.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	FanOut     int `yaml:"fan_out"`
	TopN       int `yaml:"top_n"`
	TimeoutSec int `yaml:"timeout_sec"`
}

// RetryConfig bounds retries of transient upstream failures.
type RetryConfig struct {
	MaxTries          int `yaml:"max_tries"`
	InitialIntervalMS int `yaml:"initial_interval_ms"`
	MaxIntervalMS     int `yaml:"max_interval_ms"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// TaggingConfig holds metadata tagging rules. Empty means the built-in rules.
type TaggingConfig struct {
	Default *policy.Metadata `yaml:"default"`
	Rules   []RuleConfig     `yaml:"rules"`
}

// RuleConfig is one tagging rule. Exactly one of Contains, Prefix, Pattern is set.
type RuleConfig struct {
	Name            string `yaml:"name"`
	Contains        string `yaml:"contains"`
	Prefix          string `yaml:"prefix"`
	Pattern         string `yaml:"pattern"`
	policy.Metadata `yaml:",inline"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded into the environment first.
func Load(env string) (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates a configuration file.
func LoadFile(configPath string) (Config, error) {
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

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 15
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 168
	}
	if c.Embedding.CacheMaxEntries <= 0 {
		c.Embedding.CacheMaxEntries = 20000
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = c.Embedding.Provider
	}
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = c.Embedding.APIKey
	}
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = c.Embedding.BaseURL
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	// Overlap alone may legitimately be 0, so it is only defaulted together with size.
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = chunk.DefaultSize
		if c.Chunking.Overlap == 0 {
			c.Chunking.Overlap = chunk.DefaultOverlap
		}
	}
	if c.Retrieval.FanOut <= 0 {
		c.Retrieval.FanOut = 7
	}
	if c.Retrieval.TopN <= 0 {
		c.Retrieval.TopN = 3
	}
	if c.Retrieval.TimeoutSec <= 0 {
		c.Retrieval.TimeoutSec = 10
	}
	if c.Retry.MaxTries <= 0 {
		c.Retry.MaxTries = retry.DefaultMaxTries
	}
	if c.Retry.InitialIntervalMS <= 0 {
		c.Retry.InitialIntervalMS = int(retry.DefaultInitialInterval / time.Millisecond)
	}
	if c.Retry.MaxIntervalMS <= 0 {
		c.Retry.MaxIntervalMS = int(retry.DefaultMaxInterval / time.Millisecond)
	}
	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
		if _, err := db.ParseVectorAlgorithm(c.Database.IndexAlgorithm); err != nil {
			return fmt.Errorf("database.index_algorithm: %w", err)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("database.driver must be valkey, redis or postgres, got %q", c.Database.Driver)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Retrieval.FanOut < c.Retrieval.TopN {
		return fmt.Errorf("retrieval.fan_out (%d) must be at least retrieval.top_n (%d)",
			c.Retrieval.FanOut, c.Retrieval.TopN)
	}
	if _, err := c.Scopes(); err != nil {
		return err
	}
	if _, err := c.Tagger(); err != nil {
		return err
	}
	return nil
}

// Scopes builds the role to scope table, starting from the built-in mapping.
func (c *Config) Scopes() (role.ScopeTable, error) {
	return role.NewScopeTable(c.Roles)
}

// Tagger builds the metadata tagger. Without configured rules the built-in rule set is used.
func (c *Config) Tagger() (*policy.Tagger, error) {
	def, builtin := policy.DefaultRules()
	if c.Tagging.Default == nil && len(c.Tagging.Rules) == 0 {
		return policy.NewTagger(def, builtin...)
	}
	if c.Tagging.Default != nil {
		def = *c.Tagging.Default
	}

	rules := make([]policy.Rule, 0, len(c.Tagging.Rules))
	for i, rc := range c.Tagging.Rules {
		match, err := rc.predicate()
		if err != nil {
			return nil, fmt.Errorf("tagging.rules[%d] (%s): %w", i, rc.Name, err)
		}
		rules = append(rules, policy.Rule{Name: rc.Name, Match: match, Metadata: rc.Metadata})
	}
	t, err := policy.NewTagger(def, rules...)
	if err != nil {
		return nil, fmt.Errorf("tagging: %w", err)
	}
	return t, nil
}

func (rc RuleConfig) predicate() (policy.Predicate, error) {
	set := 0
	for _, v := range []string{rc.Contains, rc.Prefix, rc.Pattern} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of contains, prefix, pattern is required")
	}
	switch {
	case rc.Contains != "":
		return policy.Contains(rc.Contains), nil
	case rc.Prefix != "":
		return policy.Prefix(rc.Prefix), nil
	default:
		return policy.Pattern(rc.Pattern)
	}
}

// RetryPolicy converts the retry settings.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxTries:        uint(c.Retry.MaxTries), //nolint:gosec // validated positive by ApplyDefaults
		InitialInterval: time.Duration(c.Retry.InitialIntervalMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.Retry.MaxIntervalMS) * time.Millisecond,
	}
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
