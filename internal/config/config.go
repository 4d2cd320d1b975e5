// Package config provides configuration management for the advisory crawler.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"blackwatch/internal/models"
)

// Environment variables that override the YAML file.
const (
	EnvClientID     = "BLACKWATCH_CLIENT_ID"
	EnvClientSecret = "BLACKWATCH_CLIENT_SECRET"
	EnvEndpoint     = "BLACKWATCH_ENDPOINT"
)

// Defaults used when a field is left empty.
const (
	DefaultUserAgent        = "Mozilla/5.0 (X11; Linux x86_64) BlackWatch/1.0"
	DefaultGeneratorName    = "blackwatch"
	DefaultGeneratorVersion = "2025-08-19-req-ref-v2"
	DefaultVulnPath         = "/data/vulnerability"
	DefaultLeakPath         = "/data/leaked"
)

// Configuration validation errors.
var (
	ErrNoSources                = errors.New("at least one source is required")
	ErrSourceMissingName        = errors.New("source name is required")
	ErrSourceMissingHost        = errors.New("source host is required")
	ErrInvalidPathTemplate      = errors.New("source path_template must contain exactly one %d")
	ErrInvalidIDRange           = errors.New("source start_id must be non-negative and not exceed end_id")
	ErrNoEnabledSources         = errors.New("at least one source must be enabled")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidRate              = errors.New("rate.requests_per_second must be positive and rate.burst at least 1")
	ErrInvalidWorkers           = errors.New("workers must be at least 1")
	ErrMissingOutputPath        = errors.New("output.base_path is required")
	ErrInvalidOutputFormat      = errors.New("output.format must be 'json' or 'jsonl'")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
	ErrMissingEndpoint          = errors.New("api.endpoint is required")
	ErrMissingCredentials       = errors.New("api.client_id and api.client_secret are required")
)

// Config represents the complete configuration.
type Config struct {
	Crawler   CrawlerConfig   `yaml:"crawler"`
	API       APIConfig       `yaml:"api"`
	Generator GeneratorConfig `yaml:"generator"`
}

// CrawlerConfig contains crawler-specific settings.
type CrawlerConfig struct {
	Output       OutputConfig   `yaml:"output"`
	Sources      []SourceConfig `yaml:"sources"`
	Logging      LoggingConfig  `yaml:"logging"`
	Retry        RetryPolicy    `yaml:"retry"`
	Rate         RateConfig     `yaml:"rate"`
	UserAgent    string         `yaml:"user_agent"`
	Workers      int            `yaml:"workers"`
	BufferSizeKb int            `yaml:"buffer_size_kb"`
}

// SourceConfig describes an advisory site crawled over a numeric id range.
type SourceConfig struct {
	Name         string `yaml:"name"`
	Scheme       string `yaml:"scheme"`
	Host         string `yaml:"host"`
	PathTemplate string `yaml:"path_template"`
	StartID      int    `yaml:"start_id"`
	EndID        int    `yaml:"end_id"`
	Enabled      bool   `yaml:"enabled"`
}

// PathFor returns the request path for advisory id.
func (s *SourceConfig) PathFor(id int) string {
	return fmt.Sprintf(s.PathTemplate, id)
}

// URLFor returns the full URL for advisory id.
func (s *SourceConfig) URLFor(id int) string {
	scheme := s.Scheme
	if scheme == "" {
		scheme = "https"
	}

	return scheme + "://" + s.Host + s.PathFor(id)
}

// Count returns the number of ids in the range.
func (s *SourceConfig) Count() int {
	return s.EndID - s.StartID + 1
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// RateConfig limits how fast a source is fetched.
type RateConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// OutputConfig defines output behavior.
type OutputConfig struct {
	BasePath    string `yaml:"base_path"`
	Format      string `yaml:"format"`
	SQLitePath  string `yaml:"sqlite_path"`
	PrettyPrint bool   `yaml:"pretty_print"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIConfig holds the storage API endpoint and credentials.
type APIConfig struct {
	Endpoint      string `yaml:"endpoint"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	UserAgent     string `yaml:"user_agent"`
	VulnPath      string `yaml:"vuln_path"`
	LeakPath      string `yaml:"leak_path"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// GeneratorConfig is stamped on every record.
type GeneratorConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Model returns the generator stamp, or nil when no name is set.
func (g GeneratorConfig) Model() *models.Generator {
	if g.Name == "" {
		return nil
	}

	return &models.Generator{Name: g.Name, Version: g.Version}
}

// Default returns a configuration with every optional field filled.
func Default() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			Output: OutputConfig{
				BasePath:    "./output",
				Format:      "json",
				PrettyPrint: true,
			},
			Logging: LoggingConfig{Level: "info", Format: "text"},
			Retry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    1200,
				MaxDelayMs:        10000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        15,
			},
			Rate:         RateConfig{RequestsPerSecond: 1 / 1.2, Burst: 1},
			UserAgent:    DefaultUserAgent,
			Workers:      4,
			BufferSizeKb: 4096,
		},
		API: APIConfig{
			UserAgent:     DefaultUserAgent,
			VulnPath:      DefaultVulnPath,
			LeakPath:      DefaultLeakPath,
			TimeoutSec:    15,
			MaxConcurrent: 5,
		},
		Generator: GeneratorConfig{
			Name:    DefaultGeneratorName,
			Version: DefaultGeneratorVersion,
		},
	}
}

// LoadFile reads a YAML file over the defaults and applies environment
// overrides without validating. Tools that never crawl use it.
func LoadFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyEnv()

	return cfg, nil
}

// LoadConfig loads configuration from a YAML file over the defaults, applies
// environment overrides and validates the result.
func LoadConfig(filepath string) (*Config, error) {
	cfg, err := LoadFile(filepath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	return nil
}

// ApplyEnv overrides API credentials with the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvClientID); v != "" {
		c.API.ClientID = v
	}

	if v := os.Getenv(EnvClientSecret); v != "" {
		c.API.ClientSecret = v
	}

	if v := os.Getenv(EnvEndpoint); v != "" {
		c.API.Endpoint = v
	}
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Crawler.Sources) == 0 {
		return ErrNoSources
	}

	enabledCount := 0

	for i, src := range c.Crawler.Sources {
		if src.Name == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingName, i)
		}

		if src.Host == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingHost, i)
		}

		if strings.Count(src.PathTemplate, "%d") != 1 || strings.Count(src.PathTemplate, "%") != 1 {
			return fmt.Errorf("%w: source[%d]", ErrInvalidPathTemplate, i)
		}

		if src.StartID < 0 || src.StartID > src.EndID {
			return fmt.Errorf("%w: source[%d]", ErrInvalidIDRange, i)
		}

		if src.Enabled {
			enabledCount++
		}
	}

	if enabledCount == 0 {
		return ErrNoEnabledSources
	}

	if c.Crawler.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Crawler.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Crawler.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Crawler.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Crawler.Rate.RequestsPerSecond <= 0 || c.Crawler.Rate.Burst < 1 {
		return ErrInvalidRate
	}

	if c.Crawler.Workers < 1 {
		return ErrInvalidWorkers
	}

	if c.Crawler.Output.BasePath == "" {
		return ErrMissingOutputPath
	}

	if c.Crawler.Output.Format != "json" && c.Crawler.Output.Format != "jsonl" {
		return ErrInvalidOutputFormat
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Crawler.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if f := c.Crawler.Logging.Format; f != "" && f != "text" && f != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// ValidateAPI checks the settings needed to upload records.
func (c *Config) ValidateAPI() error {
	if c.API.Endpoint == "" {
		return ErrMissingEndpoint
	}

	if c.API.ClientID == "" || c.API.ClientSecret == "" {
		return ErrMissingCredentials
	}

	if c.API.TimeoutSec < 1 {
		return fmt.Errorf("%w: api.timeout_sec", ErrInvalidTimeout)
	}

	return nil
}

// GetEnabledSources returns only enabled sources.
func (c *Config) GetEnabledSources() []SourceConfig {
	var enabled []SourceConfig

	for _, src := range c.Crawler.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	return enabled
}

// GetSource returns the source with the given name.
func (c *Config) GetSource(name string) (SourceConfig, bool) {
	for _, src := range c.Crawler.Sources {
		if src.Name == name {
			return src, true
		}
	}

	return SourceConfig{}, false
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// GetTimeout returns the API request timeout.
func (a *APIConfig) GetTimeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// GetOutputPath follows structure: {base_path}/{source}/{id}.json.
func (c *Config) GetOutputPath(source string, id int) string {
	return fmt.Sprintf("%s/%s/%d.json", c.Crawler.Output.BasePath, source, id)
}

// GetStreamPath follows structure: {base_path}/{source}.jsonl.
func (c *Config) GetStreamPath(source string) string {
	return fmt.Sprintf("%s/%s.jsonl", c.Crawler.Output.BasePath, source)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Sources: %d, MaxAttempts: %d, Workers: %d, Output: %s}",
		len(c.Crawler.Sources),
		c.Crawler.Retry.MaxAttempts,
		c.Crawler.Workers,
		c.Crawler.Output.BasePath,
	)
}
