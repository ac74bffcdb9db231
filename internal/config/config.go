package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	DefaultLLMProvider string // Which provider to use by default (ollama, claude, or gemini)
	Ollama             OllamaConfig
	Claude             ClaudeConfig
	Gemini             GeminiConfig
	GitHub             GitHubConfig
	Extract            ExtractConfig
	Apply              ApplyConfig
	Git                GitConfig
	Logging            LoggingConfig
}

// ExtractConfig controls difference extraction from the reference changeset
type ExtractConfig struct {
	MaxRetries     int // Retries for the extraction LLM call on transient failure
	FileSizeCutoff int // Files with patches larger than this (bytes) are summarized instead of inlined
	MaxTokens      int // Max tokens for the extraction response
}

// ApplyConfig controls edit application
type ApplyConfig struct {
	Concurrency      int  // Concurrent per-file synthesis calls (1 = sequential)
	MaxRetries       int  // Retries per synthesis call on transient failure
	MaxTokens        int  // Max tokens for each synthesis response
	IncludeUnchanged bool // Pass through files without confirmed differences
}

// GitConfig represents working-copy configuration for materializing results
type GitConfig struct {
	RepoPath     string // Path to the local working copy
	Remote       string // Remote name used for pushes
	BranchPrefix string // Prefix for generated branch names
	CommitName   string // Author name for generated commits
	CommitEmail  string // Author email for generated commits
}

// GitHubConfig represents GitHub-specific configuration
type GitHubConfig struct {
	Token          string        // GitHub Personal Access Token
	APIURL         string        // GitHub API base URL
	RequestTimeout time.Duration // Request timeout for GitHub API
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// OllamaConfig holds configuration specific to the Ollama client
type OllamaConfig struct {
	Endpoint string // Ollama API endpoint URL
	Model    string // Default model to use

	Timeout    time.Duration // Request timeout
	MaxRetries int           // Maximum number of retries on failure

	MaxTokens   int     // Max tokens to generate for responses
	Temperature float64 // Default temperature for generation

	RequestsPerMinute int // Rate limiting
	BurstLimit        int // Rate limiting
}

// ClaudeConfig holds Claude API configuration
type ClaudeConfig struct {
	APIKey     string // Claude API key
	BaseURL    string // Claude API base URL
	APIVersion string // API version to use
	Model      string // Claude model to use

	Timeout    time.Duration // Request timeout
	MaxRetries int           // Maximum number of retries on failure

	MaxTokens   int     // Max tokens to generate for Claude responses
	Temperature float64 // Default temperature for Claude

	// Cost per 1K tokens in USD, used for cumulative spend reporting
	InputCostPer1K  float64
	OutputCostPer1K float64

	RequestsPerMinute int // Rate limiting
	BurstLimit        int // Rate limiting
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey     string // Gemini API key
	BaseURL    string // Gemini API base URL
	APIVersion string // API version (v1 or v1beta)
	Model      string // Gemini model to use

	Timeout    time.Duration // Request timeout
	MaxRetries int           // Maximum number of retries on failure

	MaxTokens   int     // Max tokens to generate for Gemini responses
	Temperature float64 // Default temperature for Gemini

	// Cost per 1K tokens in USD, used for cumulative spend reporting
	InputCostPer1K  float64
	OutputCostPer1K float64

	RequestsPerMinute int // Rate limiting
	BurstLimit        int // Rate limiting
}

// New returns a new empty Config
func New() *Config {
	return &Config{
		DefaultLLMProvider: "",
		Ollama:             OllamaConfig{},
		Claude:             ClaudeConfig{},
		Gemini:             GeminiConfig{},
		GitHub:             GitHubConfig{},
		Extract:            ExtractConfig{},
		Apply:              ApplyConfig{},
		Git:                GitConfig{},
		Logging:            LoggingConfig{},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return fmt.Errorf("LLM config: %w", err)
	}

	if err := c.validateClaude(); err != nil {
		return fmt.Errorf("Claude config: %w", err)
	}

	if err := c.validateGemini(); err != nil {
		return fmt.Errorf("Gemini config: %w", err)
	}

	if err := c.validateExtract(); err != nil {
		return fmt.Errorf("extract config: %w", err)
	}

	if err := c.validateApply(); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateLLM() error {
	if c.DefaultLLMProvider == "" {
		return fmt.Errorf("default provider cannot be empty")
	}
	return nil
}

func (c *Config) validateClaude() error {
	// If API key is not provided, the provider stays disabled
	if c.Claude.APIKey == "" {
		return nil
	}

	if c.Claude.BaseURL == "" {
		c.Claude.BaseURL = "https://api.anthropic.com"
	}

	if c.Claude.Model == "" {
		c.Claude.Model = "claude-3-7-sonnet-20250219"
	}

	if c.Claude.Timeout <= 0 {
		c.Claude.Timeout = 60 * time.Second
	}

	if c.Claude.MaxRetries <= 0 {
		c.Claude.MaxRetries = 3
	}

	if c.Claude.MaxTokens <= 0 {
		c.Claude.MaxTokens = 4096
	}

	if c.Claude.InputCostPer1K < 0 || c.Claude.OutputCostPer1K < 0 {
		return fmt.Errorf("token costs cannot be negative")
	}

	return nil
}

func (c *Config) validateGemini() error {
	// If API key is not provided, the provider stays disabled
	if c.Gemini.APIKey == "" {
		return nil
	}

	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com"
	}

	if c.Gemini.APIVersion == "" {
		c.Gemini.APIVersion = "v1beta"
	}

	if c.Gemini.APIVersion != "v1" && c.Gemini.APIVersion != "v1beta" {
		return fmt.Errorf("invalid API version: %s (must be v1 or v1beta)", c.Gemini.APIVersion)
	}

	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-pro"
	}

	if c.Gemini.Timeout <= 0 {
		c.Gemini.Timeout = 60 * time.Second
	}

	if c.Gemini.MaxRetries <= 0 {
		c.Gemini.MaxRetries = 3
	}

	if c.Gemini.MaxTokens <= 0 {
		c.Gemini.MaxTokens = 8192
	}

	if c.Gemini.InputCostPer1K < 0 || c.Gemini.OutputCostPer1K < 0 {
		return fmt.Errorf("token costs cannot be negative")
	}

	return nil
}

func (c *Config) validateExtract() error {
	if c.Extract.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive")
	}

	if c.Extract.FileSizeCutoff <= 0 {
		return fmt.Errorf("file_size_cutoff must be positive")
	}

	return nil
}

func (c *Config) validateApply() error {
	if c.Apply.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	if c.Apply.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 from the environment variable
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
