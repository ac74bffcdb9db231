package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	cfg := New()

	// If configDir is empty, use the default
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".prtwin")

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// Default log path is in the config directory
	defaultLogPath := filepath.Join(configDir, "prtwin.log")

	// Use provided config file path or default
	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// Check if ENV_FILE_PATH is set to load from a custom .env file
	envFilePath := getEnvString("ENV_FILE_PATH", "")
	if envFilePath != "" {
		err := godotenv.Load(envFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		// Try to load from config directory first
		err := godotenv.Load(configFilePath)
		if err != nil {
			// Then try current directory as fallback
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	// LLM Configuration
	cfg.DefaultLLMProvider = getEnvString("PRTWIN_LLM_DEFAULT_PROVIDER", "claude")

	// Load Ollama Configuration
	cfg.Ollama = OllamaConfig{
		Endpoint:          getEnvString("PRTWIN_OLLAMA_ENDPOINT", ""),
		Model:             getEnvString("PRTWIN_OLLAMA_MODEL", "gemma3"),
		Timeout:           getEnvDuration("PRTWIN_OLLAMA_TIMEOUT", 600*time.Second),
		MaxRetries:        getEnvInt("PRTWIN_OLLAMA_MAX_RETRIES", 3),
		MaxTokens:         getEnvInt("PRTWIN_OLLAMA_MAX_TOKENS", 4096),
		Temperature:       getEnvFloat("PRTWIN_OLLAMA_TEMPERATURE", 0.2),
		RequestsPerMinute: getEnvInt("PRTWIN_OLLAMA_REQUESTS_PER_MINUTE", 0),
		BurstLimit:        getEnvInt("PRTWIN_OLLAMA_BURST_LIMIT", 1),
	}

	// Load Claude config
	cfg.Claude = ClaudeConfig{
		APIKey:            getEnvString("PRTWIN_CLAUDE_API_KEY", ""),
		BaseURL:           getEnvString("PRTWIN_CLAUDE_BASE_URL", "https://api.anthropic.com"),
		APIVersion:        getEnvString("PRTWIN_CLAUDE_API_VERSION", "2023-06-01"),
		Model:             getEnvString("PRTWIN_CLAUDE_MODEL", "claude-3-7-sonnet-20250219"),
		Timeout:           getEnvDuration("PRTWIN_CLAUDE_TIMEOUT", 60*time.Second),
		MaxRetries:        getEnvInt("PRTWIN_CLAUDE_MAX_RETRIES", 3),
		MaxTokens:         getEnvInt("PRTWIN_CLAUDE_MAX_TOKENS", 4096),
		Temperature:       getEnvFloat("PRTWIN_CLAUDE_TEMPERATURE", 0.1),
		InputCostPer1K:    getEnvFloat("PRTWIN_CLAUDE_INPUT_COST_PER_1K", 0.003),
		OutputCostPer1K:   getEnvFloat("PRTWIN_CLAUDE_OUTPUT_COST_PER_1K", 0.015),
		RequestsPerMinute: getEnvInt("PRTWIN_CLAUDE_REQUESTS_PER_MINUTE", 50),
		BurstLimit:        getEnvInt("PRTWIN_CLAUDE_BURST_LIMIT", 5),
	}

	// Load Gemini configuration
	cfg.Gemini = GeminiConfig{
		APIKey:            getEnvString("PRTWIN_GEMINI_API_KEY", ""),
		BaseURL:           getEnvString("PRTWIN_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		APIVersion:        getEnvString("PRTWIN_GEMINI_API_VERSION", "v1beta"),
		Model:             getEnvString("PRTWIN_GEMINI_MODEL", "gemini-2.5-pro"),
		Timeout:           getEnvDuration("PRTWIN_GEMINI_TIMEOUT", 60*time.Second),
		MaxRetries:        getEnvInt("PRTWIN_GEMINI_MAX_RETRIES", 3),
		MaxTokens:         getEnvInt("PRTWIN_GEMINI_MAX_TOKENS", 8192),
		Temperature:       getEnvFloat("PRTWIN_GEMINI_TEMPERATURE", 0.1),
		InputCostPer1K:    getEnvFloat("PRTWIN_GEMINI_INPUT_COST_PER_1K", 0.00125),
		OutputCostPer1K:   getEnvFloat("PRTWIN_GEMINI_OUTPUT_COST_PER_1K", 0.01),
		RequestsPerMinute: getEnvInt("PRTWIN_GEMINI_REQUESTS_PER_MINUTE", 60),
		BurstLimit:        getEnvInt("PRTWIN_GEMINI_BURST_LIMIT", 5),
	}

	// GitHub Configuration
	cfg.GitHub = GitHubConfig{
		Token:          getEnvString("PRTWIN_GITHUB_TOKEN", os.Getenv("GITHUB_TOKEN")),
		APIURL:         getEnvString("PRTWIN_GITHUB_API_URL", "https://api.github.com"),
		RequestTimeout: getEnvDuration("PRTWIN_GITHUB_REQUEST_TIMEOUT", 30*time.Second),
	}

	// Extraction Configuration
	cfg.Extract = ExtractConfig{
		MaxRetries:     getEnvInt("PRTWIN_EXTRACT_MAX_RETRIES", 3),
		FileSizeCutoff: getEnvInt("PRTWIN_EXTRACT_FILE_SIZE_CUTOFF", 16384),
		MaxTokens:      getEnvInt("PRTWIN_EXTRACT_MAX_TOKENS", 4096),
	}

	// Application Configuration
	cfg.Apply = ApplyConfig{
		Concurrency:      getEnvInt("PRTWIN_APPLY_CONCURRENCY", 1),
		MaxRetries:       getEnvInt("PRTWIN_APPLY_MAX_RETRIES", 3),
		MaxTokens:        getEnvInt("PRTWIN_APPLY_MAX_TOKENS", 4096),
		IncludeUnchanged: getEnvBool("PRTWIN_APPLY_INCLUDE_UNCHANGED", false),
	}

	// Working-copy Configuration
	cfg.Git = GitConfig{
		RepoPath:     getEnvString("PRTWIN_GIT_REPO_PATH", "."),
		Remote:       getEnvString("PRTWIN_GIT_REMOTE", "origin"),
		BranchPrefix: getEnvString("PRTWIN_GIT_BRANCH_PREFIX", "prtwin"),
		CommitName:   getEnvString("PRTWIN_GIT_COMMIT_NAME", "prtwin"),
		CommitEmail:  getEnvString("PRTWIN_GIT_COMMIT_EMAIL", "prtwin@localhost"),
	}

	// Logging Configuration
	cfg.Logging = LoggingConfig{
		Level:      getEnvString("PRTWIN_LOG_LEVEL", "info"),
		Format:     getEnvString("PRTWIN_LOG_FORMAT", "text"),
		Output:     getEnvString("PRTWIN_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("PRTWIN_LOG_ADD_SOURCE", true),
		TimeFormat: getEnvString("PRTWIN_LOG_TIME_FORMAT", time.RFC3339),
	}

	// Validate the configuration
	return cfg, cfg.Validate()
}
