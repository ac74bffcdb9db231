// Package llm provides a provider-agnostic text generation interface
// with rate limiting, cost accounting, and a shared error taxonomy.
package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tildaslashalef/prtwin/internal/claude"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/gemini"
	"github.com/tildaslashalef/prtwin/internal/loggy"
	"github.com/tildaslashalef/prtwin/internal/ollama"
)

// GenerateRequest represents a request for text generation
type GenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Usage holds the token counts and dollar cost of one generation call
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// Add accumulates another usage record into this one
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Cost += other.Cost
}

// GenerateResponse represents a response from a text generation request
type GenerateResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Client defines the interface for LLM clients
type Client interface {
	// GenerateCompletion sends a non-streaming completion request
	GenerateCompletion(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// ClientType defines the type of LLM client
type ClientType string

const (
	// Ollama client type
	Ollama ClientType = "ollama"

	// Claude client type
	Claude ClientType = "claude"

	// Gemini client type
	Gemini ClientType = "gemini"
)

// Factory creates and returns LLM clients
type Factory struct {
	config *config.Config
	ollama *ollama.Client
	claude *claude.Client
	gemini *gemini.Client
	logger *loggy.Logger

	ollamaLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
	geminiLimiter *rate.Limiter
}

// helper function to create a rate limiter from RPM and Burst
func newLimiter(rpm, burst int) *rate.Limiter {
	if rpm <= 0 {
		// If RPM is zero or negative, allow infinite rate (no limiting)
		return rate.NewLimiter(rate.Inf, burst)
	}
	r := rate.Limit(float64(rpm) / 60.0)
	b := burst
	if b <= 0 {
		b = 1
	}
	return rate.NewLimiter(r, b)
}

// NewFactory creates a new LLM client factory
func NewFactory(cfg *config.Config, logger *loggy.Logger) *Factory {
	f := &Factory{
		config: cfg,
		logger: logger,
	}

	if cfg.Ollama.Endpoint != "" {
		f.ollama = ollama.NewClient(cfg.Ollama)
		f.ollamaLimiter = newLimiter(cfg.Ollama.RequestsPerMinute, cfg.Ollama.BurstLimit)
		loggy.Info("initialized Ollama client", "endpoint", cfg.Ollama.Endpoint, "rpm", cfg.Ollama.RequestsPerMinute, "burst", cfg.Ollama.BurstLimit)
	}

	if cfg.Claude.APIKey != "" {
		f.claude = claude.NewClient(cfg.Claude)
		f.claudeLimiter = newLimiter(cfg.Claude.RequestsPerMinute, cfg.Claude.BurstLimit)
		loggy.Info("initialized Claude client", "base_url", cfg.Claude.BaseURL, "model", cfg.Claude.Model, "rpm", cfg.Claude.RequestsPerMinute, "burst", cfg.Claude.BurstLimit)
	}

	if cfg.Gemini.APIKey != "" {
		f.gemini = gemini.NewClient(cfg.Gemini)
		f.geminiLimiter = newLimiter(cfg.Gemini.RequestsPerMinute, cfg.Gemini.BurstLimit)
		loggy.Info("initialized Gemini client", "base_url", cfg.Gemini.BaseURL, "model", cfg.Gemini.Model, "rpm", cfg.Gemini.RequestsPerMinute, "burst", cfg.Gemini.BurstLimit)
	}

	return f
}

// GetClient returns an LLM client of the specified type
func (f *Factory) GetClient(clientType ClientType) (Client, error) {
	switch clientType {
	case Ollama:
		if f.ollama == nil {
			return nil, fmt.Errorf("Ollama client not initialized - check configuration")
		}
		return newOllamaClientAdapter(f.ollama, f.config, f.ollamaLimiter), nil

	case Claude:
		if f.claude == nil {
			return nil, fmt.Errorf("Claude client not initialized - check configuration")
		}
		return newClaudeClientAdapter(f.claude, f.config, f.claudeLimiter), nil

	case Gemini:
		if f.gemini == nil {
			return nil, fmt.Errorf("Gemini client not initialized - check configuration")
		}
		return newGeminiClientAdapter(f.gemini, f.config, f.geminiLimiter), nil

	default:
		return nil, fmt.Errorf("unknown client type: %s", clientType)
	}
}

// GetDefaultClient returns the default client based on configuration,
// falling back to the first available provider
func (f *Factory) GetDefaultClient() (Client, ClientType, error) {
	defaultType := ClientType(f.config.DefaultLLMProvider)

	client, err := f.GetClient(defaultType)
	if err == nil {
		return client, defaultType, nil
	}

	f.logger.Warn("Default LLM provider not available, falling back", "default", defaultType, "error", err)

	for _, ct := range []ClientType{Claude, Gemini, Ollama} {
		if client, err := f.GetClient(ct); err == nil {
			return client, ct, nil
		}
	}

	return nil, "", fmt.Errorf("no LLM clients initialized - check configuration")
}
