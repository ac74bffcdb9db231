package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tildaslashalef/prtwin/internal/claude"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/gemini"
	"github.com/tildaslashalef/prtwin/internal/ollama"
)

// costFor prices a token count pair using per-1K-token rates
func costFor(inputTokens, outputTokens int, inputPer1K, outputPer1K float64) float64 {
	return float64(inputTokens)/1000.0*inputPer1K + float64(outputTokens)/1000.0*outputPer1K
}

// waitForLimiter blocks until the rate limiter allows a request
func waitForLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// claudeClientAdapter adapts the Claude client to the generic interface
type claudeClientAdapter struct {
	client  *claude.Client
	config  *config.Config
	limiter *rate.Limiter
}

func newClaudeClientAdapter(client *claude.Client, cfg *config.Config, limiter *rate.Limiter) *claudeClientAdapter {
	return &claudeClientAdapter{client: client, config: cfg, limiter: limiter}
}

func (a *claudeClientAdapter) GenerateCompletion(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := waitForLimiter(ctx, a.limiter); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = a.config.Claude.Model
	}

	resp, err := a.client.GenerateMessage(ctx, claude.MessageRequest{
		Model:       model,
		System:      req.System,
		Messages:    []claude.Message{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, translateError(err)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Cost: costFor(resp.Usage.InputTokens, resp.Usage.OutputTokens,
			a.config.Claude.InputCostPer1K, a.config.Claude.OutputCostPer1K),
	}

	return &GenerateResponse{
		Content: resp.Text(),
		Model:   resp.Model,
		Usage:   usage,
	}, nil
}

// geminiClientAdapter adapts the Gemini client to the generic interface
type geminiClientAdapter struct {
	client  *gemini.Client
	config  *config.Config
	limiter *rate.Limiter
}

func newGeminiClientAdapter(client *gemini.Client, cfg *config.Config, limiter *rate.Limiter) *geminiClientAdapter {
	return &geminiClientAdapter{client: client, config: cfg, limiter: limiter}
}

func (a *geminiClientAdapter) GenerateCompletion(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := waitForLimiter(ctx, a.limiter); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = a.config.Gemini.Model
	}

	resp, err := a.client.GenerateContent(ctx, gemini.GenerateRequest{
		Model:       model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, translateError(err)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokenCount,
		CompletionTokens: resp.Usage.CandidatesTokenCount,
		TotalTokens:      resp.Usage.TotalTokenCount,
		Cost: costFor(resp.Usage.PromptTokenCount, resp.Usage.CandidatesTokenCount,
			a.config.Gemini.InputCostPer1K, a.config.Gemini.OutputCostPer1K),
	}

	return &GenerateResponse{
		Content: resp.Text(),
		Model:   model,
		Usage:   usage,
	}, nil
}

// ollamaClientAdapter adapts the Ollama client to the generic interface
type ollamaClientAdapter struct {
	client  *ollama.Client
	config  *config.Config
	limiter *rate.Limiter
}

func newOllamaClientAdapter(client *ollama.Client, cfg *config.Config, limiter *rate.Limiter) *ollamaClientAdapter {
	return &ollamaClientAdapter{client: client, config: cfg, limiter: limiter}
}

func (a *ollamaClientAdapter) GenerateCompletion(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := waitForLimiter(ctx, a.limiter); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = a.config.Ollama.Model
	}

	resp, err := a.client.Generate(ctx, ollama.GenerateRequest{
		Model:       model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, translateError(err)
	}

	// Local models have no metered cost
	usage := Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}

	return &GenerateResponse{
		Content: resp.Response,
		Model:   resp.Model,
		Usage:   usage,
	}, nil
}
