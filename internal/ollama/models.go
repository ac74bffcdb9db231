package ollama

import "fmt"

// GenerateRequest represents a completion request
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// generateOptions maps generation settings to Ollama's option names
type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// generateWireRequest is the wire format of the /api/generate endpoint
type generateWireRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

// GenerateResponse represents a non-streaming completion response
type GenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// APIError represents an error response from the Ollama API
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	return fmt.Sprintf("ollama error: %s (status %d)", e.Message, e.StatusCode)
}
