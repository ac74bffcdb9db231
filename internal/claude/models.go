package claude

import (
	"fmt"
	"strings"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// MessageRequest represents a message completion request to the Claude API
type MessageRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// ContentBlock represents a block of content in a response
// Claude responses can contain multiple content blocks of different types
type ContentBlock struct {
	Type string `json:"type"` // Content type (e.g., "text", "thinking")
	Text string `json:"text"` // The actual content text
}

// UsageInfo contains token usage information for a request
type UsageInfo struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessageResponse represents the full message response from the Claude API
type MessageResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      UsageInfo      `json:"usage"`
}

// Text joins the text content blocks of the response
func (r *MessageResponse) Text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// APIError represents an error response from the Claude API
type APIError struct {
	StatusCode   int    `json:"-"`
	Type         string `json:"type"`
	ErrorDetails struct {
		Type    string `json:"type"`    // Error type
		Message string `json:"message"` // Error message
	} `json:"error"`
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.ErrorDetails.Type, e.ErrorDetails.Message, e.StatusCode)
}
