package gemini

import (
	"fmt"
	"strings"
)

// GenerateRequest represents a content generation request
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Part is one piece of content in a Gemini message
type Part struct {
	Text string `json:"text"`
}

// Content is a role-tagged list of parts
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig controls sampling for a generation request
type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// generateContentRequest is the wire format of the generateContent endpoint
type generateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate is one generated completion
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata contains token usage information for a request
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GenerateResponse represents a response from the generateContent endpoint
type GenerateResponse struct {
	Candidates []Candidate   `json:"candidates"`
	Usage      UsageMetadata `json:"usageMetadata"`
}

// Text joins the text parts of the first candidate
func (r *GenerateResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// APIError represents an error response from the Gemini API
type APIError struct {
	StatusCode   int `json:"-"`
	ErrorDetails struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.ErrorDetails.Status, e.ErrorDetails.Message, e.StatusCode)
}
