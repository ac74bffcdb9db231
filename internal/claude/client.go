// Package claude implements a client for the Anthropic Claude messages API.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/loggy"
)

// Client represents an Anthropic Claude API client
// It handles all communication with the Claude API
type Client struct {
	apiKey           string
	baseURL          string
	defaultModel     string
	httpClient       *http.Client
	maxRetries       int
	defaultMaxTokens int
	apiVersion       string
}

// NewClient creates a new Claude client from config
func NewClient(cfg config.ClaudeConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "2023-06-01"
	}

	defaultModel := cfg.Model
	if defaultModel == "" {
		defaultModel = "claude-3-7-sonnet-20250219"
	}

	defaultMaxTokens := cfg.MaxTokens
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = 4096
	}

	return &Client{
		apiKey:           cfg.APIKey,
		baseURL:          baseURL,
		defaultModel:     defaultModel,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		maxRetries:       cfg.MaxRetries,
		defaultMaxTokens: defaultMaxTokens,
		apiVersion:       apiVersion,
	}
}

// GenerateMessage sends a non-streaming message completion request to Claude
func (c *Client) GenerateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}

	if req.MaxTokens <= 0 {
		req.MaxTokens = c.defaultMaxTokens
	}

	// Force stream to false for non-streaming requests
	req.Stream = false

	var resp MessageResponse
	if err := c.makeRequest(ctx, "POST", "/v1/messages", req, &resp); err != nil {
		return nil, fmt.Errorf("generating message completion: %w", err)
	}

	return &resp, nil
}

// makeRequest is a helper function to make HTTP requests with retries
// It uses exponential backoff for retrying failed requests
func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, response interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	url := fmt.Sprintf("%s%s", c.baseURL, path)

	var lastErr error
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", c.apiVersion)

		loggy.Debug("Sending Claude request", "method", method, "url", url, "bytes", len(bodyBytes))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("sending request: %w", err)
			return lastErr
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			return lastErr
		}

		loggy.Debug("Claude API response", "status", resp.Status, "content_length", len(respBody))

		if resp.StatusCode != http.StatusOK {
			lastErr = c.handleErrorResponse(resp, respBody)
			// Client errors will not succeed on retry
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}

		if err := json.Unmarshal(respBody, response); err != nil {
			lastErr = fmt.Errorf("decoding response: %w", err)
			return lastErr
		}

		return nil
	}

	err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx))
	if err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}

	return nil
}

// handleErrorResponse processes error responses from the API
// It attempts to parse the error JSON and return a structured error
func (c *Client) handleErrorResponse(resp *http.Response, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}
