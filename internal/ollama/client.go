// Package ollama implements a client for a local Ollama server.
package ollama

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

// Client represents an Ollama API client
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
	maxRetries int
	maxTokens  int
}

// NewClient creates a new Ollama client from config
func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		maxTokens:  cfg.MaxTokens,
	}
}

// Generate sends a non-streaming completion request to Ollama
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	if req.MaxTokens <= 0 {
		req.MaxTokens = c.maxTokens
	}

	wireReq := generateWireRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}

	var resp GenerateResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/api/generate", wireReq, &resp); err != nil {
		return nil, fmt.Errorf("generating completion: %w", err)
	}

	return &resp, nil
}

// makeRequest is a helper function to make HTTP requests with retries
func (c *Client) makeRequest(ctx context.Context, method, path string, reqBody interface{}, respBody interface{}) error {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	url := fmt.Sprintf("%s%s", c.endpoint, path)

	var lastErr error
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")

		loggy.Debug("Sending Ollama request", "method", method, "url", url, "bytes", len(bodyBytes))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("sending request: %w", err)
			return lastErr
		}
		defer resp.Body.Close()

		respData, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			return lastErr
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = c.handleErrorResponse(resp, respData)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}

		if err := json.Unmarshal(respData, respBody); err != nil {
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
func (c *Client) handleErrorResponse(resp *http.Response, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}
