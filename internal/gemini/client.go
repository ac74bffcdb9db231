// Package gemini implements a client for the Google Gemini generateContent API.
package gemini

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

// Client represents a Google Gemini API client
type Client struct {
	apiKey           string
	baseURL          string
	defaultModel     string
	apiVersion       string
	httpClient       *http.Client
	maxRetries       int
	defaultMaxTokens int
}

// NewClient creates a new Gemini client from config
func NewClient(cfg config.GeminiConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	defaultModel := cfg.Model
	if defaultModel == "" {
		defaultModel = "gemini-2.5-pro"
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	defaultMaxTokens := cfg.MaxTokens
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = 8192
	}

	return &Client{
		apiKey:           cfg.APIKey,
		baseURL:          baseURL,
		defaultModel:     defaultModel,
		apiVersion:       apiVersion,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		maxRetries:       cfg.MaxRetries,
		defaultMaxTokens: defaultMaxTokens,
	}
}

// GenerateContent sends a non-streaming content generation request to Gemini
func (c *Client) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}

	if req.MaxTokens <= 0 {
		req.MaxTokens = c.defaultMaxTokens
	}

	wireReq := generateContentRequest{
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: req.Prompt}}},
		},
		GenerationConfig: &GenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		wireReq.SystemInstruction = &Content{Parts: []Part{{Text: req.System}}}
	}

	path := fmt.Sprintf("/%s/models/%s:generateContent", c.apiVersion, req.Model)

	var resp GenerateResponse
	if err := c.makeRequest(ctx, "POST", path, wireReq, &resp); err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	return &resp, nil
}

// makeRequest is a helper function to make HTTP requests with retries
func (c *Client) makeRequest(ctx context.Context, method, path string, requestBody interface{}, responseBody interface{}) error {
	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	// The API key travels as a query parameter
	url := fmt.Sprintf("%s%s?key=%s", c.baseURL, path, c.apiKey)

	var lastErr error
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")

		loggy.Debug("Sending Gemini request", "method", method, "path", path, "bytes", len(bodyBytes))

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

		loggy.Debug("Gemini API response", "status", resp.Status, "content_length", len(respBody))

		if resp.StatusCode != http.StatusOK {
			lastErr = c.handleErrorResponse(resp, respBody)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}

		if err := json.Unmarshal(respBody, responseBody); err != nil {
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
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}
