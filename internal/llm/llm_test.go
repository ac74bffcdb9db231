package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/prtwin/internal/claude"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/loggy"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.DefaultLLMProvider = "claude"
	cfg.Claude.APIKey = "test-key"
	cfg.Claude.BaseURL = "https://api.anthropic.com"
	cfg.Claude.Model = "claude-3-7-sonnet-20250219"
	cfg.Claude.RequestsPerMinute = 50
	cfg.Claude.BurstLimit = 5
	return cfg
}

func TestFactoryGetClient(t *testing.T) {
	f := NewFactory(testConfig(), loggy.NewNoopLogger())

	client, err := f.GetClient(Claude)
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = f.GetClient(Gemini)
	assert.Error(t, err)

	_, err = f.GetClient(Ollama)
	assert.Error(t, err)

	_, err = f.GetClient(ClientType("openai"))
	assert.Error(t, err)
}

func TestFactoryGetDefaultClient(t *testing.T) {
	f := NewFactory(testConfig(), loggy.NewNoopLogger())

	client, clientType, err := f.GetDefaultClient()
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, Claude, clientType)
}

func TestFactoryGetDefaultClientFallback(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLLMProvider = "ollama" // not configured

	f := NewFactory(cfg, loggy.NewNoopLogger())

	client, clientType, err := f.GetDefaultClient()
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, Claude, clientType)
}

func TestFactoryNoProviders(t *testing.T) {
	cfg := config.New()
	cfg.DefaultLLMProvider = "claude"

	f := NewFactory(cfg, loggy.NewNoopLogger())

	_, _, err := f.GetDefaultClient()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM clients initialized")
}

func TestNewLimiter(t *testing.T) {
	// Zero RPM means unlimited
	l := newLimiter(0, 1)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())

	l = newLimiter(60, 0)
	assert.Equal(t, 1, l.Burst())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", fmt.Errorf("call: %w", ErrRateLimited), true},
		{"unavailable", ErrUnavailable, true},
		{"timeout", ErrTimeout, true},
		{"deadline", context.DeadlineExceeded, true},
		{"bad request", ErrBadRequest, false},
		{"auth", ErrAuth, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTranslateError(t *testing.T) {
	apiErr := &claude.APIError{StatusCode: 429}
	assert.ErrorIs(t, translateError(apiErr), ErrRateLimited)

	apiErr = &claude.APIError{StatusCode: 503}
	assert.ErrorIs(t, translateError(apiErr), ErrUnavailable)

	apiErr = &claude.APIError{StatusCode: 401}
	assert.ErrorIs(t, translateError(apiErr), ErrAuth)

	apiErr = &claude.APIError{StatusCode: 400}
	assert.ErrorIs(t, translateError(apiErr), ErrBadRequest)
}

func TestCostFor(t *testing.T) {
	cost := costFor(1000, 2000, 0.003, 0.015)
	assert.InDelta(t, 0.033, cost, 1e-9)

	// Unconfigured prices yield zero spend
	assert.Zero(t, costFor(1000, 2000, 0, 0))
}

type stubClient struct {
	usage Usage
	err   error
}

func (s *stubClient) GenerateCompletion(_ context.Context, _ GenerateRequest) (*GenerateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &GenerateResponse{Content: "ok", Usage: s.usage}, nil
}

func TestTracker(t *testing.T) {
	tracker := NewTracker()
	client := WithTracker(&stubClient{usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Cost: 0.01}}, tracker)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GenerateCompletion(context.Background(), GenerateRequest{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, tracker.Calls())
	usage := tracker.Usage()
	assert.Equal(t, 100, usage.PromptTokens)
	assert.Equal(t, 50, usage.CompletionTokens)
	assert.Equal(t, 150, usage.TotalTokens)
	assert.InDelta(t, 0.1, usage.Cost, 1e-9)
}

func TestTrackerSkipsFailedCalls(t *testing.T) {
	tracker := NewTracker()
	client := WithTracker(&stubClient{err: errors.New("boom")}, tracker)

	_, err := client.GenerateCompletion(context.Background(), GenerateRequest{})
	require.Error(t, err)
	assert.Zero(t, tracker.Calls())
}
