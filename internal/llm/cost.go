package llm

import (
	"context"
	"sync"
)

// Tracker accumulates token usage and dollar spend across every
// generation call of a run. Safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	usage Usage
	calls int
}

// NewTracker returns an empty usage tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record adds one call's usage to the running totals
func (t *Tracker) Record(u Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.Add(u)
	t.calls++
}

// Usage returns a snapshot of the accumulated usage
func (t *Tracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.usage
}

// Calls returns the number of recorded generation calls
func (t *Tracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.calls
}

// trackedClient records usage of every successful completion
type trackedClient struct {
	inner   Client
	tracker *Tracker
}

// WithTracker wraps a client so every successful completion is recorded
// in the given tracker
func WithTracker(client Client, tracker *Tracker) Client {
	if tracker == nil {
		return client
	}
	return &trackedClient{inner: client, tracker: tracker}
}

func (c *trackedClient) GenerateCompletion(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	resp, err := c.inner.GenerateCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	c.tracker.Record(resp.Usage)
	return resp, nil
}
