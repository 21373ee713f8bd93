// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/kokoro-ai/kokoro/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set CompleteFunc to control behavior; an unset func panics on call.
// Safe for concurrent use.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)

	mu            sync.Mutex
	completeCalls int
	requests      []provider.CompletionRequest
}

// Compile-time interface guard.
var _ provider.Provider = (*MockProvider)(nil)

// Complete delegates to CompleteFunc and records the call.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.completeCalls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// CompleteCalls returns how many times Complete was invoked.
func (m *MockProvider) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

// Requests returns a copy of every request passed to Complete, in order.
func (m *MockProvider) Requests() []provider.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Sequence returns a CompleteFunc that replays the given responses in
// order, repeating the last one once exhausted.
func Sequence(responses ...provider.CompletionResponse) func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
	var mu sync.Mutex
	i := 0
	return func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		resp := responses[i]
		if i < len(responses)-1 {
			i++
		}
		return resp, nil
	}
}
