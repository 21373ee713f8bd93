// Package provider defines the chat-completion boundary between the
// companion core and an external LLM endpoint. The core treats the
// endpoint as an opaque RPC: role-tagged messages and optional tool
// schemas go out, a message with optional text and tool-call requests
// comes back.
package provider

import (
	"context"
	"errors"
)

// Sentinel errors shared by provider implementations.
var (
	// ErrNoAPIKey indicates the adapter was constructed without credentials.
	ErrNoAPIKey = errors.New("provider: no API key configured")

	// ErrProtocol indicates the provider response carried no assistant
	// message, or one the caller cannot interpret.
	ErrProtocol = errors.New("provider: malformed completion response")

	// ErrAuth is a non-retryable authentication failure.
	ErrAuth = errors.New("provider: authentication failed")

	// ErrRateLimit indicates the provider rejected the request for quota.
	ErrRateLimit = errors.New("provider: rate limited")

	// ErrProviderDown indicates a network or server-side failure.
	ErrProviderDown = errors.New("provider: endpoint unavailable")
)

// Provider is the chat-completion RPC boundary.
// Implementations must not retry or reassemble streams; they translate
// shapes and surface failures.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
