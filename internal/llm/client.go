package llm

import "context"

// Client is the interface the orchestration loop depends on. The real
// implementation is [AnthropicClient]; tests substitute a mock.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, req *Request) (*Response, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
