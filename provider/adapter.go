// Package provider defines the uniform contract every LLM backend adapter
// implements, plus the Router that maps a model name to exactly one
// loaded adapter.
package provider

import (
	"context"

	"github.com/kevin-toles/llm-gateway/message"
)

// Adapter abstracts a single LLM backend (OpenAI, Anthropic-shape, Gemini,
// or a test double) behind one contract. The chat orchestrator never knows
// which backend it is talking to; it only calls Complete/Stream.
//
// Implementations translate CompletionRequest into the backend's wire
// shape. Error translation and retries differ by adapter:
//   - Anthropic maps 401/403, 429 and 400 responses to the gwerrors
//     Authentication, RateLimit and Provider kinds (429 is returned at
//     once, not retried) and retries connection failures and other non-2xx
//     responses with exponential backoff, without jitter, up to maxRetries
//   - OpenAI and Gemini return backend errors wrapped with fmt.Errorf,
//     with no gwerrors kind and no retry loop of their own
//
// The orchestrator itself never retries.
//
// Tool-format translation is adapter-local: OpenAI-shape adapters pass
// tool definitions and tool_calls through close to verbatim; Anthropic-shape
// adapters rewrite function.parameters to input_schema on the way out and
// tool_use content blocks into tool_calls on the way back; fully proprietary
// backends (Gemini) perform a complete envelope translation.
type Adapter interface {
	// Complete blocks until the full response is available.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Stream returns a channel of incremental chunks. The first chunk MUST
	// carry Delta.Role == "assistant"; the last MUST carry a non-empty
	// FinishReason. Cancelling ctx MUST abort the upstream call promptly and
	// close the channel.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error)

	// SupportsModel reports whether this adapter can serve the given model
	// name verbatim. The router does not call it; routing is table-driven,
	// see router.go.
	SupportsModel(name string) bool

	// SupportedModels lists every model name this adapter is prepared to
	// serve.
	SupportedModels() []string

	// Name identifies the adapter for logging, metrics labels, and circuit
	// breaker resource keys.
	Name() string
}

// CompletionRequest is the provider-agnostic request shape every adapter
// translates into its backend's wire format.
type CompletionRequest struct {
	Model            string
	Messages         []message.Message
	Temperature      float64
	MaxTokens        int
	TopP             float64
	N                int
	Stop             []string
	PresencePenalty  float64
	FrequencyPenalty float64
	Tools            []ToolDefinition
	ToolChoice       interface{}
	User             string
	Seed             int64
}

// ToolDefinition is the JSON-Schema-typed tool surface offered to the
// model for a single request.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// CompletionResponse is the provider-agnostic, OpenAI-shaped response every
// adapter produces regardless of backend.
type CompletionResponse struct {
	ID           string
	Model        string
	Created      int64
	Content      string
	ToolCalls    []message.ToolCall
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage mirrors the OpenAI usage envelope; interior stream chunks omit
// it entirely (zero value), matching the OpenAI-shape contract.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamChunk is one increment of a streaming completion. Delta carries the
// partial content; FinishReason and Usage are populated only on the
// terminal chunk.
type StreamChunk struct {
	ID           string
	Model        string
	Delta        Delta
	FinishReason string
	Usage        *TokenUsage
	Err          error
}

// Delta is the incremental content of a single StreamChunk.
type Delta struct {
	Role    string
	Content string
}
