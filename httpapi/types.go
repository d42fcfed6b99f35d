package httpapi

import (
	"time"

	"github.com/kevin-toles/llm-gateway/message"
	"github.com/kevin-toles/llm-gateway/provider"
)

// ChatCompletionRequest is the external, OpenAI-compatible request
// envelope for POST /v1/chat/completions. SessionID is the gateway's own
// addition: when present, the orchestrator prepends that session's
// history and persists the turn back to it.
type ChatCompletionRequest struct {
	Model            string             `json:"model"`
	Messages         []message.Message  `json:"messages"`
	Temperature      float64            `json:"temperature,omitempty"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	TopP             float64            `json:"top_p,omitempty"`
	N                int                `json:"n,omitempty"`
	Stream           bool               `json:"stream,omitempty"`
	Stop             []string           `json:"stop,omitempty"`
	PresencePenalty  float64            `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64            `json:"frequency_penalty,omitempty"`
	Tools            []WireToolWrapper  `json:"tools,omitempty"`
	ToolChoice       interface{}        `json:"tool_choice,omitempty"`
	User             string             `json:"user,omitempty"`
	Seed             int64              `json:"seed,omitempty"`
	SessionID        string             `json:"session_id,omitempty"`
}

// WireToolWrapper matches OpenAI's {"type": "function", "function": {...}}
// tool envelope.
type WireToolWrapper struct {
	Type     string         `json:"type"`
	Function WireToolSchema `json:"function"`
}

// WireToolSchema is the function definition nested inside WireToolWrapper.
type WireToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ChatCompletionResponse is the external, OpenAI-compatible response
// envelope for a blocking /v1/chat/completions call.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion candidate. The gateway only ever produces
// one (n > 1 is accepted on the request but the orchestrator itself does
// not fan out multiple candidates).
type Choice struct {
	Index        int             `json:"index"`
	Message      message.Message `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// Usage mirrors the OpenAI usage envelope.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one SSE frame of a streaming response.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// StreamChoice is a single incremental chunk's candidate.
type StreamChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta is the incremental content of one StreamChoice.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ErrorBody is the JSON body written on every non-2xx response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the failure kind and message, matching the
// OpenAI-style {"error": {...}} envelope clients already expect.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func toCompletionRequest(req ChatCompletionRequest) *provider.CompletionRequest {
	tools := make([]provider.ToolDefinition, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, provider.ToolDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	return &provider.CompletionRequest{
		Model:            req.Model,
		Messages:         req.Messages,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		N:                req.N,
		Stop:             req.Stop,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		Tools:            tools,
		ToolChoice:       req.ToolChoice,
		User:             req.User,
		Seed:             req.Seed,
	}
}

func toChatCompletionResponse(resp *provider.CompletionResponse) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   resp.Model,
		Choices: []Choice{{
			Index:        0,
			Message:      message.AssistantWithToolCalls(resp.Content, resp.ToolCalls),
			FinishReason: resp.FinishReason,
		}},
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

func toStreamChunk(responseID string, chunk provider.StreamChunk) ChatCompletionChunk {
	out := ChatCompletionChunk{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   chunk.Model,
		Choices: []StreamChoice{{
			Index: 0,
			Delta: Delta{Role: chunk.Delta.Role, Content: chunk.Delta.Content},
		}},
	}
	if chunk.FinishReason != "" {
		out.Choices[0].FinishReason = chunk.FinishReason
	}
	if chunk.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	return out
}
