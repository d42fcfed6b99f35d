// Package adapters holds the per-backend translations of provider.Adapter:
// an OpenAI-shape passthrough, a hand-built Anthropic-shape translator, and
// a Gemini full-envelope translator.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/kevin-toles/llm-gateway/message"
	"github.com/kevin-toles/llm-gateway/provider"
)

// OpenAI wraps the OpenAI Go SDK. Because the gateway's provider-agnostic
// request/response shapes are themselves OpenAI-shaped, this adapter is
// close to a passthrough: it builds SDK params directly from
// CompletionRequest and reads the SDK response directly into
// CompletionResponse, with no envelope translation.
type OpenAI struct {
	client *openai.Client
	models []string
	name   string
}

// NewOpenAI constructs an OpenAI-shape adapter. baseURL overrides the
// default endpoint for OpenAI-compatible backends (Azure, Ollama,
// OpenRouter, llama.cpp's OpenAI-compatible server).
func NewOpenAI(name, apiKey, baseURL string, models []string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, models: models, name: name}
}

func (a *OpenAI) Name() string              { return a.name }
func (a *OpenAI) SupportedModels() []string { return a.models }

func (a *OpenAI) SupportsModel(name string) bool {
	for _, m := range a.models {
		if m == name {
			return true
		}
	}
	return false
}

func (a *OpenAI) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	params := buildParams(req)
	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return convertCompletion(completion), nil
}

func (a *OpenAI) Stream(ctx context.Context, req *provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	params := buildParams(req)
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)

		first := true
		for stream.Next() {
			chunk := stream.Current()
			out := provider.StreamChunk{ID: chunk.ID, Model: chunk.Model}
			if first {
				out.Delta.Role = "assistant"
				first = false
			}
			if len(chunk.Choices) > 0 {
				out.Delta.Content = chunk.Choices[0].Delta.Content
				if reason := string(chunk.Choices[0].FinishReason); reason != "" {
					out.FinishReason = reason
				}
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case ch <- provider.StreamChunk{Err: fmt.Errorf("openai streaming: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

func buildParams(req *provider.CompletionRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: convertMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.Seed > 0 {
		params.Seed = openai.Int(req.Seed)
	}
	if req.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(req.PresencePenalty)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(req.FrequencyPenalty)
	}
	if req.N > 0 {
		params.N = openai.Int(int64(req.N))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params
}

func convertMessages(messages []message.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case message.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case message.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		case message.RoleTool:
			out = append(out, openai.ToolMessage(msg.ToolCallID, msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func convertTools(tools []provider.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		var params openai.FunctionParameters
		if tool.Parameters != nil {
			params = tool.Parameters
		}
		out[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  params,
		})
	}
	return out
}

func convertCompletion(completion *openai.ChatCompletion) *provider.CompletionResponse {
	resp := &provider.CompletionResponse{
		ID:      completion.ID,
		Model:   completion.Model,
		Created: completion.Created,
		Usage: provider.TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) == 0 {
		return resp
	}
	choice := completion.Choices[0]
	resp.Content = choice.Message.Content
	resp.FinishReason = string(choice.FinishReason)

	if len(choice.Message.ToolCalls) > 0 {
		resp.ToolCalls = make([]message.ToolCall, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			resp.ToolCalls[i] = message.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: decodeArguments(tc.Function.Arguments),
			}
		}
	}
	return resp
}

// decodeArguments parses a tool call's raw JSON argument string. Malformed
// JSON yields an empty argument map rather than an error, matching the
// tool-call loop's tolerance for malformed provider output.
func decodeArguments(raw string) map[string]interface{} {
	args := map[string]interface{}{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{}
	}
	return args
}
