package adapters

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/kevin-toles/llm-gateway/message"
	"github.com/kevin-toles/llm-gateway/provider"
)

// Gemini wraps the Google Generative AI SDK. Unlike the OpenAI-shape
// adapters, Gemini's wire model differs enough from CompletionRequest /
// CompletionResponse that every call requires a full envelope translation:
// system messages move to SystemInstruction, role names become
// "user"/"model", tool results become FunctionResponse parts, and the
// model never returns a tool_call ID, so the adapter mints one.
//
//   - Temperature is clamped to Gemini's 0.0-1.0 range (the gateway's
//     provider-agnostic range follows OpenAI's 0.0-2.0).
//   - Streaming uses an iterator, not an SSE/callback API.
type Gemini struct {
	client *genai.Client
	models []string
	name   string
}

// NewGemini constructs a Gemini adapter.
func NewGemini(ctx context.Context, name, apiKey string, models []string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{client: client, models: models, name: name}, nil
}

func (a *Gemini) Name() string              { return a.name }
func (a *Gemini) SupportedModels() []string { return a.models }

func (a *Gemini) SupportsModel(name string) bool {
	for _, m := range a.models {
		if m == name {
			return true
		}
	}
	return false
}

// Close releases the underlying client. Not part of provider.Adapter;
// cmd/gateway does not call it.
func (a *Gemini) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func (a *Gemini) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	model := a.client.GenerativeModel(req.Model)
	a.configureModel(model, req)

	history, lastParts := splitHistory(req.Messages)
	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, lastParts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return convertGeminiResponse(resp), nil
}

func (a *Gemini) Stream(ctx context.Context, req *provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	model := a.client.GenerativeModel(req.Model)
	a.configureModel(model, req)

	history, lastParts := splitHistory(req.Messages)
	cs := model.StartChat()
	cs.History = history
	iter := cs.SendMessageStream(ctx, lastParts...)

	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)

		first := true
		for {
			chunk, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				select {
				case ch <- provider.StreamChunk{Err: fmt.Errorf("gemini streaming: %w", err)}:
				case <-ctx.Done():
				}
				return
			}

			out := provider.StreamChunk{Model: req.Model}
			if first {
				out.Delta.Role = "assistant"
				first = false
			}
			if len(chunk.Candidates) > 0 {
				candidate := chunk.Candidates[0]
				if candidate.Content != nil {
					for _, part := range candidate.Content.Parts {
						if txt, ok := part.(genai.Text); ok {
							out.Delta.Content += string(txt)
						}
					}
				}
				if candidate.FinishReason != genai.FinishReasonUnspecified {
					out.FinishReason = candidate.FinishReason.String()
				}
			}
			if chunk.UsageMetadata != nil {
				out.Usage = &provider.TokenUsage{
					PromptTokens:     int(chunk.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(chunk.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(chunk.UsageMetadata.TotalTokenCount),
				}
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (a *Gemini) configureModel(model *genai.GenerativeModel, req *provider.CompletionRequest) {
	for _, msg := range req.Messages {
		if msg.Role == message.RoleSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
			break
		}
	}

	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		if temp > 1.0 {
			temp = 1.0
		}
		model.SetTemperature(temp)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.TopP > 0 {
		model.SetTopP(float32(req.TopP))
	}
	if len(req.Stop) > 0 {
		model.StopSequences = req.Stop
	}
	if len(req.Tools) > 0 {
		model.Tools = convertGeminiTools(req.Tools)
	}
}

// splitHistory turns every non-system message but the last into Gemini chat
// history, and converts the final message into the parts sent with
// SendMessage. Tool-result messages become FunctionResponse parts;
// assistant messages carrying tool calls become FunctionCall parts.
func splitHistory(messages []message.Message) ([]*genai.Content, []genai.Part) {
	var turns []message.Message
	for _, msg := range messages {
		if msg.Role == message.RoleSystem {
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) == 0 {
		return nil, nil
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, msg := range turns[:len(turns)-1] {
		history = append(history, &genai.Content{Role: geminiRole(msg.Role), Parts: messageParts(msg)})
	}
	return history, messageParts(turns[len(turns)-1])
}

func geminiRole(role message.Role) string {
	switch role {
	case message.RoleAssistant:
		return "model"
	case message.RoleTool:
		return "function"
	default:
		return "user"
	}
}

func messageParts(msg message.Message) []genai.Part {
	if msg.Role == message.RoleTool {
		return []genai.Part{genai.FunctionResponse{
			Name:     msg.ToolCallID,
			Response: map[string]interface{}{"content": msg.Content},
		}}
	}
	parts := []genai.Part{}
	if msg.Content != "" {
		parts = append(parts, genai.Text(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Arguments})
	}
	return parts
}

func convertGeminiTools(tools []provider.ToolDefinition) []*genai.Tool {
	out := make([]*genai.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, &genai.Tool{FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertGeminiSchema(tool.Parameters),
		}}})
	}
	return out
}

// convertGeminiSchema translates a JSON Schema document (as decoded into a
// Go map) into genai's typed Schema. Only the subset Gemini's function
// calling supports is handled: object/string/number/integer/boolean/array,
// properties, required, items, enum, description.
func convertGeminiSchema(schema map[string]interface{}) *genai.Schema {
	if len(schema) == 0 {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{Type: geminiSchemaType(schema["type"])}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if propSchema, ok := raw.(map[string]interface{}); ok {
				out.Properties[name] = convertGeminiSchema(propSchema)
			}
		}
	}
	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		out.Items = convertGeminiSchema(items)
	}
	if enum, ok := schema["enum"].([]interface{}); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	return out
}

func geminiSchemaType(raw interface{}) genai.Type {
	s, _ := raw.(string)
	switch s {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

func convertGeminiResponse(resp *genai.GenerateContentResponse) *provider.CompletionResponse {
	out := &provider.CompletionResponse{}
	if resp.UsageMetadata != nil {
		out.Usage = provider.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason != genai.FinishReasonUnspecified {
		out.FinishReason = candidate.FinishReason.String()
	}
	if candidate.Content == nil {
		return out
	}
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Content += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, message.ToolCall{
				ID:        uuid.New().String(),
				Name:      p.Name,
				Arguments: p.Args,
			})
		}
	}
	return out
}
