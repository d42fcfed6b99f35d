package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kevin-toles/llm-gateway/gwerrors"
	"github.com/kevin-toles/llm-gateway/message"
	"github.com/kevin-toles/llm-gateway/provider"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicDefaultMaxTok  = 4096
)

// Anthropic is a hand-built client over net/http: no vendor SDK offers the
// Messages API surface this adapter needs, so requests are built and SSE
// responses parsed directly. Two translations happen at the boundary:
// function.parameters becomes input_schema on the way out, and content
// blocks of type tool_use become tool_calls (and a tool-role message
// becomes a user message carrying a tool_result block) on the way back.
type Anthropic struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	models     []string
	name       string
}

// NewAnthropic constructs an Anthropic-shape adapter. baseURL defaults to
// the public API; overriding it supports Anthropic-compatible gateways.
func NewAnthropic(name, apiKey, baseURL string, models []string) *Anthropic {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &Anthropic{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxRetries: 3,
		models:     models,
		name:       name,
	}
}

func (a *Anthropic) Name() string              { return a.name }
func (a *Anthropic) SupportedModels() []string { return a.models }

func (a *Anthropic) SupportsModel(name string) bool {
	for _, m := range a.models {
		if m == name {
			return true
		}
	}
	return false
}

func (a *Anthropic) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	body, err := buildAnthropicRequest(req, false)
	if err != nil {
		return nil, err
	}

	resp, err := a.doRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindProvider, "anthropic: decode response", err)
	}
	return convertAnthropicResponse(&apiResp), nil
}

func (a *Anthropic) Stream(ctx context.Context, req *provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	body, err := buildAnthropicRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := a.doRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var id, model string
		first := true

		for {
			event, ok, err := readAnthropicEvent(scanner)
			if err != nil {
				select {
				case ch <- provider.StreamChunk{Err: fmt.Errorf("anthropic streaming: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if !ok {
				return
			}

			chunk, stop := translateAnthropicEvent(event, &id, &model, &first)
			if chunk != nil {
				select {
				case ch <- *chunk:
				case <-ctx.Done():
					return
				}
			}
			if stop {
				return
			}
		}
	}()
	return ch, nil
}

// doRequest sends the Messages API call, retrying transient 5xx/connection
// failures with exponential backoff up to maxRetries.
func (a *Anthropic) doRequest(ctx context.Context, body []byte) (*http.Response, error) {
	url := a.baseURL + "/v1/messages"

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindProvider, "anthropic: build request", err)
		}
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, gwerrors.Wrap(gwerrors.KindProvider, "anthropic: request cancelled", ctx.Err())
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, gwerrors.Wrap(gwerrors.KindAuthentication, "anthropic: authentication failed", fmt.Errorf("%s", errBody))
		case http.StatusTooManyRequests:
			return nil, gwerrors.Wrap(gwerrors.KindRateLimit, "anthropic: rate limited", fmt.Errorf("%s", errBody))
		case http.StatusBadRequest:
			return nil, gwerrors.Wrap(gwerrors.KindProvider, "anthropic: bad request", fmt.Errorf("%s", errBody))
		default:
			lastErr = fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, errBody)
		}
	}
	return nil, gwerrors.Wrap(gwerrors.KindProvider, "anthropic: exhausted retries", lastErr)
}

// --- wire types ---

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicRequest struct {
	Model         string                  `json:"model"`
	Messages      []anthropicMessage      `json:"messages"`
	System        string                  `json:"system,omitempty"`
	MaxTokens     int                     `json:"max_tokens"`
	Temperature   float64                 `json:"temperature,omitempty"`
	TopP          float64                 `json:"top_p,omitempty"`
	Stream        bool                    `json:"stream,omitempty"`
	Tools         []anthropicTool         `json:"tools,omitempty"`
	StopSequences []string                `json:"stop_sequences,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicStreamEvent struct {
	Type  string             `json:"type"`
	Index int                `json:"index,omitempty"`

	Message      *anthropicResponse     `json:"message,omitempty"`
	ContentBlock *anthropicContentBlock `json:"content_block,omitempty"`
	Delta        *anthropicDelta        `json:"delta,omitempty"`
	Usage        *anthropicUsage        `json:"usage,omitempty"`
}

// anthropicDelta covers both content_block_delta ("text") and
// message_delta ("stop_reason") shapes; only one set of fields is
// populated depending on the event.
type anthropicDelta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// --- request/response translation ---

func buildAnthropicRequest(req *provider.CompletionRequest, stream bool) ([]byte, error) {
	out := anthropicRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Stream:        stream,
		StopSequences: req.Stop,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = anthropicDefaultMaxTok
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			out.System = msg.Content
		case message.RoleTool:
			out.Messages = append(out.Messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		case message.RoleAssistant:
			out.Messages = append(out.Messages, anthropicMessage{Role: "assistant", Content: assistantBlocks(msg)})
		default:
			out.Messages = append(out.Messages, anthropicMessage{Role: "user", Content: msg.Content})
		}
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]anthropicTool, len(req.Tools))
		for i, tool := range req.Tools {
			out.Tools[i] = anthropicTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.Parameters,
			}
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindProvider, "anthropic: marshal request", err)
	}
	return data, nil
}

// assistantBlocks renders an assistant message's text and any tool calls
// it carries as content blocks, since Anthropic never accepts a bare
// string for a message that also has tool_use blocks.
func assistantBlocks(msg message.Message) interface{} {
	if len(msg.ToolCalls) == 0 {
		return msg.Content
	}
	blocks := []anthropicContentBlock{}
	if msg.Content != "" {
		blocks = append(blocks, anthropicContentBlock{Type: "text", Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, anthropicContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: tc.Arguments,
		})
	}
	return blocks
}

func convertAnthropicResponse(resp *anthropicResponse) *provider.CompletionResponse {
	out := &provider.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		FinishReason: normalizeAnthropicStopReason(resp.StopReason),
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, message.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return out
}

func normalizeAnthropicStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}

// --- SSE parsing ---

func readAnthropicEvent(scanner *bufio.Scanner) (*anthropicStreamEvent, bool, error) {
	var eventType string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if eventType != "" || len(dataLines) > 0 {
				break
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}
	if eventType == "" && len(dataLines) == 0 {
		return nil, false, nil
	}

	var event anthropicStreamEvent
	if data := strings.Join(dataLines, "\n"); data != "" {
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, false, fmt.Errorf("parse stream event: %w", err)
		}
	}
	if eventType != "" && event.Type == "" {
		event.Type = eventType
	}
	return &event, true, nil
}

// translateAnthropicEvent maps one Anthropic SSE event into at most one
// StreamChunk, tracking the stream's id/model/first-chunk state across
// calls. stop reports whether the stream has reached message_stop.
func translateAnthropicEvent(event *anthropicStreamEvent, id, model *string, first *bool) (*provider.StreamChunk, bool) {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			*id = event.Message.ID
			*model = event.Message.Model
		}
		return nil, false

	case "content_block_delta":
		if event.Delta == nil || event.Delta.Text == "" {
			return nil, false
		}
		chunk := &provider.StreamChunk{ID: *id, Model: *model, Delta: provider.Delta{Content: event.Delta.Text}}
		if *first {
			chunk.Delta.Role = "assistant"
			*first = false
		}
		return chunk, false

	case "message_delta":
		chunk := &provider.StreamChunk{ID: *id, Model: *model}
		if event.Delta != nil {
			chunk.FinishReason = normalizeAnthropicStopReason(event.Delta.StopReason)
		}
		if event.Usage != nil {
			chunk.Usage = &provider.TokenUsage{
				PromptTokens:     event.Usage.InputTokens,
				CompletionTokens: event.Usage.OutputTokens,
				TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
			}
		}
		if chunk.FinishReason == "" {
			return nil, false
		}
		return chunk, false

	case "message_stop":
		return nil, true

	default:
		return nil, false
	}
}
