package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kevin-toles/llm-gateway/message"
)

// FakeAdapter is a deterministic, no-network test double. It never calls
// out: Complete and Stream return scripted content, or a scripted error when
// one is configured. Every call is counted so tests can assert on
// invocation behavior (e.g. that a circuit breaker stopped calling it, or
// that retries happened the expected number of times).
type FakeAdapter struct {
	name   string
	models []string

	mu            sync.Mutex
	responses     []FakeResponse // consumed in order; last entry repeats once exhausted
	callCount     int64
	streamCount   int64
	lastRequest   *CompletionRequest
}

// FakeResponse is one scripted outcome for a FakeAdapter call.
type FakeResponse struct {
	Content      string
	ToolCalls    []message.ToolCall
	FinishReason string
	Usage        TokenUsage
	Err          error
}

// NewFakeAdapter constructs a FakeAdapter serving the given models, scripted
// to return responses in order. With no responses configured, Complete
// returns an empty assistant message with FinishReason "stop".
func NewFakeAdapter(name string, models []string, responses ...FakeResponse) *FakeAdapter {
	return &FakeAdapter{name: name, models: models, responses: responses}
}

func (f *FakeAdapter) Name() string { return f.name }

func (f *FakeAdapter) SupportedModels() []string { return f.models }

func (f *FakeAdapter) SupportsModel(name string) bool {
	for _, m := range f.models {
		if m == name {
			return true
		}
	}
	return false
}

// CallCount reports how many times Complete or Stream has been invoked.
func (f *FakeAdapter) CallCount() int64 {
	return atomic.LoadInt64(&f.callCount)
}

// LastRequest returns the most recent request passed to Complete or Stream,
// or nil if none yet.
func (f *FakeAdapter) LastRequest() *CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest
}

func (f *FakeAdapter) next() FakeResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return FakeResponse{FinishReason: "stop"}
	}
	idx := int(f.callCount) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx]
}

func (f *FakeAdapter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	atomic.AddInt64(&f.callCount, 1)
	f.mu.Lock()
	f.lastRequest = req
	f.mu.Unlock()

	resp := f.next()
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &CompletionResponse{
		ID:           fmt.Sprintf("%s-%d", f.name, f.callCount),
		Model:        req.Model,
		Content:      resp.Content,
		ToolCalls:    resp.ToolCalls,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	}, nil
}

func (f *FakeAdapter) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error) {
	atomic.AddInt64(&f.callCount, 1)
	atomic.AddInt64(&f.streamCount, 1)
	f.mu.Lock()
	f.lastRequest = req
	f.mu.Unlock()

	resp := f.next()
	ch := make(chan StreamChunk, 2)
	if resp.Err != nil {
		ch <- StreamChunk{Err: resp.Err}
		close(ch)
		return ch, nil
	}

	go func() {
		defer close(ch)
		id := fmt.Sprintf("%s-%d", f.name, f.callCount)
		select {
		case ch <- StreamChunk{ID: id, Model: req.Model, Delta: Delta{Role: "assistant"}}:
		case <-ctx.Done():
			return
		}
		if resp.Content != "" {
			select {
			case ch <- StreamChunk{ID: id, Model: req.Model, Delta: Delta{Content: resp.Content}}:
			case <-ctx.Done():
				return
			}
		}
		usage := resp.Usage
		select {
		case ch <- StreamChunk{ID: id, Model: req.Model, FinishReason: resp.FinishReason, Usage: &usage}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}
